package instrument

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledIsNoop(t *testing.T) {
	ins, err := New(context.Background(), &Config{ServiceName: "otpauth", LogLevel: "error"})
	require.NoError(t, err)
	assert.IsType(t, noopInstrumentation{}, ins)

	_, span := ins.Tracer("test").Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, ins.Shutdown(context.Background()))
}

func TestNew_NilConfig(t *testing.T) {
	ins, err := New(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, ins.Meter("m"))
}
