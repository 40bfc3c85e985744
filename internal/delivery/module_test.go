package delivery

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shandysiswandi/otpauth/internal/pkg/clock"
	"github.com/shandysiswandi/otpauth/internal/pkg/config"
	"github.com/shandysiswandi/otpauth/internal/pkg/containertest"
	"github.com/shandysiswandi/otpauth/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpauth/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpauth/internal/pkg/instrument"
	"github.com/shandysiswandi/otpauth/internal/pkg/messaging"
	"github.com/shandysiswandi/otpauth/internal/pkg/sms"
	"github.com/shandysiswandi/otpauth/internal/pkg/uid"
	"github.com/shandysiswandi/otpauth/internal/pkg/validator"
	"github.com/shandysiswandi/otpauth/internal/shared/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresDependencies(t *testing.T) {
	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	assert.Error(t, New(Dependency{Validator: v}))
}

func TestNew_DeliversQueuedOTP(t *testing.T) {
	if testing.Short() {
		t.Skip("container test")
	}

	cfg, err := config.NewViperFromBytes("yaml", []byte("modules:\n  delivery:\n    idempotency_lock_seconds: 30\n"))
	require.NoError(t, err)
	v, err := validator.NewV10Validator()
	require.NoError(t, err)
	sf, err := uid.NewSnowflakeWithNode(3)
	require.NoError(t, err)

	broker := messaging.NewMemory()
	t.Cleanup(func() { _ = broker.Close() })
	sender := sms.NewMemory()
	routine := goroutine.NewManager(2)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, New(Dependency{
		Ctx:         ctx,
		Messaging:   broker,
		SMS:         sender,
		Idempotency: idempotency.New(containertest.Redis(t)),
		Goroutine:   routine,
		Config:      cfg,
		Instrument:  instrument.NewNoop(),
		UID:         sf,
		UUID:        uid.NewUUID(),
		Clock:       clock.New(),
		Validator:   v,
	}))

	body, err := json.Marshal(event.OTPSMSMessage{
		EventID:     "evt-module",
		UserID:      11,
		PhoneNumber: "+15550009999",
		Text:        "Your login code is 424242.",
		ExpiresAt:   time.Now().Add(5 * time.Minute),
	})
	require.NoError(t, err)

	// The same event twice: the second copy is a redelivery.
	for range 2 {
		_, err = broker.Publish(context.Background(), event.OTPSMSDestination, messaging.OutgoingMessage{Body: body})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return len(sender.Sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, sender.Sent(), 1)

	msg, ok := sender.Last("+15550009999")
	require.True(t, ok)
	assert.Equal(t, "Your login code is 424242.", msg.Body)

	cancel()
	require.NoError(t, routine.Wait())
}
