package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeliveryStatus_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sent", DeliveryStatusSent.String())
	assert.Equal(t, "failed", DeliveryStatusFailed.String())
	assert.Equal(t, "expired", DeliveryStatusExpired.String())
	assert.Equal(t, "unknown", DeliveryStatusUnknown.String())
	assert.Equal(t, "unknown", DeliveryStatus(42).String())
}
