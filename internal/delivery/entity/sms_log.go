package entity

import (
	"time"

	"github.com/shandysiswandi/otpauth/internal/pkg/valueobject"
)

// DeliveryStatus is the outcome of one delivery attempt.
type DeliveryStatus int16

const (
	DeliveryStatusUnknown DeliveryStatus = iota
	DeliveryStatusSent
	DeliveryStatusFailed
	// DeliveryStatusExpired means the code expired before it could be sent.
	DeliveryStatusExpired
)

func (s DeliveryStatus) String() string {
	switch s {
	case DeliveryStatusSent:
		return "sent"
	case DeliveryStatusFailed:
		return "failed"
	case DeliveryStatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// CreateSMSLog is one row of delivery_sms_logs. The message text is never
// stored because it carries the login code.
type CreateSMSLog struct {
	ID          int64
	EventID     string
	UserID      int64
	PhoneNumber string
	Provider    string
	Status      DeliveryStatus
	Attempts    int
	Error       string
	Metadata    valueobject.JSONMap
	CreatedAt   time.Time
}
