package event

import "time"

// OTPSMSDestination is the topic/subject the auth module publishes OTP SMS
// requests to when modules.auth.sms_dispatch is "queue".
const OTPSMSDestination string = "auth_otp_sms"

// OTPSMSConsumerDelivery is the consumer group/channel of the delivery module.
const OTPSMSConsumerDelivery string = "auth_otp_sms_delivery"

// HeaderCorrelationID carries the request correlation id across the broker.
const HeaderCorrelationID string = "cID"

// OTPSMSMessage asks for one SMS carrying a login code. Text already contains
// the plaintext code, so the payload must never be logged.
type OTPSMSMessage struct {
	EventID     string    `json:"event_id"`
	UserID      int64     `json:"user_id,string"`
	PhoneNumber string    `json:"phone_number"`
	Text        string    `json:"text"`
	ExpiresAt   time.Time `json:"expires_at"`
}
