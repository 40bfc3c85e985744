package inbound

import "time"

type RequestOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type RequestOTPResponse struct {
	SMSSent bool `json:"sms_sent"`
}

func (RequestOTPResponse) Message() string {
	return "OTP sent successfully"
}

type VerifyOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTP         string `json:"otp"`
}

type VerifyOTPResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

func (VerifyOTPResponse) Message() string {
	return "Login successful"
}

type LogoutResponse struct{}

func (LogoutResponse) Message() string {
	return "Logged out successfully"
}

func (LogoutResponse) Empty() bool { return true }

type MeResponse struct {
	User UserResponse `json:"user"`
}

// UserResponse renders the id as a string; snowflake ids overflow JSON numbers.
type UserResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
