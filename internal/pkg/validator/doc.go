// Package validator provides a small validation abstraction for request
// structs.
//
// Business code depends on the Validator interface; V10Validator wraps
// go-playground/validator v10 with English messages and the custom tags
// "phone" (E.164) and "otp" (six digits).
package validator
