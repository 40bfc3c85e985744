// Package otp generates short numeric one-time codes delivered out of band
// (SMS). Codes come from crypto/rand and are always zero-padded to the
// configured number of digits.
package otp
