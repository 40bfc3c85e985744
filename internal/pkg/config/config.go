// Package config reads runtime settings from a YAML file with environment
// overrides. Business code depends on the Config interface only.
package config

import (
	"io"
	"time"
)

// TimeConfig defines helpers for retrieving time-based configuration values.
type TimeConfig interface {
	// GetSecond retrieves the value associated with key as seconds.
	// Missing or non-numeric values yield zero.
	GetSecond(key string) time.Duration

	// GetMinute retrieves the value associated with key as minutes.
	// Missing or non-numeric values yield zero.
	GetMinute(key string) time.Duration

	// GetHour retrieves the value associated with key as hours.
	// Missing or non-numeric values yield zero.
	GetHour(key string) time.Duration
}

// Config defines a set of methods for retrieving configuration values of various types.
// Implementations handle type conversion and return the zero value for missing keys.
type Config interface {
	io.Closer
	TimeConfig

	// GetInt retrieves the value associated with key as an int.
	GetInt(key string) int

	// GetInt32 retrieves the value associated with key as an int32.
	GetInt32(key string) int32

	// GetUint16 retrieves the value associated with key as a uint16.
	GetUint16(key string) uint16

	// GetFloat64 retrieves the value associated with key as a float64.
	GetFloat64(key string) float64

	// GetBool retrieves the value associated with key as a bool.
	GetBool(key string) bool

	// GetString retrieves the value associated with key as a string.
	GetString(key string) string

	// GetArray retrieves the value associated with key as a slice of strings.
	// The value may be a YAML list or a string with format <element1>,<element2>,...
	// Blank elements are dropped.
	GetArray(key string) []string
}
