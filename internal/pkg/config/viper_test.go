package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
app:
  name: otpauth
  server:
    cors: "http://a.test, http://b.test,"
modules:
  auth:
    otp_ttl_minutes: 5
    store_timeout_seconds: 3
    verify_reveals_suspended: true
jwt:
  ttl_hours: 24
instrument:
  log_mask_fields:
    - otp
    - token
  trace_sample_ratio: 0.25
messaging:
  nsq:
    max_attempts: 7
`

func TestViperFromBytes(t *testing.T) {
	cfg, err := NewViperFromBytes("yaml", []byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "otpauth", cfg.GetString("app.name"))
	assert.Equal(t, 5*time.Minute, cfg.GetMinute("modules.auth.otp_ttl_minutes"))
	assert.Equal(t, 3*time.Second, cfg.GetSecond("modules.auth.store_timeout_seconds"))
	assert.True(t, cfg.GetBool("modules.auth.verify_reveals_suspended"))
	assert.Equal(t, 24*time.Hour, cfg.GetHour("jwt.ttl_hours"))
	assert.InDelta(t, 0.25, cfg.GetFloat64("instrument.trace_sample_ratio"), 0.0001)
	assert.Equal(t, uint16(7), cfg.GetUint16("messaging.nsq.max_attempts"))
	assert.Equal(t, int32(0), cfg.GetInt32("missing.key"))

	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.GetArray("app.server.cors"))
	assert.Equal(t, []string{"otp", "token"}, cfg.GetArray("instrument.log_mask_fields"))
	assert.Empty(t, cfg.GetArray("missing.key"))
	require.NoError(t, cfg.Close())
}

func TestViperFromBytes_RequiresType(t *testing.T) {
	_, err := NewViperFromBytes(" ", []byte(sample))
	require.Error(t, err)
}

func TestViper_EnvOverride(t *testing.T) {
	t.Setenv("OTPAUTH_APP_NAME", "from-env")

	cfg, err := NewViperFromBytes("yaml", []byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.GetString("app.name"))
}

func TestNewViper_File(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte(sample), 0o600))

	cfg, err := NewViper(file)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.GetMinute("modules.auth.otp_ttl_minutes"))

	_, err = NewViper(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestViper_GetUint16Saturates(t *testing.T) {
	cfg, err := NewViperFromBytes("yaml", []byte("port: 70000\nsmall: 8080\n"))
	require.NoError(t, err)

	assert.Equal(t, uint16(65535), cfg.GetUint16("port"))
	assert.Equal(t, uint16(8080), cfg.GetUint16("small"))
}
