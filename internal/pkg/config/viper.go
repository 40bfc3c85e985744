package config

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: app.server.http.address is read
// from OTPAUTH_APP_SERVER_HTTP_ADDRESS when set.
const EnvPrefix = "OTPAUTH"

// Viper is a Config implementation backed by github.com/spf13/viper.
// Reads are guarded against the file watcher reloading underneath them.
type Viper struct {
	mu sync.RWMutex
	v  *viper.Viper
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// NewViper loads the file at pathFile, its format taken from the extension,
// and reloads it whenever it changes on disk.
func NewViper(pathFile string) (*Viper, error) {
	v := newViper()
	v.SetConfigFile(pathFile)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	vc := &Viper{v: v}
	v.OnConfigChange(func(e fsnotify.Event) {
		vc.mu.Lock()
		err := v.ReadInConfig()
		vc.mu.Unlock()

		if err != nil {
			slog.Error("config reload failed", "path", pathFile, "op", e.Op.String(), "error", err)
			return
		}
		slog.Info("config reloaded", "path", pathFile)
	})
	v.WatchConfig()

	return vc, nil
}

// NewViperFromBytes loads configuration from memory. configType is a format
// viper understands, such as "yaml" or "json".
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, errors.New("config type is required")
	}

	v := newViper()
	v.SetConfigType(configType)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

func read[T any](vc *Viper, get func(string) T, key string) T {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return get(key)
}

func (vc *Viper) GetInt(key string) int         { return read(vc, vc.v.GetInt, key) }
func (vc *Viper) GetInt32(key string) int32     { return read(vc, vc.v.GetInt32, key) }
func (vc *Viper) GetBool(key string) bool       { return read(vc, vc.v.GetBool, key) }
func (vc *Viper) GetFloat64(key string) float64 { return read(vc, vc.v.GetFloat64, key) }
func (vc *Viper) GetString(key string) string   { return read(vc, vc.v.GetString, key) }

// GetUint16 saturates at math.MaxUint16 instead of wrapping.
func (vc *Viper) GetUint16(key string) uint16 {
	return uint16(min(read(vc, vc.v.GetUint, key), math.MaxUint16))
}

func (vc *Viper) GetSecond(key string) time.Duration { return vc.duration(key, time.Second) }
func (vc *Viper) GetMinute(key string) time.Duration { return vc.duration(key, time.Minute) }
func (vc *Viper) GetHour(key string) time.Duration   { return vc.duration(key, time.Hour) }

func (vc *Viper) duration(key string, unit time.Duration) time.Duration {
	return time.Duration(read(vc, vc.v.GetInt64, key)) * unit
}

// GetArray accepts a YAML list or a comma separated string.
func (vc *Viper) GetArray(key string) []string {
	vc.mu.RLock()
	var raw []string
	if _, isList := vc.v.Get(key).([]any); isList {
		raw = vc.v.GetStringSlice(key)
	} else {
		raw = strings.Split(vc.v.GetString(key), ",")
	}
	vc.mu.RUnlock()

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}

// Close is a no-op; viper offers no way to stop its watcher.
func (vc *Viper) Close() error {
	return nil
}
