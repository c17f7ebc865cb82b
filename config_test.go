package coord

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lucascis/coord/types"
)

func TestDefaultConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	SetDefaults(&cfg)
	require.NoError(t, cfg.Validate())
}

func TestTestConfigIsValid(t *testing.T) {
	t.Parallel()

	cfg := TestConfig()
	SetDefaults(&cfg)
	require.NoError(t, cfg.Validate())
}

func TestSetDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{ServiceType: types.ServiceAudio}
	SetDefaults(&cfg)

	require.True(t, strings.HasPrefix(cfg.InstanceID, "audio-"),
		"generated instance ID must embed the service type, got %q", cfg.InstanceID)
	require.Equal(t, "coord", cfg.KeyPrefix)
	require.Equal(t, 5*time.Second, cfg.Heartbeat.Interval)
	require.Equal(t, 3*cfg.Heartbeat.Interval, cfg.Heartbeat.Timeout)
	require.NotZero(t, cfg.Balancing.Strategy)
	require.NotZero(t, cfg.Lock.DriftFactor)

	// Explicit values survive defaulting.
	cfg = Config{InstanceID: "audio-pinned", Heartbeat: HeartbeatConfig{Interval: time.Second}}
	SetDefaults(&cfg)
	require.Equal(t, "audio-pinned", cfg.InstanceID)
	require.Equal(t, time.Second, cfg.Heartbeat.Interval)
	require.Equal(t, 3*time.Second, cfg.Heartbeat.Timeout)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero heartbeat interval", func(cfg *Config) { cfg.Heartbeat.Interval = 0 }},
		{"timeout below twice interval", func(cfg *Config) { cfg.Heartbeat.Timeout = cfg.Heartbeat.Interval }},
		{"missed threshold below one", func(cfg *Config) { cfg.Heartbeat.MissedThreshold = 0 }},
		{"rebalance threshold zero", func(cfg *Config) { cfg.Balancing.RebalanceThreshold = -0.1 }},
		{"rebalance threshold at one", func(cfg *Config) { cfg.Balancing.RebalanceThreshold = 1.0 }},
		{"grace period below heartbeat timeout", func(cfg *Config) { cfg.Migration.GracePeriod = cfg.Heartbeat.Timeout / 2 }},
		{"zero lock ttl", func(cfg *Config) { cfg.Lock.TTL = -time.Second }},
		{"migration timeout below lock ttl", func(cfg *Config) { cfg.Migration.Timeout = cfg.Lock.TTL / 2 }},
		{"unknown strategy", func(cfg *Config) { cfg.Balancing.Strategy = "alphabetical" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestValidateWithWarnings(t *testing.T) {
	t.Parallel()

	warnings := 0
	logger := &countingLogger{onWarn: func() { warnings++ }}

	cfg := DefaultConfig()
	cfg.Heartbeat.Timeout = 2 * cfg.Heartbeat.Interval
	cfg.Balancing.RebalanceInterval = time.Second
	require.NoError(t, cfg.Validate())

	cfg.ValidateWithWarnings(logger)
	require.Equal(t, 2, warnings)
}

type countingLogger struct {
	onWarn func()
}

func (l *countingLogger) Debug(string, ...any) {}
func (l *countingLogger) Info(string, ...any)  {}
func (l *countingLogger) Warn(string, ...any)  { l.onWarn() }
func (l *countingLogger) Error(string, ...any) {}
func (l *countingLogger) Fatal(string, ...any) {}
