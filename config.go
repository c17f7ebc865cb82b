package coord

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Lucascis/coord/strategy"
	"github.com/Lucascis/coord/types"
)

// HeartbeatConfig controls liveness publication and failure detection.
type HeartbeatConfig struct {
	// Interval is how often this instance publishes a heartbeat.
	// Shorter intervals provide faster failure detection but increase store traffic.
	// Recommended: 2-10 seconds.
	Interval time.Duration `yaml:"interval"`

	// Timeout is how long a heartbeat remains valid before a peer is
	// considered unhealthy. Also the TTL applied to heartbeat records.
	// Must be >= 2*Interval to allow one missed heartbeat.
	// Recommended: 3x Interval.
	Timeout time.Duration `yaml:"timeout"`

	// MissedThreshold is the number of heartbeat intervals beyond Timeout
	// before an unhealthy peer is declared dead. The count is derived from
	// elapsed time ((elapsed - Timeout) / Interval), so no per-peer counter
	// state is kept.
	MissedThreshold int `yaml:"missedThreshold"`
}

// BalancingConfig controls the leader-elected rebalancing loop.
type BalancingConfig struct {
	// Strategy names the instance selection strategy: "least_guilds",
	// "least_cpu", "most_available_memory", "round_robin", or
	// "consistent_hash".
	Strategy string `yaml:"strategy"`

	// RebalanceInterval is how often the elected leader evaluates guild
	// distribution.
	RebalanceInterval time.Duration `yaml:"rebalanceInterval"`

	// RebalanceThreshold is the relative deviation from the mean guild count
	// (0.0-1.0, exclusive) that marks an instance overloaded or underloaded.
	// For example, 0.2 means an instance above 120% of the mean is a
	// migration source.
	RebalanceThreshold float64 `yaml:"rebalanceThreshold"`

	// MaxGuildsPerInstance caps assignments per instance. Instances at the
	// cap are filtered out of selection.
	MaxGuildsPerInstance int `yaml:"maxGuildsPerInstance"`

	// LeadershipTTL is the rebalance leadership lease duration. The leader
	// extends the lease at LeadershipTTL/3; non-leaders retry acquisition on
	// the same cadence and take over if the lease lapses.
	LeadershipTTL time.Duration `yaml:"leadershipTtl"`
}

// MigrationConfig controls guild migration behavior.
type MigrationConfig struct {
	// Timeout bounds one migration end to end, including its lock hold.
	// Must be >= Lock.TTL.
	Timeout time.Duration `yaml:"timeout"`

	// RetryCount is how many times a failed migration is retried before the
	// guild is left for the next rebalance pass.
	RetryCount int `yaml:"retryCount"`

	// GracePeriod is how long a dead instance's registry record is kept
	// after its guilds are migrated away, so operators can still inspect it.
	// Must be >= Heartbeat.Timeout.
	GracePeriod time.Duration `yaml:"gracePeriod"`
}

// LockConfig controls the distributed lock manager.
type LockConfig struct {
	// TTL is the lease duration for acquired locks. Held locks are
	// auto-extended at TTL/3.
	TTL time.Duration `yaml:"ttl"`

	// RetryDelay is the base backoff delay between acquisition attempts.
	RetryDelay time.Duration `yaml:"retryDelay"`

	// RetryCount is the number of acquisition attempts before Acquire gives
	// up with ErrNotObtained.
	RetryCount int `yaml:"retryCount"`

	// DriftFactor is the clock drift allowance subtracted from lease
	// validity, as a fraction of TTL. Default 0.01 (1%).
	DriftFactor float64 `yaml:"driftFactor"`
}

// Config is the configuration for the Coordinator.
//
// All duration fields accept standard Go duration strings like "30s", "5m".
type Config struct {
	// InstanceID uniquely identifies this instance in the cluster.
	// Defaults to "<serviceType>-<uuid>" when empty.
	InstanceID string `yaml:"instanceId"`

	// ServiceType is the kind of workload this instance serves
	// (gateway, audio, api, worker).
	ServiceType types.ServiceType `yaml:"serviceType"`

	// Host is the address peers use to reach this instance.
	Host string `yaml:"host"`

	// Port is the port peers use to reach this instance.
	Port int `yaml:"port"`

	// KeyPrefix namespaces every store key so multiple clusters can share
	// one store deployment.
	KeyPrefix string `yaml:"keyPrefix"`

	// Heartbeat controls liveness publication and failure detection.
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`

	// Balancing controls the leader-elected rebalancing loop.
	Balancing BalancingConfig `yaml:"balancing"`

	// Migration controls guild migration behavior.
	Migration MigrationConfig `yaml:"migration"`

	// Lock controls the distributed lock manager.
	Lock LockConfig `yaml:"lock"`

	// OperationTimeout bounds individual store operations.
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// ShutdownTimeout is the maximum time Stop waits for loops to drain and
	// owned guilds to migrate away.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DefaultConfig returns a Config with production defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		ServiceType: types.ServiceWorker,
		KeyPrefix:   "coord",
		Heartbeat: HeartbeatConfig{
			Interval:        5 * time.Second,
			Timeout:         15 * time.Second,
			MissedThreshold: 3,
		},
		Balancing: BalancingConfig{
			Strategy:             strategy.NameLeastGuilds,
			RebalanceInterval:    5 * time.Minute,
			RebalanceThreshold:   0.2,
			MaxGuildsPerInstance: 1000,
			LeadershipTTL:        30 * time.Second,
		},
		Migration: MigrationConfig{
			Timeout:     30 * time.Second,
			RetryCount:  3,
			GracePeriod: 30 * time.Second,
		},
		Lock: LockConfig{
			TTL:         10 * time.Second,
			RetryDelay:  50 * time.Millisecond,
			RetryCount:  3,
			DriftFactor: 0.01,
		},
		OperationTimeout: 10 * time.Second,
		ShutdownTimeout:  30 * time.Second,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.ServiceType == "" {
		cfg.ServiceType = defaults.ServiceType
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = fmt.Sprintf("%s-%s", cfg.ServiceType, uuid.NewString())
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaults.KeyPrefix
	}
	if cfg.Heartbeat.Interval == 0 {
		cfg.Heartbeat.Interval = defaults.Heartbeat.Interval
	}
	if cfg.Heartbeat.Timeout == 0 {
		cfg.Heartbeat.Timeout = 3 * cfg.Heartbeat.Interval
	}
	if cfg.Heartbeat.MissedThreshold == 0 {
		cfg.Heartbeat.MissedThreshold = defaults.Heartbeat.MissedThreshold
	}
	if cfg.Balancing.Strategy == "" {
		cfg.Balancing.Strategy = defaults.Balancing.Strategy
	}
	if cfg.Balancing.RebalanceInterval == 0 {
		cfg.Balancing.RebalanceInterval = defaults.Balancing.RebalanceInterval
	}
	if cfg.Balancing.RebalanceThreshold == 0 {
		cfg.Balancing.RebalanceThreshold = defaults.Balancing.RebalanceThreshold
	}
	if cfg.Balancing.MaxGuildsPerInstance == 0 {
		cfg.Balancing.MaxGuildsPerInstance = defaults.Balancing.MaxGuildsPerInstance
	}
	if cfg.Balancing.LeadershipTTL == 0 {
		cfg.Balancing.LeadershipTTL = defaults.Balancing.LeadershipTTL
	}
	if cfg.Migration.Timeout == 0 {
		cfg.Migration.Timeout = defaults.Migration.Timeout
	}
	if cfg.Migration.RetryCount == 0 {
		cfg.Migration.RetryCount = defaults.Migration.RetryCount
	}
	if cfg.Migration.GracePeriod == 0 {
		cfg.Migration.GracePeriod = defaults.Migration.GracePeriod
	}
	if cfg.Lock.TTL == 0 {
		cfg.Lock.TTL = defaults.Lock.TTL
	}
	if cfg.Lock.RetryDelay == 0 {
		cfg.Lock.RetryDelay = defaults.Lock.RetryDelay
	}
	if cfg.Lock.RetryCount == 0 {
		cfg.Lock.RetryCount = defaults.Lock.RetryCount
	}
	if cfg.Lock.DriftFactor == 0 {
		cfg.Lock.DriftFactor = defaults.Lock.DriftFactor
	}
	if cfg.OperationTimeout == 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}
}

// Validate checks configuration constraints.
//
// Hard validation rules:
//   - Heartbeat.Timeout >= 2*Heartbeat.Interval (allow one missed heartbeat)
//   - Heartbeat.MissedThreshold >= 1
//   - 0 < Balancing.RebalanceThreshold < 1
//   - Migration.GracePeriod >= Heartbeat.Timeout (a record must outlive detection)
//   - Lock.TTL > 0
//   - Migration.Timeout >= Lock.TTL (migration holds a lock)
//   - Balancing.Strategy must name a known strategy
//
// Returns:
//   - error: ErrInvalidConfig wrapped with the violated rule, nil if valid
func (cfg *Config) Validate() error {
	if cfg.Heartbeat.Interval <= 0 {
		return fmt.Errorf("%w: Heartbeat.Interval must be > 0, got %v", ErrInvalidConfig, cfg.Heartbeat.Interval)
	}
	if cfg.Heartbeat.Timeout < 2*cfg.Heartbeat.Interval {
		return fmt.Errorf(
			"%w: Heartbeat.Timeout (%v) must be >= 2*Heartbeat.Interval (%v) to allow one missed heartbeat",
			ErrInvalidConfig, cfg.Heartbeat.Timeout, cfg.Heartbeat.Interval,
		)
	}
	if cfg.Heartbeat.MissedThreshold < 1 {
		return fmt.Errorf("%w: Heartbeat.MissedThreshold must be >= 1, got %d", ErrInvalidConfig, cfg.Heartbeat.MissedThreshold)
	}
	if cfg.Balancing.RebalanceThreshold <= 0 || cfg.Balancing.RebalanceThreshold >= 1 {
		return fmt.Errorf(
			"%w: Balancing.RebalanceThreshold must be in (0, 1), got %v",
			ErrInvalidConfig, cfg.Balancing.RebalanceThreshold,
		)
	}
	if cfg.Migration.GracePeriod < cfg.Heartbeat.Timeout {
		return fmt.Errorf(
			"%w: Migration.GracePeriod (%v) must be >= Heartbeat.Timeout (%v)",
			ErrInvalidConfig, cfg.Migration.GracePeriod, cfg.Heartbeat.Timeout,
		)
	}
	if cfg.Lock.TTL <= 0 {
		return fmt.Errorf("%w: Lock.TTL must be > 0, got %v", ErrInvalidConfig, cfg.Lock.TTL)
	}
	if cfg.Migration.Timeout < cfg.Lock.TTL {
		return fmt.Errorf(
			"%w: Migration.Timeout (%v) must be >= Lock.TTL (%v)",
			ErrInvalidConfig, cfg.Migration.Timeout, cfg.Lock.TTL,
		)
	}
	if _, err := strategy.FromName(cfg.Balancing.Strategy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return nil
}

// ValidateWithWarnings logs warnings for legal but non-recommended values.
//
// Called after Validate in NewCoordinator to surface operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger types.Logger) {
	if cfg.Heartbeat.Timeout < 3*cfg.Heartbeat.Interval {
		logger.Warn(
			"Heartbeat.Timeout is below recommended minimum",
			"timeout", cfg.Heartbeat.Timeout,
			"interval", cfg.Heartbeat.Interval,
			"recommended", 3*cfg.Heartbeat.Interval,
		)
	}
	if cfg.Balancing.LeadershipTTL < 3*cfg.Lock.TTL {
		logger.Warn(
			"Balancing.LeadershipTTL is short relative to Lock.TTL, leadership may churn",
			"leadershipTTL", cfg.Balancing.LeadershipTTL,
			"lockTTL", cfg.Lock.TTL,
		)
	}
	if cfg.Balancing.RebalanceInterval < 30*time.Second {
		logger.Warn(
			"Balancing.RebalanceInterval is very short, may cause frequent migrations",
			"interval", cfg.Balancing.RebalanceInterval,
			"recommended", "1m or higher",
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Test timings are 10-50x faster than production defaults. Use
// DefaultConfig for production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := coord.TestConfig()
//	cfg.ServiceType = types.ServiceAudio
//	c, err := coord.NewCoordinator(cfg, st)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.Heartbeat.Interval = 200 * time.Millisecond
	cfg.Heartbeat.Timeout = 600 * time.Millisecond
	cfg.Balancing.RebalanceInterval = 500 * time.Millisecond
	cfg.Balancing.LeadershipTTL = 2 * time.Second
	cfg.Migration.Timeout = 2 * time.Second
	cfg.Migration.GracePeriod = 600 * time.Millisecond
	cfg.Lock.TTL = time.Second
	cfg.Lock.RetryDelay = 10 * time.Millisecond
	cfg.OperationTimeout = 2 * time.Second
	cfg.ShutdownTimeout = 2 * time.Second

	return cfg
}
