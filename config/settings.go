package config

// Settings is the top-level configuration for the kit's components.
// Field defaults mirror the documented behavior of each component; a file
// only needs to name what it overrides.
type Settings struct {
	Session SessionSettings `mapstructure:"session" json:"session"`
	Queue   QueueSettings   `mapstructure:"queue" json:"queue"`
	Network NetworkSettings `mapstructure:"network" json:"network"`
	Cache   CacheSettings   `mapstructure:"cache" json:"cache"`
	Store   StoreSettings   `mapstructure:"store" json:"store"`
}

// SessionSettings configures the session timeout monitor.
type SessionSettings struct {
	TimeoutMinutes           int `mapstructure:"timeout_minutes" json:"timeout_minutes" validate:"min=1"`
	WarningMinutes           int `mapstructure:"warning_minutes" json:"warning_minutes" validate:"min=1"`
	BackgroundTimeoutMinutes int `mapstructure:"background_timeout_minutes" json:"background_timeout_minutes" validate:"min=1"`
}

// QueueSettings configures the offline operation queue.
type QueueSettings struct {
	Capacity            int `mapstructure:"capacity" json:"capacity" validate:"min=1"`
	MaxRetries          int `mapstructure:"max_retries" json:"max_retries" validate:"min=0"`
	SyncIntervalMinutes int `mapstructure:"sync_interval_minutes" json:"sync_interval_minutes" validate:"min=1"`
	ReplayDelayMillis   int `mapstructure:"replay_delay_millis" json:"replay_delay_millis" validate:"min=0"`
	FailedListSize      int `mapstructure:"failed_list_size" json:"failed_list_size" validate:"min=0"`
}

// NetworkSettings configures reachability probing.
type NetworkSettings struct {
	ProbeAddrs         []string `mapstructure:"probe_addrs" json:"probe_addrs"`
	ProbeTimeoutMillis int      `mapstructure:"probe_timeout_millis" json:"probe_timeout_millis" validate:"min=0"`
}

// CacheSettings configures the TTL cache namespace.
type CacheSettings struct {
	Namespace string `mapstructure:"namespace" json:"namespace"`
}

// StoreSettings selects the durable backend.
type StoreSettings struct {
	// Backend is one of "memory", "sqlite", "redis"
	Backend    string `mapstructure:"backend" json:"backend" validate:"oneof=memory sqlite redis"`
	SQLitePath string `mapstructure:"sqlite_path" json:"sqlite_path"`
	RedisAddr  string `mapstructure:"redis_addr" json:"redis_addr"`
}

// ApplyDefaults fills zero-valued fields with the documented defaults.
func (s *Settings) ApplyDefaults() {
	if s.Session.TimeoutMinutes == 0 {
		s.Session.TimeoutMinutes = 120
	}
	if s.Session.WarningMinutes == 0 {
		s.Session.WarningMinutes = 5
	}
	if s.Session.BackgroundTimeoutMinutes == 0 {
		s.Session.BackgroundTimeoutMinutes = 30
	}

	if s.Queue.Capacity == 0 {
		s.Queue.Capacity = 50
	}
	if s.Queue.MaxRetries == 0 {
		s.Queue.MaxRetries = 3
	}
	if s.Queue.SyncIntervalMinutes == 0 {
		s.Queue.SyncIntervalMinutes = 5
	}
	if s.Queue.ReplayDelayMillis == 0 {
		s.Queue.ReplayDelayMillis = 100
	}
	if s.Queue.FailedListSize == 0 {
		s.Queue.FailedListSize = 20
	}

	if s.Network.ProbeTimeoutMillis == 0 {
		s.Network.ProbeTimeoutMillis = 3000
	}

	if s.Cache.Namespace == "" {
		s.Cache.Namespace = "cache:"
	}

	if s.Store.Backend == "" {
		s.Store.Backend = "sqlite"
	}
	if s.Store.SQLitePath == "" {
		s.Store.SQLitePath = "sessionkit.db"
	}
}
