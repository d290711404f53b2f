package domain

// BusClientConfig configures the event bus client's connection and
// reconnect behavior.
type BusClientConfig struct {
	Host     string
	Port     int
	Path     string // default "/api/events"
	Username string
	Password string

	AutoReconnect        bool
	MaxReconnectAttempts int // 0 = infinite
	ReconnectDelayMs     int
	HeartbeatIntervalMs  int
}

// DefaultBusClientConfig returns a config with the documented defaults
// applied on top of zero values.
func DefaultBusClientConfig() BusClientConfig {
	return BusClientConfig{
		Path:                 "/api/events",
		AutoReconnect:        true,
		MaxReconnectAttempts: 0,
		ReconnectDelayMs:     1000,
		HeartbeatIntervalMs:  30000,
	}
}
