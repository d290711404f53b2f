package config

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all application configuration.
type Config struct {
	BusHost     string
	BusPort     int
	BusPath     string
	BusUsername string
	BusPassword string

	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectDelayMs     int
	HeartbeatIntervalMs  int

	CapturesDir  string
	CrackedDir   string
	PotfilePath  string
	AuditDBPath  string

	DisplayLayout string
	DisplayType   string
	SocketPath    string
	EnablePolicyEngine bool
	Verbose       bool

	MetricsAddr string
}

// Load parses command line flags and environment variables to populate
// Config. Flags take precedence over environment variables.
func Load() *Config {
	cfg := &Config{}

	cfg.BusHost = getEnv("CORVID_BUS_HOST", "127.0.0.1")
	cfg.BusPort = int(getEnvFloat("CORVID_BUS_PORT", 8080))
	cfg.BusPath = getEnv("CORVID_BUS_PATH", "/api/events")
	cfg.BusUsername = getEnv("CORVID_BUS_USER", "")
	cfg.BusPassword = getEnv("CORVID_BUS_PASS", "")
	cfg.AutoReconnect = getEnvBool("CORVID_AUTO_RECONNECT", true)
	cfg.MaxReconnectAttempts = int(getEnvFloat("CORVID_MAX_RECONNECT", 0))
	cfg.ReconnectDelayMs = int(getEnvFloat("CORVID_RECONNECT_DELAY_MS", 1000))
	cfg.HeartbeatIntervalMs = int(getEnvFloat("CORVID_HEARTBEAT_MS", 30000))
	cfg.CapturesDir = getEnv("CORVID_CAPTURES_DIR", "/root/captures")
	cfg.CrackedDir = getEnv("CORVID_CRACKED_DIR", "/root/cracked")
	cfg.PotfilePath = getEnv("CORVID_POTFILE", "/root/captures/wpa-sec.potfile")
	cfg.AuditDBPath = getEnv("CORVID_AUDIT_DB", getDefaultAuditDBPath())
	cfg.DisplayLayout = getEnv("CORVID_DISPLAY_LAYOUT", "waveshare_v2")
	cfg.DisplayType = getEnv("CORVID_DISPLAY_TYPE", "epd")
	cfg.SocketPath = getEnv("CORVID_SOCKET_PATH", "/var/run/corvid.sock")
	cfg.MetricsAddr = getEnv("CORVID_METRICS_ADDR", ":9090")

	flag.StringVar(&cfg.BusHost, "bus-host", cfg.BusHost, "event bus host")
	flag.IntVar(&cfg.BusPort, "bus-port", cfg.BusPort, "event bus port")
	flag.StringVar(&cfg.BusPath, "bus-path", cfg.BusPath, "event bus WebSocket path")
	flag.StringVar(&cfg.BusUsername, "bus-user", cfg.BusUsername, "event bus basic-auth username")
	flag.StringVar(&cfg.BusPassword, "bus-pass", cfg.BusPassword, "event bus basic-auth password")
	flag.BoolVar(&cfg.AutoReconnect, "auto-reconnect", cfg.AutoReconnect, "reconnect automatically on disconnect")
	flag.IntVar(&cfg.MaxReconnectAttempts, "max-reconnect", cfg.MaxReconnectAttempts, "max reconnect attempts (0 = infinite)")
	flag.StringVar(&cfg.CapturesDir, "captures-dir", cfg.CapturesDir, "directory of pcap captures")
	flag.StringVar(&cfg.CrackedDir, "cracked-dir", cfg.CrackedDir, "directory of cracked-password key files")
	flag.StringVar(&cfg.PotfilePath, "potfile", cfg.PotfilePath, "path to the wpa-sec potfile")
	flag.StringVar(&cfg.AuditDBPath, "audit-db", cfg.AuditDBPath, "path to the attack/recovery audit SQLite database")
	flag.StringVar(&cfg.DisplayLayout, "display-layout", cfg.DisplayLayout, "named e-ink display layout preset")
	flag.StringVar(&cfg.DisplayType, "display-type", cfg.DisplayType, "display driver type (epd, null)")
	flag.StringVar(&cfg.SocketPath, "socket-path", cfg.SocketPath, "unix-domain IPC socket path")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to serve /metrics on")
	flag.BoolVar(&cfg.EnablePolicyEngine, "enable-policy-engine", false, "attach the external attack policy engine")
	flag.BoolVar(&cfg.Verbose, "v", false, "enable verbose logging")

	flag.Parse()

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

// getDefaultAuditDBPath returns the default audit database path in the
// user's home directory, creating the directory if needed.
func getDefaultAuditDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: Could not get user home directory, using current dir: %v", err)
		return "corvid-audit.db"
	}

	dir := filepath.Join(home, ".corvid")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("Warning: Could not create .corvid directory, using current dir: %v", err)
		return "corvid-audit.db"
	}

	return filepath.Join(dir, "audit.db")
}
