package domain

import "time"

// RecoveryConfig bounds how aggressively the recovery controller reacts
// to a blind capture interface.
type RecoveryConfig struct {
	BlindThreshold time.Duration // default 120s
	Cooldown       time.Duration // default 120s
	MaxAttempts    int           // default 3
	StartupGrace   time.Duration // default 180s
}

// DefaultRecoveryConfig returns the documented defaults.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		BlindThreshold: 120 * time.Second,
		Cooldown:       120 * time.Second,
		MaxAttempts:    3,
		StartupGrace:   180 * time.Second,
	}
}

// RecoveryState is the mutable state tracked by the recovery controller
// across polls.
type RecoveryState struct {
	Config RecoveryConfig

	StartedAt    time.Time
	LastAPSeen   time.Time // seeded to StartedAt + StartupGrace
	LastRecovery time.Time
	Attempts     int
	IsRecovering bool

	TotalRecoveries int
	TotalFailures   int
}

// NewRecoveryState seeds LastAPSeen so the blind timer cannot fire
// during the startup grace window.
func NewRecoveryState(cfg RecoveryConfig, startedAt time.Time) *RecoveryState {
	return &RecoveryState{
		Config:     cfg,
		StartedAt:  startedAt,
		LastAPSeen: startedAt.Add(cfg.StartupGrace),
	}
}
