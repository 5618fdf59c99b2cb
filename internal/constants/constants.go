package constants

import "time"

const (
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
	WebhookTimeout  = 10 * time.Second
)

const (
	DBMaxOpenConns    = 16
	DBMaxIdleConns    = 4
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBusyTimeoutMS   = 5000
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	// first division of every tier; promotion and relegation always land here
	FirstDivision = 1

	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

const (
	CommitMaxBackoff   = 5 * time.Second
	NotifyDrainTimeout = 3 * time.Second
)
