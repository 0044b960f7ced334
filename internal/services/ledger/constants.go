package ledger

import "time"

// Default configuration values
const (
	DefaultEntitlementWindow = 30 * 24 * time.Hour
	DefaultMaxRetries        = 3
	DefaultRetryBackoff      = 25 * time.Millisecond
)
