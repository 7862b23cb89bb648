package nvd

import "time"

const (
	// DefaultUpdateInterval is how long a cached modified-segment descriptor is trusted
	// without asking the mirror. Year segments multiply this by yearSegmentRefreshFactor.
	DefaultUpdateInterval    = 2 * time.Hour
	DefaultRequestTimeout    = 60 * time.Second
	DefaultRequestRetryCount = 3
	DefaultMaxWorkers        = 4

	yearSegmentRefreshFactor = 12
)

type Config struct {
	CacheDir              string
	MirrorURL             string
	CACert                string
	ValidateByHashOnStart bool
	UpdateInterval        time.Duration
	RequestTimeout        time.Duration
	RequestRetryCount     int
	MaxWorkers            int
}
