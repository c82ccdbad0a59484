package monitoring

import "time"

// Exported constants.
const (
	// DefaultProgressInterval is the percent step between progress
	// reports when none is configured.
	DefaultProgressInterval = 10
)

// Exported variables.
var (
	// HighSpeed scans with no artificial per-file delay.
	HighSpeed = &RateLimit{Name: "high", DelayPerFile: 0}
	// MediumSpeed inserts a small per-file delay to soften provider load.
	MediumSpeed = &RateLimit{Name: "medium", DelayPerFile: 2 * time.Millisecond}
	// LowSpeed inserts a generous per-file delay for shared or fragile
	// providers.
	LowSpeed = &RateLimit{Name: "low", DelayPerFile: 10 * time.Millisecond}
)

// RateLimit expresses a scanning speed preset as a per-file delay.
type RateLimit struct {
	Name         string
	DelayPerFile time.Duration
}

// RateLimitByName resolves a preset name ("high", "medium", "low") to
// its RateLimit. Unknown names resolve to HighSpeed.
func RateLimitByName(name string) *RateLimit {
	switch name {
	case MediumSpeed.Name:
		return MediumSpeed
	case LowSpeed.Name:
		return LowSpeed
	default:
		return HighSpeed
	}
}

// ScanOptions controls a single scan invocation.
type ScanOptions struct {
	// WaitForProcessing dispatches events to processors synchronously
	// instead of queueing them.
	WaitForProcessing bool
	// Timeout bounds the whole scan. Zero means no timeout.
	Timeout time.Duration
	// DelayPerFile inserts an artificial pause after each file, added
	// on top of any RateLimit preset delay.
	DelayPerFile time.Duration
	// EventFilter keeps only events of one type. Nil keeps everything.
	EventFilter *EventType
	// PathFilter is a regular expression applied to file paths before
	// classification. Empty matches all paths.
	PathFilter string
	// ProgressInterval is the percent step between progress reports.
	// Zero falls back to DefaultProgressInterval.
	ProgressInterval int
	// MaxFiles caps how many files are examined. Zero means unlimited.
	// Hitting the cap ends the scan normally.
	MaxFiles int
	// RateLimit selects a scanning speed preset. Nil means HighSpeed.
	RateLimit *RateLimit
	// SkipChecksum fingerprints files by size and modification time
	// instead of size and checksum.
	SkipChecksum bool
}

// progressInterval returns the effective percent step.
func (o ScanOptions) progressInterval() int {
	if o.ProgressInterval <= 0 {
		return DefaultProgressInterval
	}

	return o.ProgressInterval
}

// perFileDelay returns the combined artificial delay applied after each
// scanned file.
func (o ScanOptions) perFileDelay() time.Duration {
	delay := o.DelayPerFile
	if o.RateLimit != nil {
		delay += o.RateLimit.DelayPerFile
	}

	return delay
}
