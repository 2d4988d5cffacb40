package pinpoint

import "time"

// Options are the runtime settings supplied by the host application.
type Options struct {
	AutoFlushEventsInterval time.Duration `yaml:"auto_flush_events_interval"`
	TrackLifecycleEvents    bool          `yaml:"track_app_lifecycle_events"`
}

// DefaultOptions mirrors the builder defaults.
func DefaultOptions() Options {
	return Options{
		AutoFlushEventsInterval: DefaultAutoFlushEventsInterval,
		TrackLifecycleEvents:    true,
	}
}
