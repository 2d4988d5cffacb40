// Package pinpoint implements the Analytics category plugin backed by an
// Amazon Pinpoint application.
package pinpoint

import (
	"time"

	"github.com/cloudkit/cloudkit/pkg/errors"
	"github.com/cloudkit/cloudkit/pkg/outputs"
)

// DefaultAutoFlushEventsInterval is the flush interval used unless overridden.
const DefaultAutoFlushEventsInterval = 30000 * time.Millisecond

// PluginConfiguration is the immutable configuration of the analytics plugin.
type PluginConfiguration struct {
	appID                   string
	region                  string
	autoFlushEventsInterval time.Duration
	trackAppLifecycleEvents bool
}

// AppID returns the Pinpoint application id.
func (c PluginConfiguration) AppID() string {
	return c.appID
}

// Region returns the Pinpoint region.
func (c PluginConfiguration) Region() string {
	return c.region
}

// AutoFlushEventsInterval returns how often recorded events are flushed.
func (c PluginConfiguration) AutoFlushEventsInterval() time.Duration {
	return c.autoFlushEventsInterval
}

// TrackAppLifecycleEvents reports whether session start/stop events are recorded.
func (c PluginConfiguration) TrackAppLifecycleEvents() bool {
	return c.trackAppLifecycleEvents
}

// Validate checks the fields the plugin cannot run without.
func (c PluginConfiguration) Validate() error {
	if c.appID == "" {
		return errors.Analytics(errors.ErrCodeInvalidConfig,
			"Missing Pinpoint app id in Analytics configuration",
			"Ensure the amazon_pinpoint section of your configuration file contains an app_id.")
	}
	if c.region == "" {
		return errors.Analytics(errors.ErrCodeInvalidConfig,
			"Missing Pinpoint region in Analytics configuration",
			"Ensure the amazon_pinpoint section of your configuration file contains an aws_region.")
	}
	if c.autoFlushEventsInterval <= 0 {
		return errors.Analytics(errors.ErrCodeInvalidConfig,
			"Auto flush events interval must be greater than 0",
			"Set a positive AutoFlushEventsInterval in the analytics plugin options.")
	}
	return nil
}

// ConfigurationBuilder assembles a PluginConfiguration. It stores values
// without validation and is not safe for concurrent use.
type ConfigurationBuilder struct {
	appID                   string
	region                  string
	autoFlushEventsInterval time.Duration
	trackAppLifecycleEvents bool
}

// Builder returns a builder preloaded with the defaults.
func Builder() *ConfigurationBuilder {
	return &ConfigurationBuilder{
		autoFlushEventsInterval: DefaultAutoFlushEventsInterval,
		trackAppLifecycleEvents: true,
	}
}

func (b *ConfigurationBuilder) WithAppID(appID string) *ConfigurationBuilder {
	b.appID = appID
	return b
}

func (b *ConfigurationBuilder) WithRegion(region string) *ConfigurationBuilder {
	b.region = region
	return b
}

func (b *ConfigurationBuilder) WithAutoFlushEventsInterval(interval time.Duration) *ConfigurationBuilder {
	b.autoFlushEventsInterval = interval
	return b
}

func (b *ConfigurationBuilder) WithTrackAppLifecycleEvents(track bool) *ConfigurationBuilder {
	b.trackAppLifecycleEvents = track
	return b
}

// Build returns the configuration for the builder's current state.
func (b *ConfigurationBuilder) Build() PluginConfiguration {
	return PluginConfiguration{
		appID:                   b.appID,
		region:                  b.region,
		autoFlushEventsInterval: b.autoFlushEventsInterval,
		trackAppLifecycleEvents: b.trackAppLifecycleEvents,
	}
}

// From derives a configuration from the outputs document and plugin options.
// Identity fields come from outputs; the flush interval and lifecycle flag
// come from options only, since the outputs schema has no flush interval.
func From(out *outputs.Outputs, options Options) (PluginConfiguration, error) {
	if out == nil || out.Analytics == nil || out.Analytics.AmazonPinpoint == nil {
		return PluginConfiguration{}, errors.Analytics(errors.ErrCodeMissingConfig,
			"Missing Analytics configuration",
			"Ensure that analytics is enabled and exists in your configuration file")
	}

	pinpoint := out.Analytics.AmazonPinpoint
	return Builder().
		WithAppID(pinpoint.AppID).
		WithRegion(pinpoint.AWSRegion).
		WithAutoFlushEventsInterval(options.AutoFlushEventsInterval).
		WithTrackAppLifecycleEvents(options.TrackLifecycleEvents).
		Build(), nil
}
