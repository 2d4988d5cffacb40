// Package s3 implements the Storage category plugin backed by an Amazon S3
// bucket. Objects are addressed by path; the access level prefix
// ("public/", "protected/", "private/") is applied by key-based operations.
package s3

import (
	"fmt"
	"time"

	"github.com/cloudkit/cloudkit/pkg/errors"
	"github.com/cloudkit/cloudkit/pkg/outputs"
)

// PluginConfiguration is the immutable configuration of the storage plugin.
type PluginConfiguration struct {
	bucket             string
	region             string
	defaultAccessLevel string
	urlExpiration      time.Duration
}

// Bucket returns the S3 bucket name.
func (c PluginConfiguration) Bucket() string { return c.bucket }

// Region returns the bucket region.
func (c PluginConfiguration) Region() string { return c.region }

// DefaultAccessLevel returns the access level used by key-based operations.
func (c PluginConfiguration) DefaultAccessLevel() string { return c.defaultAccessLevel }

// URLExpiration returns the lifetime of presigned URLs.
func (c PluginConfiguration) URLExpiration() time.Duration { return c.urlExpiration }

// AccessPrefix returns the object key prefix for the default access level.
func (c PluginConfiguration) AccessPrefix() string {
	return c.defaultAccessLevel + "/"
}

// Validate checks the configuration before any transport is created.
func (c PluginConfiguration) Validate() error {
	if c.bucket == "" {
		return errors.Storage(errors.ErrCodeInvalidConfig,
			"Missing bucket name in Storage configuration",
			"Ensure the storage section of your configuration file contains a bucket_name.")
	}
	if c.region == "" {
		return errors.Storage(errors.ErrCodeInvalidConfig,
			"Missing region in Storage configuration",
			"Ensure the storage section of your configuration file contains an aws_region.")
	}
	switch c.defaultAccessLevel {
	case AccessLevelPublic, AccessLevelProtected, AccessLevelPrivate:
	default:
		return errors.Storage(errors.ErrCodeInvalidConfig,
			"Unknown default access level "+c.defaultAccessLevel,
			"Use one of public, protected or private.").
			WithDetail("access_level", c.defaultAccessLevel)
	}
	if c.urlExpiration <= 0 {
		return errors.Storage(errors.ErrCodeInvalidConfig,
			"URL expiration must be greater than 0",
			"Set a positive URLExpiration in the storage plugin options.")
	}
	return nil
}

// ConfigurationBuilder assembles a PluginConfiguration without validating it.
type ConfigurationBuilder struct {
	cfg PluginConfiguration
}

// Builder returns a builder preloaded with the defaults.
func Builder() *ConfigurationBuilder {
	return &ConfigurationBuilder{cfg: PluginConfiguration{
		defaultAccessLevel: AccessLevelPublic,
		urlExpiration:      DefaultURLExpiration,
	}}
}

func (b *ConfigurationBuilder) WithBucket(bucket string) *ConfigurationBuilder {
	b.cfg.bucket = bucket
	return b
}

func (b *ConfigurationBuilder) WithRegion(region string) *ConfigurationBuilder {
	b.cfg.region = region
	return b
}

func (b *ConfigurationBuilder) WithDefaultAccessLevel(level string) *ConfigurationBuilder {
	b.cfg.defaultAccessLevel = level
	return b
}

func (b *ConfigurationBuilder) WithURLExpiration(expiration time.Duration) *ConfigurationBuilder {
	b.cfg.urlExpiration = expiration
	return b
}

// Build returns the configuration for the builder's current state.
func (b *ConfigurationBuilder) Build() PluginConfiguration {
	return b.cfg
}

// From derives a configuration from the outputs document and plugin options.
// Empty option values fall back to the builder defaults.
func From(out *outputs.Outputs, options Options) (PluginConfiguration, error) {
	if out == nil || out.Storage == nil {
		return PluginConfiguration{}, errors.Storage(errors.ErrCodeMissingConfig,
			"Missing Storage configuration",
			"Ensure that storage is enabled and exists in your configuration file")
	}

	bucket, region := out.Storage.BucketName, out.Storage.AWSRegion
	if options.Bucket != "" {
		named, ok := out.Storage.Bucket(options.Bucket)
		if !ok {
			return PluginConfiguration{}, errors.Storage(errors.ErrCodeMissingConfig,
				fmt.Sprintf("No bucket named %q in Storage configuration", options.Bucket),
				"Ensure that the storage buckets list of your configuration file contains the selected bucket").
				WithDetail("bucket", options.Bucket)
		}
		bucket = named.BucketName
		if named.AWSRegion != "" {
			region = named.AWSRegion
		}
	}
	if bucket == "" {
		return PluginConfiguration{}, errors.Storage(errors.ErrCodeMissingConfig,
			"Missing bucket in Storage configuration",
			"Ensure that the storage section of your configuration file names a bucket_name")
	}

	b := Builder().
		WithBucket(bucket).
		WithRegion(region)
	if options.DefaultAccessLevel != "" {
		b.WithDefaultAccessLevel(options.DefaultAccessLevel)
	}
	if options.URLExpiration != 0 {
		b.WithURLExpiration(options.URLExpiration)
	}
	return b.Build(), nil
}
