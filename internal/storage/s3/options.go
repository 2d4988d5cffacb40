package s3

import "time"

// Access levels understood by the storage plugin.
const (
	AccessLevelPublic    = "public"
	AccessLevelProtected = "protected"
	AccessLevelPrivate   = "private"
)

// DefaultURLExpiration is how long presigned URLs stay valid unless overridden.
const DefaultURLExpiration = 15 * time.Minute

// Options are the runtime settings supplied by the host application. The
// bucket and region always come from the outputs document.
type Options struct {
	// Bucket selects one of the named buckets listed in the outputs
	// document. Empty selects the default bucket_name.
	Bucket string `yaml:"bucket"`

	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle bool   `yaml:"force_path_style"`
	UseAccelerate  bool   `yaml:"use_accelerate"`

	// Route uploads through the cargoship transporter.
	TransferOptimization bool `yaml:"transfer_optimization"`
	UploadConcurrency    int  `yaml:"upload_concurrency"`

	DefaultAccessLevel string        `yaml:"default_access_level"`
	URLExpiration      time.Duration `yaml:"url_expiration"`

	// Presigned URLs are reused while more than half their lifetime
	// remains. Zero disables the cache.
	URLCacheSize int `yaml:"url_cache_size"`

	// Static credentials; the default AWS chain is used when empty.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// DefaultOptions returns options matching the builder defaults.
func DefaultOptions() Options {
	return Options{
		UploadConcurrency:  8,
		DefaultAccessLevel: AccessLevelPublic,
		URLExpiration:      DefaultURLExpiration,
	}
}
