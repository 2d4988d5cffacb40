// Package outputs models the generated backend-metadata document that
// describes provisioned backend resources.
package outputs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/cloudkit/cloudkit/pkg/errors"
)

// Outputs is the root of the backend-metadata document. Every category
// section is optional.
type Outputs struct {
	Version   string     `yaml:"version"`
	Analytics *Analytics `yaml:"analytics,omitempty"`
	Storage   *Storage   `yaml:"storage,omitempty"`
}

// Analytics holds the analytics section.
type Analytics struct {
	AmazonPinpoint *AmazonPinpoint `yaml:"amazon_pinpoint,omitempty"`
}

// AmazonPinpoint identifies the provisioned Pinpoint application.
type AmazonPinpoint struct {
	AppID     string `yaml:"app_id"`
	AWSRegion string `yaml:"aws_region"`
}

// Storage holds the storage section.
type Storage struct {
	AWSRegion  string   `yaml:"aws_region"`
	BucketName string   `yaml:"bucket_name"`
	Buckets    []Bucket `yaml:"buckets,omitempty"`
}

// Bucket describes one named bucket when several are provisioned.
type Bucket struct {
	Name       string `yaml:"name"`
	BucketName string `yaml:"bucket_name"`
	AWSRegion  string `yaml:"aws_region"`
}

// Parse decodes an outputs document. JSON documents are accepted since JSON
// is valid YAML; keys that are not modelled are ignored.
func Parse(data []byte) (*Outputs, error) {
	var out Outputs
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, errors.CategoryCore, errors.ErrCodeInvalidConfig,
			"failed to parse backend outputs document").
			WithSuggestion("Regenerate the outputs file for your backend and make sure it is valid JSON or YAML.")
	}
	return &out, nil
}

// Load reads and parses the outputs document at path.
func Load(path string) (*Outputs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryCore, errors.ErrCodeMissingConfig,
			fmt.Sprintf("failed to read backend outputs document %s", path)).
			WithSuggestion("Check that the outputs file exists and the global.outputs_file setting points to it.")
	}
	return Parse(data)
}

// Bucket returns the bucket with the given friendly name.
func (s *Storage) Bucket(name string) (Bucket, bool) {
	if s == nil {
		return Bucket{}, false
	}
	for _, b := range s.Buckets {
		if b.Name == name {
			return b, true
		}
	}
	return Bucket{}, false
}
