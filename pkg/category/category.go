// Package category defines the functional categories of the SDK, the plugin
// contract each provider implements and the registry that resolves them.
package category

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudkit/cloudkit/pkg/outputs"
)

// Category names a functional domain of the SDK.
type Category string

const (
	Analytics   Category = "analytics"
	Storage     Category = "storage"
	Predictions Category = "predictions"
	DataStore   Category = "datastore"
)

// All lists the known categories in configuration order.
var All = []Category{Analytics, Storage, Predictions, DataStore}

// String returns the category identifier.
func (c Category) String() string {
	return string(c)
}

// DisplayName returns the capitalised name used in user-facing messages.
func (c Category) DisplayName() string {
	switch c {
	case DataStore:
		return "DataStore"
	case "":
		return ""
	default:
		return strings.ToUpper(string(c[:1])) + string(c[1:])
	}
}

// Parse converts a case-insensitive identifier into a known Category.
func Parse(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range All {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category: %q", s)
}

// Plugin is a provider implementation bound to exactly one Category.
type Plugin interface {
	// Category returns the category this plugin serves.
	Category() Category
	// PluginKey identifies the implementation, e.g. "awsS3StoragePlugin".
	PluginKey() string
	// Configure derives the plugin's configuration from the outputs document.
	// It is called once, synchronously, during framework initialisation.
	Configure(ctx context.Context, outputs *outputs.Outputs) error
}
