package category

import (
	"sort"

	"github.com/cloudkit/cloudkit/pkg/errors"
)

// RegistryBuilder collects plugins during initialisation. It is not safe for
// concurrent use and should be discarded after Build.
type RegistryBuilder struct {
	plugins map[Category]Plugin
}

// NewRegistryBuilder returns an empty builder.
func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{plugins: make(map[Category]Plugin)}
}

// Add registers a plugin. A category accepts exactly one plugin.
func (b *RegistryBuilder) Add(plugin Plugin) error {
	if plugin == nil {
		return errors.New(errors.CategoryCore, errors.ErrCodeInvalidConfig, "plugin cannot be nil")
	}

	cat := plugin.Category()
	if cat == "" {
		return errors.Newf(errors.CategoryCore, errors.ErrCodeInvalidConfig,
			"plugin %s does not declare a category", plugin.PluginKey())
	}

	if existing, ok := b.plugins[cat]; ok {
		return errors.Newf(errors.CategoryCore, errors.ErrCodeAlreadyRegistered,
			"%s category already has plugin %s; cannot add %s",
			cat.DisplayName(), existing.PluginKey(), plugin.PluginKey()).
			WithDetail("category", cat.String())
	}

	b.plugins[cat] = plugin
	return nil
}

// Build freezes the collected plugins into a Registry. The builder's state is
// copied, so later Add calls do not affect the returned Registry.
func (b *RegistryBuilder) Build() *Registry {
	plugins := make(map[Category]Plugin, len(b.plugins))
	for k, v := range b.plugins {
		plugins[k] = v
	}
	return &Registry{plugins: plugins}
}

// Registry maps each category to its single active plugin. It is immutable
// and safe for concurrent reads.
type Registry struct {
	plugins map[Category]Plugin
}

// Resolve returns the plugin registered for cat, or a no-such-provider error.
func (r *Registry) Resolve(cat Category) (Plugin, error) {
	if r != nil {
		if p, ok := r.plugins[cat]; ok {
			return p, nil
		}
	}
	return nil, errors.NoSuchProviderf("no plugin is registered for the %s category", cat.DisplayName()).
		WithDetail("category", cat.String())
}

// Has reports whether cat has a registered plugin.
func (r *Registry) Has(cat Category) bool {
	if r == nil {
		return false
	}
	_, ok := r.plugins[cat]
	return ok
}

// Categories returns the registered categories sorted by name.
func (r *Registry) Categories() []Category {
	if r == nil {
		return nil
	}
	cats := make([]Category, 0, len(r.plugins))
	for c := range r.plugins {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// Plugins returns the registered plugins in category order.
func (r *Registry) Plugins() []Plugin {
	cats := r.Categories()
	plugins := make([]Plugin, 0, len(cats))
	for _, c := range cats {
		plugins = append(plugins, r.plugins[c])
	}
	return plugins
}

// ResolveAs resolves cat and asserts the plugin to T. A plugin of the wrong
// type is reported as a missing provider for that capability.
func ResolveAs[T any](r *Registry, cat Category) (T, error) {
	var zero T

	p, err := r.Resolve(cat)
	if err != nil {
		return zero, err
	}

	typed, ok := p.(T)
	if !ok {
		return zero, errors.NoSuchProviderf("plugin %s does not provide the requested %s capability",
			p.PluginKey(), cat.DisplayName()).
			WithDetail("category", cat.String())
	}
	return typed, nil
}
