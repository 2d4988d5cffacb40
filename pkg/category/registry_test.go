package category

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudkit/cloudkit/pkg/errors"
	"github.com/cloudkit/cloudkit/pkg/outputs"
)

type stubPlugin struct {
	cat Category
	key string
}

func (p *stubPlugin) Category() Category { return p.cat }
func (p *stubPlugin) PluginKey() string  { return p.key }
func (p *stubPlugin) Configure(context.Context, *outputs.Outputs) error {
	return nil
}

type uploader interface {
	Upload() string
}

type uploadingPlugin struct{ stubPlugin }

func (p *uploadingPlugin) Upload() string { return "ok" }

func TestRegistry_Resolve(t *testing.T) {
	b := NewRegistryBuilder()
	analytics := &stubPlugin{cat: Analytics, key: "analyticsPlugin"}
	require.NoError(t, b.Add(analytics))

	r := b.Build()

	p, err := r.Resolve(Analytics)
	require.NoError(t, err)
	assert.Same(t, analytics, p)
	assert.True(t, r.Has(Analytics))
	assert.False(t, r.Has(Storage))
}

func TestRegistry_ResolveUnregistered(t *testing.T) {
	r := NewRegistryBuilder().Build()

	p, err := r.Resolve(Storage)
	require.Error(t, err)
	assert.Nil(t, p)
	assert.True(t, errors.IsNoSuchProvider(err))
	assert.False(t, errors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "Storage")
}

func TestRegistry_NilRegistry(t *testing.T) {
	var r *Registry

	p, err := r.Resolve(Analytics)
	assert.Nil(t, p)
	assert.True(t, errors.IsNoSuchProvider(err))
	assert.False(t, r.Has(Analytics))
	assert.Empty(t, r.Categories())
}

func TestRegistryBuilder_Add(t *testing.T) {
	t.Run("nil plugin", func(t *testing.T) {
		err := NewRegistryBuilder().Add(nil)
		assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))
	})

	t.Run("missing category", func(t *testing.T) {
		err := NewRegistryBuilder().Add(&stubPlugin{key: "anonymous"})
		assert.Equal(t, errors.ErrCodeInvalidConfig, errors.CodeOf(err))
		assert.Contains(t, err.Error(), "anonymous")
	})

	t.Run("duplicate category", func(t *testing.T) {
		b := NewRegistryBuilder()
		require.NoError(t, b.Add(&stubPlugin{cat: Storage, key: "first"}))

		err := b.Add(&stubPlugin{cat: Storage, key: "second"})
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeAlreadyRegistered, errors.CodeOf(err))

		p, rerr := b.Build().Resolve(Storage)
		require.NoError(t, rerr)
		assert.Equal(t, "first", p.PluginKey())
	})
}

func TestRegistryBuilder_BuildIsSnapshot(t *testing.T) {
	b := NewRegistryBuilder()
	require.NoError(t, b.Add(&stubPlugin{cat: Analytics, key: "a"}))
	r := b.Build()

	require.NoError(t, b.Add(&stubPlugin{cat: Storage, key: "s"}))
	assert.False(t, r.Has(Storage))
	assert.Equal(t, []Category{Analytics}, r.Categories())
}

func TestRegistry_CategoriesAndPlugins(t *testing.T) {
	b := NewRegistryBuilder()
	require.NoError(t, b.Add(&stubPlugin{cat: Storage, key: "s"}))
	require.NoError(t, b.Add(&stubPlugin{cat: Analytics, key: "a"}))
	r := b.Build()

	assert.Equal(t, []Category{Analytics, Storage}, r.Categories())

	plugins := r.Plugins()
	require.Len(t, plugins, 2)
	assert.Equal(t, "a", plugins[0].PluginKey())
	assert.Equal(t, "s", plugins[1].PluginKey())
}

func TestResolveAs(t *testing.T) {
	b := NewRegistryBuilder()
	require.NoError(t, b.Add(&uploadingPlugin{stubPlugin{cat: Storage, key: "s3"}}))
	require.NoError(t, b.Add(&stubPlugin{cat: Analytics, key: "pinpoint"}))
	r := b.Build()

	u, err := ResolveAs[uploader](r, Storage)
	require.NoError(t, err)
	assert.Equal(t, "ok", u.Upload())

	_, err = ResolveAs[uploader](r, Analytics)
	assert.True(t, errors.IsNoSuchProvider(err))

	_, err = ResolveAs[uploader](r, Predictions)
	assert.True(t, errors.IsNoSuchProvider(err))
}

func TestRegistry_ConcurrentResolve(t *testing.T) {
	b := NewRegistryBuilder()
	require.NoError(t, b.Add(&stubPlugin{cat: Analytics, key: "a"}))
	r := b.Build()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := r.Resolve(Analytics)
			assert.NoError(t, err)
			assert.Equal(t, "a", p.PluginKey())
			_, err = r.Resolve(DataStore)
			assert.Error(t, err)
		}()
	}
	wg.Wait()
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{"analytics", Analytics, false},
		{" Storage ", Storage, false},
		{"DATASTORE", DataStore, false},
		{"predictions", Predictions, false},
		{"geo", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Analytics", Analytics.DisplayName())
	assert.Equal(t, "Storage", Storage.DisplayName())
	assert.Equal(t, "DataStore", DataStore.DisplayName())
	assert.Equal(t, "", Category("").DisplayName())
}
