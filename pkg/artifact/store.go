package artifact

import (
	"github.com/hed1ad/logwatch/pkg/dataset"
	"github.com/hed1ad/logwatch/pkg/detectors"
	lwio "github.com/hed1ad/logwatch/pkg/io"
	"github.com/hed1ad/logwatch/pkg/metrics"
)

// Store caches feature tables and models side by side.
type Store struct {
	Tables *Cache[*dataset.Table]
	Models *Cache[detectors.Model]
}

// NewStore returns a store that reads tables with io.ReadFile, passing
// opts, and models with detectors.LoadFile.
func NewStore(opts ...lwio.Option) *Store {
	tables := func(path string) (*dataset.Table, error) {
		return lwio.ReadFile(path, opts...)
	}
	return NewStoreWith(tables, detectors.LoadFile)
}

// NewStoreWith returns a store backed by custom loaders.
func NewStoreWith(tables LoadFunc[*dataset.Table], models LoadFunc[detectors.Model]) *Store {
	s := &Store{
		Tables: NewCache(tables),
		Models: NewCache(models),
	}
	instrument(s.Tables, "table")
	instrument(s.Models, "model")
	return s
}

func instrument[T any](c *Cache[T], kind string) {
	c.OnHit = func(string) { metrics.CacheLookups.WithLabelValues(kind, "hit").Inc() }
	c.OnMiss = func(string) { metrics.CacheLookups.WithLabelValues(kind, "miss").Inc() }
}

// Table returns the feature table at path.
func (s *Store) Table(path string) (*dataset.Table, error) {
	return s.Tables.Get(path)
}

// Model returns the model at path.
func (s *Store) Model(path string) (detectors.Model, error) {
	return s.Models.Get(path)
}
