package artifact

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/logwatch/pkg/dataset"
	"github.com/hed1ad/logwatch/pkg/detectors"
	"github.com/hed1ad/logwatch/pkg/detectors/iforest"
	lwio "github.com/hed1ad/logwatch/pkg/io"
	"github.com/hed1ad/logwatch/pkg/io/xlsx"
)

func TestCacheLoadsOnce(t *testing.T) {
	var calls int32
	c := NewCache(func(key string) (*dataset.Table, error) {
		atomic.AddInt32(&calls, 1)
		return &dataset.Table{Columns: []string{key}}, nil
	})

	first, err := c.Get("a.csv")
	require.NoError(t, err)
	second, err := c.Get("a.csv")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, 1, c.Len())

	_, err = c.Get("b.csv")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls)
}

func TestCacheConcurrentFirstLoad(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	c := NewCache(func(key string) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 7, nil
	})

	const n = 16
	var wg sync.WaitGroup
	results := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get("model.gob")
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 7, v)
	}
	// Late arrivals either joined the flight or hit the map.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCacheDoesNotMemoizeErrors(t *testing.T) {
	var calls int
	c := NewCache(func(key string) (string, error) {
		calls++
		if calls == 1 {
			return "", assert.AnError
		}
		return "ok", nil
	})

	_, err := c.Get("k")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 0, c.Len())

	v, err := c.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
}

func TestCacheHooks(t *testing.T) {
	var hits, misses []string
	c := NewCache(func(key string) (int, error) { return len(key), nil })
	c.OnHit = func(k string) { hits = append(hits, k) }
	c.OnMiss = func(k string) { misses = append(misses, k) }

	_, _ = c.Get("x")
	_, _ = c.Get("x")
	_, _ = c.Get("yy")

	assert.Equal(t, []string{"x"}, hits)
	assert.Equal(t, []string{"x", "yy"}, misses)
}

func TestStoreFromFiles(t *testing.T) {
	dir := t.TempDir()
	features := filepath.Join(dir, "features.csv")
	require.NoError(t, os.WriteFile(features, []byte("a,b\n0,0\n1,1\n2,5\n"), 0o644))

	f := iforest.New(iforest.WithTrees(10))
	require.NoError(t, f.Fit([][]float64{{0, 0}, {1, 1}, {2, 5}}))
	model := filepath.Join(dir, "model.gob")
	require.NoError(t, detectors.SaveFile(model, f))

	s := NewStore()

	tbl, err := s.Table(features)
	require.NoError(t, err)
	again, err := s.Table(features)
	require.NoError(t, err)
	assert.Same(t, tbl, again)
	assert.Equal(t, 3, tbl.Len())

	m, err := s.Model(model)
	require.NoError(t, err)
	labels, err := m.Predict([][]float64{{1, 1}})
	require.NoError(t, err)
	assert.Len(t, labels, 1)

	_, err = s.Table(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, dataset.ErrDataLoad)
	_, err = s.Model(filepath.Join(dir, "missing.gob"))
	assert.ErrorIs(t, err, detectors.ErrModelLoad)
}

func TestStoreReadsNamedSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.xlsx")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := xlsx.NewWriter(f)
	require.NoError(t, w.WriteTable(&dataset.Table{
		Columns: []string{"events", "errors"},
		Rows:    [][]float64{{3, 0}, {9, 2}},
	}))
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	tbl, err := NewStore(lwio.WithSheet(xlsx.DefaultSheet)).Table(path)
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	_, err = NewStore(lwio.WithSheet("windows")).Table(path)
	assert.ErrorIs(t, err, dataset.ErrDataLoad)
}
