// Package iforest implements the Isolation Forest algorithm for anomaly detection.
//
// Scores follow the usual isolation forest convention: ScoreSamples returns
// the negated anomaly score -2^(-E[h(x)]/c(n)), DecisionFunction shifts it by
// a fitted offset so that negative values are anomalies, and Predict maps the
// sign to detectors.Anomaly or detectors.Normal.
package iforest

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"github.com/hed1ad/logwatch/pkg/detectors"
)

// Kind is the artifact kind under which isolation forests are registered.
const Kind = "iforest"

// autoOffset is the decision offset used when no contamination is set.
const autoOffset = -0.5

// decisionTolerance absorbs the rounding left by averaging path lengths, so
// a sample whose mean path equals the normaliser lands exactly on 0.
const decisionTolerance = 1e-12

func init() {
	detectors.Register(Kind, func() detectors.Loadable { return New() })
}

var errNotTrained = errors.New("model not trained")

// IsolationForest implements unsupervised anomaly detection using isolation trees.
type IsolationForest struct {
	mu sync.RWMutex

	// Configuration
	nTrees        int
	sampleSize    int
	contamination float64
	maxDepth      int
	rng           *rand.Rand

	// Trained model
	trees     []*iTree
	nFeatures int
	trained   bool

	// Statistics from training
	avgPathLength float64
	offset        float64
}

// iTree is a single isolation tree stored as a flat node slice, root first.
type iTree struct {
	Nodes []Node
}

// Node is a node of an isolation tree. Leaves have Left == Right == -1.
type Node struct {
	Feature int
	Split   float64
	Left    int
	Right   int
	// Size is the number of training samples that reached the node.
	Size int
}

func (n *Node) isLeaf() bool {
	return n.Left < 0 && n.Right < 0
}

// Option configures an IsolationForest.
type Option func(*IsolationForest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *IsolationForest) {
		f.nTrees = n
	}
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) Option {
	return func(f *IsolationForest) {
		f.sampleSize = n
	}
}

// WithContamination sets the expected proportion of anomalies. Zero keeps
// the automatic offset of -0.5.
func WithContamination(c float64) Option {
	return func(f *IsolationForest) {
		f.contamination = c
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *IsolationForest) {
		f.rng = rand.New(rand.NewSource(seed))
	}
}

// WithConfig applies the common detector configuration.
func WithConfig(cfg detectors.Config) Option {
	return func(f *IsolationForest) {
		WithContamination(cfg.Contamination)(f)
		WithSeed(cfg.RandomSeed)(f)
	}
}

// New creates a new IsolationForest with the given options.
func New(opts ...Option) *IsolationForest {
	f := &IsolationForest{
		nTrees:        100,
		sampleSize:    256,
		contamination: 0,
		offset:        autoOffset,
		rng:           rand.New(rand.NewSource(42)),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Kind implements detectors.Persistable.
func (f *IsolationForest) Kind() string {
	return Kind
}

// Fit trains the Isolation Forest on the provided data.
func (f *IsolationForest) Fit(data [][]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(data) == 0 {
		return errors.New("empty training data")
	}
	if f.nTrees <= 0 || f.sampleSize <= 0 {
		return errors.Errorf("invalid configuration: trees=%d sample size=%d", f.nTrees, f.sampleSize)
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	if nFeatures == 0 {
		return errors.New("training data has no features")
	}
	for i, row := range data {
		if len(row) != nFeatures {
			return errors.Errorf("sample %d has %d features, expected %d", i, len(row), nFeatures)
		}
	}

	// Adjust sample size if needed
	sampleSize := f.sampleSize
	if sampleSize > nSamples {
		sampleSize = nSamples
	}
	f.nFeatures = nFeatures
	f.maxDepth = int(math.Ceil(math.Log2(math.Max(float64(sampleSize), 2))))

	// Build trees
	f.trees = make([]*iTree, f.nTrees)
	for i := 0; i < f.nTrees; i++ {
		// Sample without replacement
		indices := f.rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}

		t := &iTree{}
		f.buildNode(t, sample, 0)
		f.trees[i] = t
	}

	// Calculate average path length for normalization
	f.avgPathLength = averagePathLength(float64(sampleSize))
	f.trained = true

	// Set decision offset based on contamination
	f.offset = autoOffset
	if f.contamination > 0 {
		scores := f.scoreSamples(data)
		f.offset = detectors.Quantile(scores, f.contamination)
	}

	return nil
}

// buildNode appends the subtree for data to t and returns its index.
func (f *IsolationForest) buildNode(t *iTree, data [][]float64, depth int) int {
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1, Size: len(data)})

	// Terminal conditions
	if depth >= f.maxDepth || len(data) <= 1 {
		return idx
	}

	// Random feature among those that still vary
	feature, minVal, maxVal := -1, 0.0, 0.0
	for _, candidate := range f.rng.Perm(f.nFeatures) {
		lo, hi := data[0][candidate], data[0][candidate]
		for _, row := range data[1:] {
			if row[candidate] < lo {
				lo = row[candidate]
			}
			if row[candidate] > hi {
				hi = row[candidate]
			}
		}
		if lo != hi {
			feature, minVal, maxVal = candidate, lo, hi
			break
		}
	}

	// All samples identical: nothing left to isolate
	if feature < 0 {
		return idx
	}

	// Random split value
	splitValue := minVal + f.rng.Float64()*(maxVal-minVal)

	// Partition data
	var leftData, rightData [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	left := f.buildNode(t, leftData, depth+1)
	right := f.buildNode(t, rightData, depth+1)

	n := &t.Nodes[idx]
	n.Feature = feature
	n.Split = splitValue
	n.Left = left
	n.Right = right

	return idx
}

// ScoreSamples returns the negated anomaly score of each sample. Values lie
// in [-1, 0]; lower is more anomalous.
func (f *IsolationForest) ScoreSamples(data [][]float64) ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if err := f.check(data); err != nil {
		return nil, err
	}
	return f.scoreSamples(data), nil
}

// DecisionFunction returns ScoreSamples shifted by the fitted offset.
// Negative values are anomalies; values within decisionTolerance of the
// boundary are reported as exactly 0.
func (f *IsolationForest) DecisionFunction(data [][]float64) ([]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if err := f.check(data); err != nil {
		return nil, err
	}

	scores := f.scoreSamples(data)
	for i := range scores {
		scores[i] -= f.offset
		if math.Abs(scores[i]) < decisionTolerance {
			scores[i] = 0
		}
	}
	return scores, nil
}

// Predict labels each sample detectors.Anomaly when its decision score is
// negative and detectors.Normal otherwise.
func (f *IsolationForest) Predict(data [][]float64) ([]int, error) {
	scores, err := f.DecisionFunction(data)
	if err != nil {
		return nil, err
	}

	labels := make([]int, len(scores))
	for i, s := range scores {
		if s < 0 {
			labels[i] = detectors.Anomaly
		} else {
			labels[i] = detectors.Normal
		}
	}
	return labels, nil
}

func (f *IsolationForest) check(data [][]float64) error {
	if !f.trained {
		return errNotTrained
	}
	for i, sample := range data {
		if len(sample) != f.nFeatures {
			return errors.Errorf("sample %d has %d features, model expects %d", i, len(sample), f.nFeatures)
		}
	}
	return nil
}

func (f *IsolationForest) scoreSamples(data [][]float64) []float64 {
	norm := f.avgPathLength
	if norm == 0 {
		norm = 1
	}

	scores := make([]float64, len(data))
	for i, sample := range data {
		// Average path length across all trees
		var totalPath float64
		for _, tree := range f.trees {
			totalPath += tree.pathLength(sample)
		}
		avgPath := totalPath / float64(len(f.trees))

		scores[i] = -math.Pow(2, -avgPath/norm)
	}
	return scores
}

// pathLength calculates the path length for a sample in a tree.
func (t *iTree) pathLength(sample []float64) float64 {
	depth := 0
	n := &t.Nodes[0]
	for !n.isLeaf() {
		if sample[n.Feature] < n.Split {
			n = &t.Nodes[n.Left]
		} else {
			n = &t.Nodes[n.Right]
		}
		depth++
	}
	// Leaf node: add expected path length for remaining isolation
	return float64(depth) + averagePathLength(float64(n.Size))
}

// averagePathLength returns the average path length of unsuccessful search in BST.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	if n <= 2 {
		return 1
	}
	// c(n) = 2*H(n-1) - 2*(n-1)/n, where H is harmonic number
	// Approximation: H(n) ≈ ln(n) + 0.5772156649 (Euler-Mascheroni constant)
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

// snapshot is the gob payload of a trained forest.
type snapshot struct {
	NTrees        int
	SampleSize    int
	Contamination float64
	MaxDepth      int
	NFeatures     int
	AvgPathLength float64
	Offset        float64
	Trees         [][]Node
}

// Save serializes the trained model.
func (f *IsolationForest) Save() ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.trained {
		return nil, errNotTrained
	}

	s := snapshot{
		NTrees:        f.nTrees,
		SampleSize:    f.sampleSize,
		Contamination: f.contamination,
		MaxDepth:      f.maxDepth,
		NFeatures:     f.nFeatures,
		AvgPathLength: f.avgPathLength,
		Offset:        f.offset,
		Trees:         make([][]Node, len(f.trees)),
	}
	for i, t := range f.trees {
		s.Trees[i] = t.Nodes
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load deserializes a trained model.
func (f *IsolationForest) Load(data []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	if len(s.Trees) == 0 || s.NFeatures <= 0 {
		return errors.New("artifact holds no trained trees")
	}
	for i, nodes := range s.Trees {
		if err := validateTree(nodes, s.NFeatures); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nTrees = s.NTrees
	f.sampleSize = s.SampleSize
	f.contamination = s.Contamination
	f.maxDepth = s.MaxDepth
	f.nFeatures = s.NFeatures
	f.avgPathLength = s.AvgPathLength
	f.offset = s.Offset
	f.trees = make([]*iTree, len(s.Trees))
	for i, nodes := range s.Trees {
		f.trees[i] = &iTree{Nodes: nodes}
	}
	f.trained = true

	return nil
}

// validateTree rejects node references that would panic during traversal.
func validateTree(nodes []Node, nFeatures int) error {
	if len(nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range nodes {
		if n.isLeaf() {
			continue
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(nodes) || n.Right >= len(nodes) {
			return errors.Errorf("node %d has invalid children", i)
		}
		if n.Feature < 0 || n.Feature >= nFeatures {
			return errors.Errorf("node %d splits on unknown feature %d", i, n.Feature)
		}
	}
	return nil
}

// Offset returns the fitted decision offset.
func (f *IsolationForest) Offset() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.offset
}

// NumFeatures returns the feature count the model was trained on.
func (f *IsolationForest) NumFeatures() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nFeatures
}
