package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/logwatch/pkg/detectors/iforest"
)

// MockModel is a mock implementation of detectors.Model.
type MockModel struct {
	mock.Mock
}

func (m *MockModel) Predict(data [][]float64) ([]int, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int), args.Error(1)
}

func (m *MockModel) DecisionFunction(data [][]float64) ([]float64, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float64), args.Error(1)
}

func rows(n int) [][]float64 {
	data := make([][]float64, n)
	for i := range data {
		data[i] = []float64{float64(i)}
	}
	return data
}

func TestScore(t *testing.T) {
	data := rows(4)
	m := new(MockModel)
	m.On("Predict", data).Return([]int{1, -1, 1, 1}, nil)
	m.On("DecisionFunction", data).Return([]float64{0.1, -0.3, 0.2, 0.05}, nil)

	res, err := Score(m, data, 0.5)
	require.NoError(t, err)

	assert.Equal(t, []int{1, -1, 1, 1}, res.Labels)
	assert.Equal(t, []float64{0.1, -0.3, 0.2, 0.05}, res.Scores)
	assert.InDelta(t, 0.075, res.Threshold, 1e-12)
	assert.Equal(t, 1, res.Anomalies())
	m.AssertExpectations(t)
}

func TestScoreOutputMismatch(t *testing.T) {
	data := rows(3)

	tests := []struct {
		name   string
		labels []int
		scores []float64
	}{
		{name: "short labels", labels: []int{1, 1}, scores: []float64{0, 0, 0}},
		{name: "long scores", labels: []int{1, 1, 1}, scores: []float64{0, 0, 0, 0}},
		{name: "label out of domain", labels: []int{1, 0, 1}, scores: []float64{0, 0, 0}},
		{name: "nan score", labels: []int{1, 1, -1}, scores: []float64{0.1, math.NaN(), -0.4}},
		{name: "infinite score", labels: []int{1, 1, -1}, scores: []float64{0.1, 0.2, math.Inf(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockModel)
			m.On("Predict", data).Return(tt.labels, nil)
			m.On("DecisionFunction", data).Return(tt.scores, nil).Maybe()

			_, err := Score(m, data, DefaultQuantile)
			assert.ErrorIs(t, err, ErrModelOutputMismatch)
		})
	}
}

func TestScoreModelError(t *testing.T) {
	data := rows(2)
	m := new(MockModel)
	m.On("Predict", data).Return(nil, assert.AnError)

	_, err := Score(m, data, DefaultQuantile)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, ErrModelOutputMismatch)
}

func TestScoreRejectsBadQuantile(t *testing.T) {
	_, err := Score(new(MockModel), rows(1), 1.5)
	assert.Error(t, err)
}

func TestThresholdMonotonicity(t *testing.T) {
	data := rows(100)
	scores := make([]float64, 100)
	labels := make([]int, 100)
	for i := range scores {
		scores[i] = float64((i*37)%100)/100 - 0.2
		labels[i] = 1
	}
	m := new(MockModel)
	m.On("Predict", data).Return(labels, nil)
	m.On("DecisionFunction", data).Return(scores, nil)

	low, err := Score(m, data, 0.03)
	require.NoError(t, err)
	high, err := Score(m, data, 0.10)
	require.NoError(t, err)

	assert.LessOrEqual(t, low.Threshold, high.Threshold)
}

func TestScoreIsolationForest(t *testing.T) {
	data := [][]float64{{-0.5, -0.5}, {-0.5, -0.5}, {-0.5, -0.5}, {-0.5, -0.5}, {2, 2}}
	f := iforest.New(iforest.WithTrees(20), iforest.WithSeed(3))
	require.NoError(t, f.Fit(data))

	first, err := Score(f, data, DefaultQuantile)
	require.NoError(t, err)
	second, err := Score(f, data, DefaultQuantile)
	require.NoError(t, err)

	assert.Len(t, first.Labels, len(data))
	assert.Len(t, first.Scores, len(data))
	assert.Equal(t, first, second)
	assert.GreaterOrEqual(t, first.Anomalies(), 1)
	assert.Equal(t, -1, first.Labels[4])
	for i := 0; i < 4; i++ {
		assert.Less(t, first.Scores[4], first.Scores[i])
	}
}
