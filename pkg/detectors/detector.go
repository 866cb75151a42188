// Package detectors defines the contract of pretrained unsupervised anomaly
// detectors and their on-disk artifact format.
package detectors

// Labels produced by Model.Predict.
const (
	Anomaly = -1
	Normal  = 1
)

// Model is a trained outlier detector as consumed by the dashboard.
type Model interface {
	// Predict returns one label per sample: Anomaly or Normal.
	Predict(data [][]float64) ([]int, error)

	// DecisionFunction returns one continuous score per sample. Lower values
	// are more anomalous; negative scores are predicted as anomalies.
	DecisionFunction(data [][]float64) ([]float64, error)
}

// Persistable is a model that can be written as an artifact.
type Persistable interface {
	// Kind names the decoder registered for this model type.
	Kind() string

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)
}

// Loadable restores a model from the payload written by Save.
type Loadable interface {
	Load(data []byte) error
}

// Config holds common configuration for detectors.
type Config struct {
	// Contamination is the expected proportion of anomalies in training data.
	// Zero selects the detector's automatic offset.
	Contamination float64
	// RandomSeed for reproducibility.
	RandomSeed int64
}

// DefaultConfig returns sensible defaults for detector configuration.
func DefaultConfig() Config {
	return Config{
		Contamination: 0.1,
		RandomSeed:    42,
	}
}
