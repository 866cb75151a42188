package detectors

import (
	"bytes"
	"encoding/gob"
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrModelLoad reports a model artifact that is missing, unreadable, of an
// unknown kind or not exposing the Model operations.
var ErrModelLoad = errors.New("model load error")

// artifactVersion is bumped when the envelope layout changes.
const artifactVersion = 1

// envelope is the gob-encoded wrapper stored on disk.
type envelope struct {
	Kind    string
	Version int
	Payload []byte
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]func() Loadable)
)

// Register makes a model kind decodable. It panics on duplicates, like
// database/sql.Register.
func Register(kind string, factory func() Loadable) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("detectors: Register factory is nil")
	}
	if _, dup := registry[kind]; dup {
		panic("detectors: Register called twice for kind " + kind)
	}
	registry[kind] = factory
}

// Kinds returns the registered model kinds, sorted.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Encode wraps the model payload in an artifact envelope.
func Encode(m Persistable) ([]byte, error) {
	payload, err := m.Save()
	if err != nil {
		return nil, errors.Wrapf(err, "save %s model", m.Kind())
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(envelope{
		Kind:    m.Kind(),
		Version: artifactVersion,
		Payload: payload,
	}); err != nil {
		return nil, errors.Wrap(err, "encode artifact")
	}
	return buf.Bytes(), nil
}

// Decode restores a model from an artifact produced by Encode.
func Decode(data []byte) (Model, error) {
	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "decode artifact: %v", err)
	}
	if env.Version != artifactVersion {
		return nil, errors.Wrapf(ErrModelLoad, "unsupported artifact version %d", env.Version)
	}

	registryMu.RLock()
	factory, ok := registry[env.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrModelLoad, "unknown model kind %q", env.Kind)
	}

	l := factory()
	if err := l.Load(env.Payload); err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "load %s model: %v", env.Kind, err)
	}

	m, ok := l.(Model)
	if !ok {
		return nil, errors.Wrapf(ErrModelLoad, "%s model does not provide Predict and DecisionFunction", env.Kind)
	}
	return m, nil
}

// LoadFile reads and decodes a model artifact.
func LoadFile(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(ErrModelLoad, "read %s: %v", path, err)
	}
	m, err := Decode(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return m, nil
}

// SaveFile encodes the model and writes it to path.
func SaveFile(path string, m Persistable) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
