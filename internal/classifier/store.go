package classifier

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sortdesk/mailtriage/internal/common"
	"github.com/sortdesk/mailtriage/internal/model"
)

// MinTrainingSamples is the minimum number of distinct labeled messages a
// retrain requires.
const MinTrainingSamples = 5

// Store owns the active classifier unit. Predictions read the unit through an
// atomic pointer, so a retrain-and-activate in flight is invisible to them:
// they finish against the old unit or start against the new one, never a mix.
type Store struct {
	active         atomic.Pointer[Unit]
	modelPath      string
	vectorizerPath string
	persistMu      sync.Mutex
}

// NewStore creates a classifier store persisting to the given artifact paths.
func NewStore(modelPath, vectorizerPath string) *Store {
	return &Store{
		modelPath:      modelPath,
		vectorizerPath: vectorizerPath,
	}
}

// Ready reports whether a trained unit is active.
func (s *Store) Ready() bool {
	return s.active.Load() != nil
}

// Version returns the active unit's version, or 0 when untrained.
func (s *Store) Version() int64 {
	if u := s.active.Load(); u != nil {
		return u.Version
	}
	return 0
}

// Predict classifies the given text. With no active unit it falls back to the
// keyword rule ranking, so triage stays usable before the first training run.
func (s *Store) Predict(text string) (model.Label, error) {
	unit := s.active.Load()
	if unit == nil {
		return RuleRank(text), nil
	}
	return unit.Predict(text)
}

// Retrain builds a fresh vectorizer and model from the samples. It never
// touches the active unit; the caller activates the returned unit once it is
// satisfied with it, so a failed retrain leaves the old classifier serving.
func (s *Store) Retrain(ctx context.Context, samples []model.TrainingSample) (*Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(samples) < MinTrainingSamples {
		return nil, fmt.Errorf("%w: have %d samples, need at least %d",
			common.ErrInsufficientData, len(samples), MinTrainingSamples)
	}

	labelSet := make(map[model.Label]bool)
	for _, sample := range samples {
		labelSet[sample.Label] = true
	}
	if len(labelSet) < 2 {
		return nil, fmt.Errorf("%w: all %d samples share one label",
			common.ErrInsufficientData, len(samples))
	}

	docs := make([]string, len(samples))
	labels := make([]model.Label, len(samples))
	for i, sample := range samples {
		docs[i] = sample.Text()
		labels[i] = sample.Label
	}

	vectorizer := FitVectorizer(docs)
	vectors := make([][]float64, len(docs))
	for i, doc := range docs {
		vectors[i] = vectorizer.Transform(doc)
	}

	trained, err := FitModel(vectors, labels)
	if err != nil {
		return nil, fmt.Errorf("failed to fit model: %w", err)
	}

	return &Unit{
		Vectorizer: vectorizer,
		Model:      trained,
		Version:    s.Version() + 1,
		TrainedAt:  time.Now(),
	}, nil
}

// Activate atomically swaps the active unit and persists it to disk. The swap
// happens first: a persistence failure leaves the new unit serving and is
// reported to the caller.
func (s *Store) Activate(unit *Unit) error {
	s.active.Store(unit)
	slog.Info("Activated classifier unit",
		"version", unit.Version,
		"vocabulary_size", unit.Vectorizer.Dim(),
		"classes", len(unit.Model.Classes))

	if err := s.persist(unit); err != nil {
		return fmt.Errorf("classifier active but not persisted: %w", err)
	}
	return nil
}

// Artifact wrappers carry the version so a model file and vectorizer file
// from different training runs can be detected after a partial write.
type modelArtifact struct {
	TrainedAt time.Time
	Model     *Model
	Version   int64
}

type vectorizerArtifact struct {
	Vectorizer *Vectorizer
	Version    int64
}

func (s *Store) persist(unit *Unit) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := writeGob(s.modelPath, modelArtifact{
		Version:   unit.Version,
		TrainedAt: unit.TrainedAt,
		Model:     unit.Model,
	}); err != nil {
		return fmt.Errorf("failed to write model artifact: %w", err)
	}

	if err := writeGob(s.vectorizerPath, vectorizerArtifact{
		Version:    unit.Version,
		Vectorizer: unit.Vectorizer,
	}); err != nil {
		return fmt.Errorf("failed to write vectorizer artifact: %w", err)
	}

	return nil
}

// Load restores the persisted unit, if any. Missing artifacts leave the store
// empty; mismatched artifact versions are loaded anyway and surface as a
// feature size mismatch at predict time rather than silently truncating.
func (s *Store) Load() error {
	var ma modelArtifact
	var va vectorizerArtifact

	okModel, err := readGob(s.modelPath, &ma)
	if err != nil {
		return fmt.Errorf("failed to read model artifact: %w", err)
	}
	okVectorizer, err := readGob(s.vectorizerPath, &va)
	if err != nil {
		return fmt.Errorf("failed to read vectorizer artifact: %w", err)
	}

	if !okModel || !okVectorizer {
		if okModel != okVectorizer {
			slog.Warn("Only one classifier artifact present, starting untrained",
				"model", okModel, "vectorizer", okVectorizer)
		}
		return nil
	}

	if ma.Version != va.Version {
		slog.Warn("Classifier artifact versions differ",
			"model_version", ma.Version,
			"vectorizer_version", va.Version)
	}

	s.active.Store(&Unit{
		Vectorizer: va.Vectorizer,
		Model:      ma.Model,
		Version:    ma.Version,
		TrainedAt:  ma.TrainedAt,
	})

	slog.Info("Loaded classifier unit", "version", ma.Version, "trained_at", ma.TrainedAt)
	return nil
}

func writeGob(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := gob.NewEncoder(tmp).Encode(value); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func readGob(path string, value any) (bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()

	if err := gob.NewDecoder(f).Decode(value); err != nil {
		return false, err
	}
	return true, nil
}
