package engine

import (
	"context"

	"github.com/sortdesk/mailtriage/internal/classifier"
	"github.com/sortdesk/mailtriage/internal/model"
)

// Classifier is the contract the engine needs from the classifier store.
// Retrain builds a candidate unit without touching the active one; the engine
// decides when to Activate it.
type Classifier interface {
	Predict(text string) (model.Label, error)
	Retrain(ctx context.Context, samples []model.TrainingSample) (*classifier.Unit, error)
	Activate(unit *classifier.Unit) error
	Ready() bool
}
