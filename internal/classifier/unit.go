package classifier

import (
	"time"

	"github.com/sortdesk/mailtriage/internal/model"
)

// Unit pairs a fitted vectorizer with the model trained on its output.
// Exactly one unit is active at a time; the pair is replaced as a whole so a
// prediction can never see a vectorizer from one training run and weights
// from another.
type Unit struct {
	TrainedAt  time.Time
	Vectorizer *Vectorizer
	Model      *Model
	Version    int64
}

// Predict classifies the given text with this unit.
func (u *Unit) Predict(text string) (model.Label, error) {
	return u.Model.Predict(u.Vectorizer.Transform(text))
}
