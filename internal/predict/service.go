package predict

import (
	"context"
	"fmt"
	"log"
	"strings"

	"ouvidoria/internal/schema"
)

// Risk bands for the dissatisfaction probability.
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// Result statuses.
const (
	StatusOK      = "ok"
	StatusInvalid = "invalid"
	StatusError   = "error"
)

// Required lists the inputs a prediction cannot be made without. The subject
// is optional and defaults to NoSubject.
var Required = []string{
	schema.ManifestationType,
	schema.AgencyName,
	schema.Gender,
	schema.AgeBracket,
	schema.RaceColor,
	schema.ComplainantState,
}

// Result is what a caller shows the user. Probability and Risk are set only
// when Status is StatusOK.
type Result struct {
	Status      string   `json:"status"`
	Message     string   `json:"message,omitempty"`
	Probability float64  `json:"probability"`
	Risk        string   `json:"risk,omitempty"`
	Missing     []string `json:"missing,omitempty"`
}

// Band maps a dissatisfaction probability to a risk band.
func Band(p float64) string {
	switch {
	case p > 0.6:
		return RiskHigh
	case p > 0.4:
		return RiskMedium
	}
	return RiskLow
}

// Service scores one complaint at a time. A nil Scorer means no model is
// loaded; every prediction then reports an error.
type Service struct {
	Scorer Scorer
}

// Predict never returns an error: validation problems and scorer failures
// are reported in the Result.
func (s *Service) Predict(ctx context.Context, inputs map[string]string) Result {
	if s == nil || s.Scorer == nil {
		return Result{Status: StatusError, Message: "model not loaded"}
	}
	var missing []string
	for _, k := range Required {
		if strings.TrimSpace(inputs[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return Result{
			Status:  StatusInvalid,
			Message: "fill in every field: " + strings.Join(missing, ", "),
			Missing: missing,
		}
	}

	probs, err := s.Scorer.PredictProbabilities(ctx, Adapt(inputs))
	if err == nil && len(probs) != 1 {
		err = fmt.Errorf("scorer returned %d rows, want 1", len(probs))
	}
	if err != nil {
		log.Printf("predict: %v", err)
		return Result{Status: StatusError, Message: "prediction failed: " + err.Error()}
	}
	p := probs[0][1]
	return Result{
		Status:      StatusOK,
		Message:     fmt.Sprintf("dissatisfaction probability %.1f%%", p*100),
		Probability: p,
		Risk:        Band(p),
	}
}
