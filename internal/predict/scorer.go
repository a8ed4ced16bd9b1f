package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Scorer returns [p(satisfied), p(dissatisfied)] for every row of ft.
type Scorer interface {
	PredictProbabilities(ctx context.Context, ft FeatureTable) ([][2]float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, ft FeatureTable) ([][2]float64, error)

func (f ScorerFunc) PredictProbabilities(ctx context.Context, ft FeatureTable) ([][2]float64, error) {
	return f(ctx, ft)
}

// HTTPScorer posts the feature table as JSON to an external scoring service
// and expects {"probabilities": [[p0, p1], ...]} back.
type HTTPScorer struct {
	URL    string
	Client *http.Client
}

// NewHTTPScorer returns a scorer with a bounded client timeout.
func NewHTTPScorer(url string) *HTTPScorer {
	return &HTTPScorer{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

type scoreResponse struct {
	Probabilities [][2]float64 `json:"probabilities"`
	Error         string       `json:"error,omitempty"`
}

func (s *HTTPScorer) PredictProbabilities(ctx context.Context, ft FeatureTable) ([][2]float64, error) {
	body, err := json.Marshal(ft)
	if err != nil {
		return nil, fmt.Errorf("encode features: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scorer: %w", err)
	}
	defer resp.Body.Close()

	var out scoreResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("scorer: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return nil, fmt.Errorf("scorer: status %d: %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("scorer: status %d", resp.StatusCode)
	}
	if len(out.Probabilities) != len(ft.Rows) {
		return nil, fmt.Errorf("scorer: %d probabilities for %d rows", len(out.Probabilities), len(ft.Rows))
	}
	return out.Probabilities, nil
}
