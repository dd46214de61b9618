package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pscheid92/brandpulse/internal/domain"
)

// neutralThreshold: the upstream model is two-class (positive/negative).
// A winning score below this means the model is effectively undecided and
// the post is reported neutral at 0.5 confidence.
const neutralThreshold = 0.55

const methodHuggingFace = "huggingface"

// HuggingFaceClient calls the HuggingFace inference API for a single
// sentiment model. It maps transport and status failures onto the domain
// error taxonomy; retry and backpressure live in the Adapter, not here.
type HuggingFaceClient struct {
	httpClient *http.Client
	url        string
	apiKey     string
	model      string
}

func NewHuggingFaceClient(url, apiKey, model string) *HuggingFaceClient {
	return &HuggingFaceClient{
		// The overall deadline comes from the caller's context; this is a
		// safety net against contexts without one.
		httpClient: &http.Client{Timeout: 30 * time.Second},
		url:        url,
		apiKey:     apiKey,
		model:      model,
	}
}

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (c *HuggingFaceClient) Classify(ctx context.Context, text string) (domain.SentimentResult, error) {
	var zero domain.SentimentResult

	body, err := json.Marshal(inferenceRequest{Inputs: text})
	if err != nil {
		return zero, fmt.Errorf("failed to marshal inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("failed to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts, cancellations and connection failures are all transient
		// from the pipeline's point of view.
		return zero, fmt.Errorf("inference call failed: %v: %w", err, domain.ErrModelUnavailable)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decoding
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return zero, fmt.Errorf("inference API returned status %d: %w", resp.StatusCode, domain.ErrModelUnavailable)
	default:
		return zero, fmt.Errorf("inference API rejected input with status %d: %w", resp.StatusCode, domain.ErrInference)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return zero, fmt.Errorf("failed to read inference response: %v: %w", err, domain.ErrModelUnavailable)
	}

	scores, err := decodeScores(payload)
	if err != nil {
		return zero, fmt.Errorf("undecodable inference response: %v: %w", err, domain.ErrModelUnavailable)
	}

	return c.mapScores(scores)
}

// decodeScores accepts both response shapes the inference API produces:
// [[{label,score},...]] for single inputs and [{label,score},...].
func decodeScores(payload []byte) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(payload, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return nested[0], nil
	}

	var flat []labelScore
	if err := json.Unmarshal(payload, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}

	return nil, errors.New("no scores in response")
}

func (c *HuggingFaceClient) mapScores(scores []labelScore) (domain.SentimentResult, error) {
	var zero domain.SentimentResult

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}

	label := domain.Label(strings.ToLower(best.Label))
	if !label.Valid() {
		return zero, fmt.Errorf("unknown label %q from inference API: %w", best.Label, domain.ErrInference)
	}

	confidence := best.Score
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	if confidence < neutralThreshold {
		label = domain.LabelNeutral
		confidence = 0.5
	}

	return domain.SentimentResult{
		Label:        label,
		Confidence:   confidence,
		ModelVersion: c.model,
		Method:       methodHuggingFace,
	}, nil
}
