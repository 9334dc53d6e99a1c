// Package classifier wraps the external emotion/intent classification
// service. Classification is consumed by the routing policy as a pure call;
// this package only owns the transport, timeout, and bounded retries.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/seedling-ai/companion/internal/model"
	"github.com/seedling-ai/companion/internal/retry"
)

// ErrUnavailable marks classifier failures the turn can recover from by
// falling back to a neutral classification.
var ErrUnavailable = errors.New("classifier unavailable")

// Classifier labels a piece of text with an emotion and a 0..10 intensity.
type Classifier interface {
	Classify(ctx context.Context, text string) (model.Classification, error)
}

// Func adapts a plain function to the Classifier interface.
type Func func(ctx context.Context, text string) (model.Classification, error)

func (f Func) Classify(ctx context.Context, text string) (model.Classification, error) {
	return f(ctx, text)
}

// HTTPClassifier calls a JSON-over-HTTP emotion service.
type HTTPClassifier struct {
	baseURL string
	apiKey  string
	client  *http.Client
	retry   retry.Config
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label     string  `json:"label"`
	Intensity float64 `json:"intensity"`
}

// NewHTTPClassifier creates a classifier client for the given endpoint.
func NewHTTPClassifier(baseURL, apiKey string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClassifier{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		retry:   retry.Default,
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (model.Classification, error) {
	var result classifyResponse
	err := retry.Do(ctx, c.retry, func() error {
		body, _ := json.Marshal(classifyRequest{Text: text})
		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/classify", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != 200 {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(b))
		}
		return json.NewDecoder(resp.Body).Decode(&result)
	})
	if err != nil {
		return model.Classification{}, err
	}

	cls := model.Classification{Label: result.Label, Intensity: result.Intensity}
	if cls.Intensity < 0 {
		cls.Intensity = 0
	}
	if cls.Intensity > 10 {
		cls.Intensity = 10
	}
	return cls, nil
}

// Neutral is the recoverable default used when the classifier is down: no
// label, zero intensity, so routing falls through to its keyword rules.
func Neutral() model.Classification {
	return model.Classification{Label: "neutral", Intensity: 0}
}
