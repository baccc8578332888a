package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/teampulse/teampulse-backend/internal/pkg/httpx"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

// Embedder turns record text into vectors. The embedding is a pure function
// of the input text; the pipeline treats the model as an external service.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	embedModel string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (Embedder, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	embedModel := strings.TrimSpace(os.Getenv("OPENAI_EMBED_MODEL"))
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}

	timeoutSec := utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 60, log)
	maxRetries := utils.GetEnvAsInt("OPENAI_MAX_RETRIES", 4, log)

	return &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	req := map[string]any{
		"model": c.embedModel,
		"input": inputs,
	}
	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/embeddings", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embeddings response size mismatch: want=%d got=%d", len(inputs), len(resp.Data))
	}

	out := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings response index out of range: %d", d.Index)
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	for i, vec := range out {
		if len(vec) == 0 {
			return nil, fmt.Errorf("embeddings response missing index %d", i)
		}
	}
	return out, nil
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("openai request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}
