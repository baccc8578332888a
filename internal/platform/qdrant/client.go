package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
)

const maxErrorBodyBytes = 1024

// Point is one upsert unit: deterministic ID, embedding, payload.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Client is a thin REST client over one Qdrant node. Collections are
// addressed per call; the pipeline keeps one collection per source category.
type Client struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

func NewClient(log *logger.Logger, cfg Config) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	c := &Client{
		log:     log.With("service", "QdrantClient"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	if err := c.verifyReady(context.Background()); err != nil {
		return nil, err
	}

	c.log.Info("qdrant client ready",
		"url", c.baseURL,
		"vector_dim", cfg.VectorDim,
		"distance", cfg.Distance,
	)
	return c, nil
}

func (c *Client) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, "", OperationErrorTransportFailed, "build ready request failed", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "", "qdrant ready check failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

// CollectionExists reports whether the named collection is present.
func (c *Client) CollectionExists(ctx context.Context, collection string) (bool, error) {
	const op = "collection_exists"
	var result struct {
		Exists bool `json:"exists"`
	}
	path := "/collections/" + collection + "/exists"
	if err := c.doJSON(ctx, op, collection, http.MethodGet, path, nil, &result); err != nil {
		return false, err
	}
	return result.Exists, nil
}

// CreateCollection creates the named collection with the configured
// dimensionality and similarity metric.
func (c *Client) CreateCollection(ctx context.Context, collection string) error {
	const op = "create_collection"
	req := map[string]any{
		"vectors": map[string]any{
			"size":     c.cfg.VectorDim,
			"distance": c.cfg.Distance,
		},
	}
	return c.doJSON(ctx, op, collection, http.MethodPut, "/collections/"+collection, req, nil)
}

// EnsureCollection creates the collection when it does not exist yet, making
// uploads idempotent with respect to collection existence.
func (c *Client) EnsureCollection(ctx context.Context, collection string) error {
	exists, err := c.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	c.log.Info("creating qdrant collection", "collection", collection)
	return c.CreateCollection(ctx, collection)
}

func (c *Client) DeleteCollection(ctx context.Context, collection string) error {
	const op = "delete_collection"
	return c.doJSON(ctx, op, collection, http.MethodDelete, "/collections/"+collection, nil, nil)
}

// Upsert writes points by ID. Re-upserting an ID overwrites the stored point.
func (c *Client) Upsert(ctx context.Context, collection string, points []Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if strings.TrimSpace(p.ID) == "" {
			return opErr(op, collection, OperationErrorValidation, "point id is required", nil)
		}
		if len(p.Vector) == 0 {
			return opErr(op, collection, OperationErrorValidation,
				fmt.Sprintf("point %q has empty vector", p.ID), nil)
		}
		if c.cfg.VectorDim > 0 && len(p.Vector) != c.cfg.VectorDim {
			return opErr(op, collection, OperationErrorValidation,
				fmt.Sprintf("point %q dimension mismatch: expected=%d got=%d",
					p.ID, c.cfg.VectorDim, len(p.Vector)), nil)
		}
	}
	req := map[string]any{"points": points}
	path := "/collections/" + collection + "/points?wait=true"
	return c.doJSON(ctx, op, collection, http.MethodPut, path, req, nil)
}

// Count returns the exact number of points matching the filter.
func (c *Client) Count(ctx context.Context, collection string, filter *Filter) (int, error) {
	const op = "count"
	req := map[string]any{"exact": true}
	if m := filter.AsMap(); m != nil {
		req["filter"] = m
	}
	var result struct {
		Count int `json:"count"`
	}
	path := "/collections/" + collection + "/points/count"
	if err := c.doJSON(ctx, op, collection, http.MethodPost, path, req, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

// RetrievePayload fetches a single point's payload by ID. A missing point is
// not an error: it returns (nil, nil).
func (c *Client) RetrievePayload(ctx context.Context, collection, id string) (map[string]any, error) {
	const op = "retrieve"
	var result struct {
		Payload map[string]any `json:"payload"`
	}
	path := "/collections/" + collection + "/points/" + id
	err := c.doJSON(ctx, op, collection, http.MethodGet, path, nil, &result)
	if err != nil {
		var opErrTyped *OperationError
		if errors.As(err, &opErrTyped) && opErrTyped.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return result.Payload, nil
}

func (c *Client) doJSON(ctx context.Context, op, collection, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, collection, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return opErr(op, collection, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, collection, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, collection, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			Collection: collection,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return opErr(op, collection, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(env.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorQueryFailed,
			Operation:  op,
			Collection: collection,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil {
		return nil
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return opErr(op, collection, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func classifyHTTPCallError(op, collection, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, collection, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, collection, OperationErrorTimeout, message, err)
	}
	return opErr(op, collection, OperationErrorTransportFailed, message, err)
}

// parseEnvelopeStatus returns a non-empty message when the envelope status
// signals an error. Qdrant encodes status either as the string "ok" or as an
// object carrying an error field.
func parseEnvelopeStatus(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if asString == "" || strings.EqualFold(asString, "ok") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", asString)
	}
	var asObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && asObject.Error != "" {
		return fmt.Sprintf("qdrant error=%q", asObject.Error)
	}
	return ""
}

func truncateBody(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > maxErrorBodyBytes {
		return s[:maxErrorBodyBytes] + "...(truncated)"
	}
	return s
}
