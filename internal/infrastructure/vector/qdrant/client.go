package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

// Client is a VectorStore backed by one Qdrant collection over REST.
type Client struct {
	baseURL    string
	collection string
	dim        int
	httpClient *http.Client

	ensureMu sync.Mutex
	ensured  bool
}

func New(baseURL, collection string, dimension int) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		dim:        dimension,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) Add(ctx context.Context, records ...domain.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]point, 0, len(records))
	for _, rec := range records {
		if len(rec.Vector) != c.dim {
			return fmt.Errorf("%w: record %s has %d, collection has %d", domain.ErrDimensionMismatch, rec.ID, len(rec.Vector), c.dim)
		}
		payload := make(map[string]any, len(rec.Metadata)+1)
		for k, v := range rec.Metadata {
			payload[k] = v
		}
		payload["chunk_id"] = rec.ID
		points = append(points, point{ID: pointID(rec.ID), Vector: rec.Vector, Payload: payload})
	}

	if err := c.ensureCollection(ctx); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPut, url, map[string]any{"points": points}, "upsert")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) Search(ctx context.Context, query []float32, topK int, threshold float64) ([]domain.VectorMatch, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(query) != c.dim {
		return nil, fmt.Errorf("%w: query has %d, collection has %d", domain.ErrDimensionMismatch, len(query), c.dim)
	}

	reqBody := map[string]any{
		"vector":          query,
		"limit":           topK,
		"with_payload":    true,
		"score_threshold": threshold,
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPost, url, reqBody, "search")
	if err != nil {
		// A missing collection means nothing was indexed yet.
		if hasStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.VectorMatch, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		if r.Score < threshold {
			continue
		}
		out = append(out, domain.VectorMatch{
			ID:       getStringPayload(r.Payload, "chunk_id"),
			Score:    r.Score,
			Metadata: r.Payload,
		})
	}
	return out, nil
}

func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+"/collections", nil, "health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) ensureCollection(ctx context.Context) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensured {
		return nil
	}

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     c.dim,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	resp, err := c.do(ctx, http.MethodPut, url, reqBody, "ensure collection")
	if err != nil {
		if hasStatus(err, http.StatusConflict) {
			c.ensured = true
			return nil
		}
		return err
	}
	resp.Body.Close()
	c.ensured = true
	return nil
}

// do sends a JSON request and returns the response for 2xx statuses only.
func (c *Client) do(ctx context.Context, method, url string, payload any, operation string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnavailable, "qdrant "+operation, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &StatusError{Operation: operation, StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}

type StatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, e.Body)
}

func hasStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// pointID maps arbitrary chunk ids onto the UUIDs Qdrant accepts.
func pointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
