// Package dogapi is a client for the public dog.ceo breed API.
package dogapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/breedquiz/internal/domain/model"
	"github.com/okian/breedquiz/pkg/logger"
	"github.com/okian/breedquiz/pkg/metrics"
)

const (
	// DefaultBaseURL is the public dog.ceo host.
	DefaultBaseURL = "https://dog.ceo"
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second

	endpointCatalog = "breeds_list"
	endpointImage   = "breed_image"

	statusSuccess = "success"
	maxBodyBytes  = 1 << 20
)

// Client talks to the dog.ceo API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	logger  logger.Logger
}

// New creates a client with defaults applied before opts.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  logger.NamedOrNop("dogapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the host the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

type catalogResponse struct {
	Message map[string][]string `json:"message"`
	Status  string              `json:"status"`
}

type imageResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Catalog fetches the full breed to sub-breed listing.
func (c *Client) Catalog(ctx context.Context) (model.Catalog, error) {
	var resp catalogResponse
	if err := c.get(ctx, endpointCatalog, "/api/breeds/list/all", &resp); err != nil {
		return nil, err
	}
	if resp.Status != statusSuccess {
		return nil, model.DecodeError(fmt.Sprintf("breed list: unexpected status %q", resp.Status), nil)
	}
	if resp.Message == nil {
		return nil, model.DecodeError("breed list: missing message", nil)
	}
	return model.Catalog(resp.Message), nil
}

// ImageFor fetches a random image URL for breed.
func (c *Client) ImageFor(ctx context.Context, breed string) (string, error) {
	breed = strings.ToLower(strings.TrimSpace(breed))
	if breed == "" {
		return "", model.InvalidInputError("breed must not be empty")
	}

	var resp imageResponse
	path := "/api/breed/" + url.PathEscape(breed) + "/images/random"
	if err := c.get(ctx, endpointImage, path, &resp); err != nil {
		return "", err
	}
	if resp.Status != statusSuccess {
		return "", model.DecodeError(fmt.Sprintf("breed image: unexpected status %q", resp.Status), nil)
	}
	if resp.Message == "" {
		return "", model.DecodeError("breed image: empty url", nil)
	}
	return resp.Message, nil
}

// get performs a GET and decodes a 2xx JSON body into out. Transport errors
// and non-2xx replies are network errors; malformed bodies are decode errors.
func (c *Client) get(ctx context.Context, endpoint, path string, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeError
		}
		metrics.RecordUpstreamRequest(endpoint, outcome, float64(time.Since(start).Milliseconds()))
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return model.NetworkError("failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn(ctx, "dog api request failed",
			logger.String("endpoint", endpoint),
			logger.Error(err),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return model.NetworkError("request timed out", err)
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		return model.NetworkError(err.Error(), err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg := fmt.Sprintf("dog api returned HTTP %d", res.StatusCode)
		if detail := upstreamMessage(res.Body); detail != "" {
			msg += ": " + detail
		}
		c.logger.Warn(ctx, "dog api returned non-2xx",
			logger.String("endpoint", endpoint),
			logger.Int("status", res.StatusCode),
		)
		return model.NetworkError(msg, nil)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return model.NetworkError("failed to read response", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return model.DecodeError("malformed response from dog api", err)
	}
	return nil
}

// upstreamMessage extracts the message of a {"status":"error","message":"..."} body.
func upstreamMessage(body io.Reader) string {
	var e struct {
		Message any `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(body, maxBodyBytes)).Decode(&e); err != nil {
		return ""
	}
	msg, _ := e.Message.(string)
	return strings.TrimSpace(msg)
}
