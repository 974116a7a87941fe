package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/segmentio/ksuid"
)

// maxResponseBytes bounds how much of a node response is read. A node
// that streams more than this is misbehaving.
const maxResponseBytes = 64 << 20

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 4
)

// HTTPSourceConfig configures an HTTPSource.
type HTTPSourceConfig struct {
	// Endpoint is the node's leaves URL, typically discovered from the
	// log's bag.
	Endpoint string

	// APIKey, when set, is sent as X-API-Key.
	APIKey string

	// Timeout bounds each attempt. Zero means 15s.
	Timeout time.Duration

	// MaxRetries caps retry attempts after the first. Zero means 4.
	MaxRetries uint64

	// RetryInterval is the initial backoff delay. Zero means the
	// backoff default.
	RetryInterval time.Duration

	// Client overrides the HTTP client. Timeout is ignored when set.
	Client *http.Client
}

// HTTPSource fetches leaves from a log node over HTTP. Server-side
// failures and transport errors are retried with exponential backoff;
// client-side rejections are not. Every request carries a per-source
// request ID so node operators can correlate a whole run.
type HTTPSource struct {
	endpoint      string
	apiKey        string
	client        *http.Client
	maxRetries    uint64
	retryInterval time.Duration
	requestID     string
}

// NewHTTPSource validates the endpoint and creates the source.
func NewHTTPSource(config HTTPSourceConfig) (*HTTPSource, error) {
	parsed, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing endpoint %q", config.Endpoint)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.Newf("source: endpoint %q has no scheme or host", config.Endpoint)
	}

	client := config.Client
	if client == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	maxRetries := config.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}

	return &HTTPSource{
		endpoint:      config.Endpoint,
		apiKey:        config.APIKey,
		client:        client,
		maxRetries:    maxRetries,
		retryInterval: config.RetryInterval,
		requestID:     ksuid.New().String(),
	}, nil
}

// RequestID returns the ID stamped on every request this source makes.
func (s *HTTPSource) RequestID() string {
	return s.requestID
}

// leavesResponse mirrors the node's JSON envelope.
type leavesResponse struct {
	Success bool       `json:"success"`
	Data    leavesData `json:"data"`
	Error   string     `json:"error,omitempty"`
}

type leavesData struct {
	Leaves []leafPayload `json:"leaves"`
}

type leafPayload struct {
	Index uint64 `json:"index"`
	Leaf  []byte `json:"leaf"`
	Raw   []byte `json:"raw,omitempty"`
}

// Leaves fetches the requested range from the node.
func (s *HTTPSource) Leaves(ctx context.Context, from, to uint64) ([]Leaf, error) {
	requestURL, err := s.rangeURL(from, to)
	if err != nil {
		return nil, err
	}

	var leaves []Leaf
	operation := func() error {
		leaves, err = s.fetch(ctx, requestURL)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	if s.retryInterval > 0 {
		policy.InitialInterval = s.retryInterval
	}

	err = backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx))
	if err != nil {
		return nil, errors.Wrapf(err, "fetching leaves [%d, %d]", from, to)
	}

	return leaves, nil
}

func (s *HTTPSource) rangeURL(from, to uint64) (string, error) {
	parsed, err := url.Parse(s.endpoint)
	if err != nil {
		return "", errors.Wrapf(err, "parsing endpoint %q", s.endpoint)
	}

	query := parsed.Query()
	query.Set("from", strconv.FormatUint(from, 10))
	query.Set("to", strconv.FormatUint(to, 10))
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

func (s *HTTPSource) fetch(ctx context.Context, requestURL string) ([]Leaf, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", s.requestID)
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		// Transport errors are retried.
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, errors.Newf("source: node returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		// The node understood us and said no. Retrying will not help.
		return nil, backoff.Permanent(errors.Newf("source: node returned %s", resp.Status))
	}

	var decoded leavesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "decoding leaves response"))
	}
	if !decoded.Success {
		return nil, backoff.Permanent(errors.Newf("source: node error: %s", decoded.Error))
	}

	leaves := make([]Leaf, 0, len(decoded.Data.Leaves))
	for _, payload := range decoded.Data.Leaves {
		leaves = append(leaves, Leaf{Index: payload.Index, Leaf: payload.Leaf, Raw: payload.Raw})
	}

	return leaves, nil
}
