// Package rpcclient provides a JSON-RPC 2.0 HTTP client with endpoint
// failover, retry and rate limiting. One Client fronts the ordered
// endpoint list of a single blockchain.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/helixwallet/helix-core/internal/log"
)

var ErrNoEndpoints = errors.New("rpcclient: no endpoints configured")

// Options tune the retry and pacing behavior of a Client. Zero values
// take the defaults below.
type Options struct {
	// Timeout bounds each HTTP round trip.
	Timeout time.Duration
	// MaxRetries is the number of additional attempts after the first
	// failed one.
	MaxRetries int
	// RetryDelay is slept after failing over to the next endpoint.
	RetryDelay time.Duration
	// RateLimitDelay is slept before retrying the same endpoint after
	// an HTTP 429.
	RateLimitDelay time.Duration
	// RequestsPerSecond paces outgoing requests. 0 disables pacing.
	RequestsPerSecond float64
}

func (o *Options) fillDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
	if o.RateLimitDelay <= 0 {
		o.RateLimitDelay = 2 * time.Second
	}
}

// Client is a JSON-RPC 2.0 client over an ordered endpoint pool.
// Requests are serialized; the pool cursor sticks to the endpoint that
// last worked so a healthy primary is not abandoned after one blip.
type Client struct {
	endpoints []string
	opts      Options
	http      *http.Client
	limiter   *rate.Limiter

	mu     sync.Mutex
	cursor int

	nextID atomic.Uint64
}

// New creates a Client over the given endpoint URLs, tried in order.
// Endpoints may carry userinfo for HTTP basic auth, as Bitcoin Core
// deployments commonly do.
func New(endpoints []string, opts Options) (*Client, error) {
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	opts.fillDefaults()
	c := &Client{
		endpoints: append([]string(nil), endpoints...),
		opts:      opts,
		http:      &http.Client{Timeout: opts.Timeout},
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c, nil
}

// request is a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
	ID      uint64      `json:"id"`
}

// response is a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the server answered with a JSON-RPC error
// object. It is never retried: the node understood the request and
// rejected it.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// httpStatusError marks a transport-level failure worth another attempt.
type httpStatusError struct {
	status int
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http status %d", e.status)
}

// Call invokes a JSON-RPC method and unmarshals the result into the
// provided pointer. If result is nil the response result is discarded.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	req := request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	data, err := c.dispatch(ctx, method, body)
	if err != nil {
		return err
	}

	var rpcResp response
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return &RPCError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// BatchRequest is one element of a BatchCall. Result may be nil to
// discard the element's result. Err carries a per-element JSON-RPC
// error after the call returns.
type BatchRequest struct {
	Method string
	Params interface{}
	Result interface{}
	Err    error
}

// BatchCall sends the requests as a single JSON-RPC batch. Transport
// failures are returned; per-element errors land in each element's Err.
func (c *Client) BatchCall(ctx context.Context, reqs []BatchRequest) error {
	if len(reqs) == 0 {
		return nil
	}
	batch := make([]request, len(reqs))
	byID := make(map[uint64]int, len(reqs))
	for i := range reqs {
		id := c.nextID.Add(1)
		batch[i] = request{JSONRPC: "2.0", Method: reqs[i].Method, Params: reqs[i].Params, ID: id}
		byID[id] = i
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	data, err := c.dispatch(ctx, "batch", body)
	if err != nil {
		return err
	}

	var resps []response
	if err := json.Unmarshal(data, &resps); err != nil {
		return fmt.Errorf("decode batch response: %w", err)
	}
	for _, resp := range resps {
		i, ok := byID[resp.ID]
		if !ok {
			continue
		}
		if resp.Error != nil {
			reqs[i].Err = &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
			continue
		}
		if reqs[i].Result != nil && resp.Result != nil {
			if err := json.Unmarshal(resp.Result, reqs[i].Result); err != nil {
				reqs[i].Err = fmt.Errorf("decode result: %w", err)
			}
		}
	}
	return nil
}

// dispatch posts the body, failing over through the endpoint pool.
// Attempts alternate between rate-limit waits on the same endpoint
// (HTTP 429) and rotations to the next one (network errors, timeouts,
// server-side 5xx).
func (c *Client) dispatch(ctx context.Context, method string, body []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		endpoint := c.endpoints[c.cursor]
		data, err := c.post(ctx, endpoint, body)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.status == http.StatusTooManyRequests {
			log.RPC.Warn().Str("method", method).Str("endpoint", endpoint).
				Msg("rate limited, backing off")
			if err := sleepCtx(ctx, c.opts.RateLimitDelay); err != nil {
				return nil, err
			}
			continue
		}
		if !retryable(err) {
			return nil, err
		}

		c.cursor = (c.cursor + 1) % len(c.endpoints)
		log.RPC.Warn().Str("method", method).Str("endpoint", endpoint).
			Err(err).Msg("endpoint failed, rotating")
		if attempt < c.opts.MaxRetries {
			if err := sleepCtx(ctx, c.opts.RetryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("all endpoints failed after %d attempts: %w", c.opts.MaxRetries+1, lastErr)
}

// retryable reports whether another endpoint might succeed where this
// attempt failed.
func retryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		s := statusErr.status
		return s == http.StatusRequestTimeout || s >= 500
	}
	// Anything else that reached us from the transport is a network
	// problem local to the endpoint.
	return true
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	var user, pass string
	hasAuth := false
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
		hasAuth = true
		u.User = nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if hasAuth {
		req.SetBasicAuth(user, pass)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &httpStatusError{status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
