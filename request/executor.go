package request

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/logging"
	"github.com/dpup/oauthkit/univalue"
	"github.com/hashicorp/go-cleanhttp"
)

const (
	// DefaultTimeout bounds calls whose context carries no deadline.
	DefaultTimeout = 30 * time.Second

	// DefaultWorkers is the size of the pool serving Go.
	DefaultWorkers = 16

	maxBodySize = 10 << 20
)

var errDeadline = context.DeadlineExceeded

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithHTTPClient sets the client used to send requests. It is used as is,
// without the logging transport.
func WithHTTPClient(c *http.Client) ExecutorOption {
	return func(e *Executor) {
		e.client = c
	}
}

// WithTimeout sets the timeout applied when the context has no deadline. Zero
// disables it.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ExecutorOption {
	return func(e *Executor) {
		e.userAgent = ua
	}
}

// WithPool sets the pool serving asynchronous calls.
func WithPool(p *Pool) ExecutorOption {
	return func(e *Executor) {
		e.pool = p
	}
}

// Executor sends requests and parses their responses.
type Executor struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	pool      *Pool
}

// NewExecutor returns an Executor backed by a pooled cleanhttp client.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		timeout:   DefaultTimeout,
		userAgent: "oauthkit",
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		c := cleanhttp.DefaultPooledClient()
		c.Transport = logging.Transport(c.Transport)
		e.client = c
	}
	if e.pool == nil {
		e.pool = NewPool(context.Background(), DefaultWorkers)
	}
	return e
}

// Pool returns the pool used for asynchronous calls.
func (e *Executor) Pool() *Pool {
	return e.pool
}

// HTTPClient returns the underlying client.
func (e *Executor) HTTPClient() *http.Client {
	return e.client
}

// Do authorizes and sends r. An error is returned only when no response was
// received, check Response.Err for HTTP failures.
func (e *Executor) Do(ctx context.Context, r *Request) (*Response, error) {
	if e.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}
	}

	httpReq, err := r.HTTPRequest(ctx)
	if err != nil {
		return nil, err
	}
	if e.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, errors.Mark(&Error{Cause: err}, 0)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Mark(&Error{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Cause: err}, 0)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Raw:        raw,
	}
	format := univalue.DetectFormat(httpResp.Header.Get("Content-Type"), raw)
	resp.Value, resp.ParseErr = univalue.Parse(format, raw)
	if resp.ParseErr != nil {
		logging.Debugw(ctx, "request: unparseable response body",
			"status", resp.StatusCode, "format", format.String(), "error", resp.ParseErr)
	}
	return resp, nil
}

// Go runs Do on the worker pool.
func (e *Executor) Go(ctx context.Context, r *Request) *Future[*Response] {
	return Async(ctx, e.pool, func(ctx context.Context) (*Response, error) {
		return e.Do(ctx, r)
	})
}
