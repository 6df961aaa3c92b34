package logging

import (
	"net/http"
	"time"

	"github.com/dpup/oauthkit/errors"
)

const stackSize = 5

// Transport returns an http.RoundTripper which logs every outbound request
// to a provider using the logger attached to the request's context. Only the
// method, host and path are logged; query strings and headers routinely
// carry credentials and are left out.
func Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{next: next}
}

type loggingTransport struct {
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	ctx := req.Context()
	start := time.Now()

	defer func() {
		// Recover from panics in the wrapped transport so that they surface as
		// ordinary request errors.
		if r := recover(); r != nil {
			err = errors.Wrap(r, 3)
			resp = nil
		}

		logger := FromContext(ctx).
			With("http.method", req.Method).
			With("http.host", req.URL.Host).
			With("http.path", req.URL.Path).
			With("http.duration", time.Since(start))

		if err != nil {
			logger = logger.With("error", err.Error())
			var e *errors.Error
			if errors.As(err, &e) {
				logger = logger.With("error.stack_trace", e.ShortStack(0, stackSize))
			}
			logger.Warnw("outbound request failed")
			return
		}
		logger.Debugw("outbound request", "http.status", resp.StatusCode)
	}()

	return t.next.RoundTrip(req)
}
