package medialoader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 20 * time.Second

// LoaderContext one manifest or segment fetch
type LoaderContext struct {
	URL     string
	Method  string
	Headers http.Header
}

// Response loaded resource
type Response struct {
	URL        string
	StatusCode int
	Data       []byte
}

// StatusError non-2xx response
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("media loader: unexpected status %s", e.Status)
}

// Callbacks load callbacks, เรียกเพียงหนึ่งตัวต่อการ load หนึ่งครั้ง
type Callbacks struct {
	OnSuccess func(resp *Response, lc *LoaderContext)
	OnError   func(err error, lc *LoaderContext)
	OnTimeout func(lc *LoaderContext)
}

func (cb Callbacks) success(resp *Response, lc *LoaderContext) {
	if cb.OnSuccess != nil {
		cb.OnSuccess(resp, lc)
	}
}

func (cb Callbacks) fail(err error, lc *LoaderContext) {
	if cb.OnError != nil {
		cb.OnError(err, lc)
	}
}

func (cb Callbacks) timeout(lc *LoaderContext) {
	if cb.OnTimeout != nil {
		cb.OnTimeout(lc)
		return
	}
	cb.fail(context.DeadlineExceeded, lc)
}

// Loader streaming resource loader
type Loader interface {
	Load(ctx context.Context, lc *LoaderContext, cb Callbacks)
}

// HTTPLoader plain http loader
type HTTPLoader struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPLoader new http loader; client may be nil
func NewHTTPLoader(client *http.Client, timeout time.Duration) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTPLoader{client: client, timeout: timeout}
}

func (l *HTTPLoader) Load(ctx context.Context, lc *LoaderContext, cb Callbacks) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	method := lc.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, lc.URL, nil)
	if err != nil {
		cb.fail(err, lc)
		return
	}
	for k, vs := range lc.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := l.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			cb.timeout(lc)
			return
		}
		cb.fail(err, lc)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		cb.fail(&StatusError{StatusCode: resp.StatusCode, Status: resp.Status}, lc)
		return
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			cb.timeout(lc)
			return
		}
		cb.fail(err, lc)
		return
	}

	cb.success(&Response{URL: lc.URL, StatusCode: resp.StatusCode, Data: data}, lc)
}
