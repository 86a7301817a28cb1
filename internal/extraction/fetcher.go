package extraction

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	apperrors "covidetl/internal/errors"
)

const (
	// DefaultMaxAttempts is the number of tries before a retrieval gives up
	DefaultMaxAttempts = 3
	// DefaultRetryDelay is the fixed wait between attempts
	DefaultRetryDelay = 30 * time.Second
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Request describes one remote payload
type Request struct {
	URL            string
	ConnectTimeout time.Duration // zero waits indefinitely
	ReadTimeout    time.Duration // zero waits indefinitely
	Archive        bool
}

// RetryPolicy bounds the retry loop around the network call
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy returns three attempts with a fixed 30s delay
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultRetryDelay}
}

// AttemptObserver is notified after every network attempt
type AttemptObserver interface {
	RecordFetchAttempt(ctx context.Context, url string, attempt int, err error)
}

// Fetcher retrieves remote payloads with bounded retries
type Fetcher struct {
	retry     RetryPolicy
	limiter   *rate.Limiter
	observer  AttemptObserver
	transport func(Request) http.RoundTripper
	logger    *slog.Logger
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithRetryPolicy overrides the default retry policy
func WithRetryPolicy(p RetryPolicy) Option {
	return func(f *Fetcher) {
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
		}
		if p.Delay < 0 {
			p.Delay = 0
		}
		f.retry = p
	}
}

// WithRequestsPerMinute paces attempts to n per minute. n <= 0 disables pacing.
func WithRequestsPerMinute(n int) Option {
	return func(f *Fetcher) {
		if n <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// WithObserver registers an attempt observer, usually pipeline metrics
func WithObserver(o AttemptObserver) Option {
	return func(f *Fetcher) { f.observer = o }
}

// NewFetcher creates a fetcher. A nil logger falls back to slog.Default().
func NewFetcher(logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Fetcher{
		retry:     DefaultRetryPolicy(),
		transport: newTransport,
		logger:    logger.With(slog.String("component", "fetcher")),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the payload as text. Archive payloads yield the text of
// their single qualifying entry.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (string, error) {
	data, err := f.FetchBytes(ctx, req)
	if err != nil {
		return "", err
	}
	return decodeText(data)
}

// FetchBytes retrieves the raw payload, unpacking archives. Use it for
// binary formats such as workbooks.
func (f *Fetcher) FetchBytes(ctx context.Context, req Request) ([]byte, error) {
	body, err := f.download(ctx, req)
	if err != nil {
		return nil, err
	}
	if !req.Archive {
		return body, nil
	}
	name, data, err := selectArchiveEntry(body)
	if err != nil {
		f.logger.ErrorContext(ctx, "archive rejected",
			slog.String("url", req.URL),
			slog.String("error", err.Error()))
		return nil, err
	}
	f.logger.InfoContext(ctx, "archive entry selected",
		slog.String("url", req.URL),
		slog.String("entry", name),
		slog.Int("bytes", len(data)))
	return data, nil
}

// download runs the retry loop around a single GET
func (f *Fetcher) download(ctx context.Context, req Request) ([]byte, error) {
	client := &http.Client{Transport: f.transport(req)}
	defer client.CloseIdleConnections()

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, apperrors.NewRetrievalError(req.URL, attempts, err)
			}
		}

		attempts = attempt
		start := time.Now()
		body, err := f.attempt(ctx, client, req)
		if f.observer != nil {
			f.observer.RecordFetchAttempt(ctx, req.URL, attempt, err)
		}
		if err == nil {
			f.logger.InfoContext(ctx, "fetch succeeded",
				slog.String("url", req.URL),
				slog.Int("attempt", attempt),
				slog.Int("bytes", len(body)),
				slog.Duration("duration", time.Since(start)))
			return body, nil
		}
		lastErr = err

		var perm *permanentError
		if ctx.Err() != nil || stderrors.As(err, &perm) {
			break
		}

		f.logger.WarnContext(ctx, "fetch attempt failed",
			slog.String("url", req.URL),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", f.retry.MaxAttempts),
			slog.Duration("delay", f.retry.Delay),
			slog.String("error", err.Error()))

		if attempt == f.retry.MaxAttempts {
			break
		}
		select {
		case <-time.After(f.retry.Delay):
		case <-ctx.Done():
			f.logger.ErrorContext(ctx, "fetch cancelled during retry delay",
				slog.String("url", req.URL),
				slog.Int("attempts", attempts))
			return nil, apperrors.NewRetrievalError(req.URL, attempts, ctx.Err())
		}
	}

	f.logger.ErrorContext(ctx, "fetch failed",
		slog.String("url", req.URL),
		slog.Int("attempts", attempts),
		slog.String("error", lastErr.Error()))
	return nil, apperrors.NewRetrievalError(req.URL, attempts, lastErr)
}

// attempt performs one GET and reads the whole body
func (f *Fetcher) attempt(ctx context.Context, client *http.Client, req Request) ([]byte, error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &permanentError{err: err}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var body io.Reader = resp.Body
	if req.ReadTimeout > 0 {
		timer := time.AfterFunc(req.ReadTimeout, cancel)
		defer timer.Stop()
		body = &idleTimeoutReader{r: resp.Body, timer: timer, timeout: req.ReadTimeout}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		if attemptCtx.Err() != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("body idle for more than %s: %w", req.ReadTimeout, err)
		}
		return nil, err
	}
	return data, nil
}

// StatusError is a non-2xx response
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.Status)
}

// permanentError marks a failure that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// idleTimeoutReader pushes back a deadline timer whenever bytes arrive
type idleTimeoutReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (r *idleTimeoutReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

func newTransport(req Request) http.RoundTripper {
	dialer := &net.Dialer{Timeout: req.ConnectTimeout, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   req.ConnectTimeout,
		ResponseHeaderTimeout: req.ReadTimeout,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// decodeText strips a UTF-8 BOM and rejects invalid UTF-8
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return "", apperrors.NewDecodeError("payload is not valid UTF-8", nil)
	}
	return string(data), nil
}
