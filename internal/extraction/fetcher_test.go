package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "covidetl/internal/errors"
)

const testDelay = 40 * time.Millisecond

func testFetcher(opts ...Option) *Fetcher {
	opts = append([]Option{WithRetryPolicy(RetryPolicy{MaxAttempts: 3, Delay: testDelay})}, opts...)
	return NewFetcher(nil, opts...)
}

func zipPayload(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type recordingObserver struct {
	mu       sync.Mutex
	attempts []int
	failures int
}

func (o *recordingObserver) RecordFetchAttempt(_ context.Context, _ string, attempt int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts = append(o.attempts, attempt)
	if err != nil {
		o.failures++
	}
}

func TestFetchPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write(append([]byte{0xEF, 0xBB, 0xBF}, []byte("a,b\n1,2\n")...))
	}))
	defer srv.Close()

	text, err := testFetcher().Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", text)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	observer := &recordingObserver{}
	start := time.Now()
	_, err := testFetcher(WithObserver(observer)).Fetch(context.Background(), Request{URL: srv.URL})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrRetrieval))
	assert.Equal(t, int32(3), calls.Load())
	assert.GreaterOrEqual(t, elapsed, 2*testDelay)

	var statusErr *StatusError
	require.True(t, stderrors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)

	assert.Equal(t, []int{1, 2, 3}, observer.attempts)
	assert.Equal(t, 3, observer.failures)
}

func TestFetchRecoversAfterTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("x\n1\n"))
	}))
	defer srv.Close()

	text, err := testFetcher().Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "x\n1\n", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchInvalidUTF8IsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte{0xff, 0xfe, 0x00})
	}))
	defer srv.Close()

	_, err := testFetcher().Fetch(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrDecode))
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchArchive(t *testing.T) {
	tests := []struct {
		name      string
		entries   map[string]string
		want      string
		wantErrIs error
	}{
		{
			name: "single data entry among metadata",
			entries: map[string]string{
				"API_SP.POP.TOTL.csv":               "Country Name,2020\nChile,19\n",
				"Metadata_Country_API_SP.POP.csv":   "meta",
				"Metadata_Indicator_API_SP.POP.csv": "meta",
			},
			want: "Country Name,2020\nChile,19\n",
		},
		{
			name:      "two data entries",
			entries:   map[string]string{"a.csv": "x", "b.csv": "y", "c.CSV": "z"},
			wantErrIs: apperrors.ErrAmbiguousArchive,
		},
		{
			name:      "no data entry",
			entries:   map[string]string{"readme.txt": "x", "METADATA.csv": "y"},
			wantErrIs: apperrors.ErrAmbiguousArchive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := zipPayload(t, tt.entries)
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				_, _ = w.Write(payload)
			}))
			defer srv.Close()

			text, err := testFetcher().Fetch(context.Background(), Request{URL: srv.URL, Archive: true})
			if tt.wantErrIs != nil {
				require.Error(t, err)
				assert.True(t, stderrors.Is(err, tt.wantErrIs))
				assert.Equal(t, int32(1), calls.Load())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestFetchNonZipArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not a zip"))
	}))
	defer srv.Close()

	_, err := testFetcher().Fetch(context.Background(), Request{URL: srv.URL, Archive: true})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrDecode))
}

func TestFetchCancelledDuringDelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := NewFetcher(nil, WithRetryPolicy(RetryPolicy{MaxAttempts: 3, Delay: time.Hour}))

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := f.Fetch(ctx, Request{URL: srv.URL})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchReadTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewFetcher(nil, WithRetryPolicy(RetryPolicy{MaxAttempts: 1}))
	_, err := f.Fetch(context.Background(), Request{URL: srv.URL, ReadTimeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, apperrors.ErrRetrieval))
}

func TestFetchInvalidURLIsNotRetried(t *testing.T) {
	observer := &recordingObserver{}
	_, err := testFetcher(WithObserver(observer)).Fetch(context.Background(), Request{URL: "http://[::1"})
	require.Error(t, err)
	assert.Equal(t, []int{1}, observer.attempts)
}

func TestIsDataEntry(t *testing.T) {
	assert.True(t, IsDataEntry("data.csv"))
	assert.False(t, IsDataEntry("DATA.CSV"))
	assert.False(t, IsDataEntry("Metadata_Country.csv"))
	assert.False(t, IsDataEntry("METADATA_Indicator.csv"))
	assert.False(t, IsDataEntry("data.xlsx"))
}

func TestWithRequestsPerMinute(t *testing.T) {
	f := NewFetcher(nil, WithRequestsPerMinute(60))
	require.NotNil(t, f.limiter)

	f = NewFetcher(nil, WithRequestsPerMinute(0))
	assert.Nil(t, f.limiter)
}

// closeCounter wraps a transport and counts CloseIdleConnections calls
type closeCounter struct {
	http.RoundTripper
	closed atomic.Int32
}

func (c *closeCounter) CloseIdleConnections() { c.closed.Add(1) }

func TestFetchReleasesIdleConnections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("a\n1\n"))
	}))
	defer srv.Close()

	tr := &closeCounter{RoundTripper: http.DefaultTransport}
	f := testFetcher()
	f.transport = func(Request) http.RoundTripper { return tr }

	_, err := f.Fetch(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, int32(1), tr.closed.Load())

	dflt, ok := newTransport(Request{}).(*http.Transport)
	require.True(t, ok)
	assert.Positive(t, dflt.IdleConnTimeout)
}
