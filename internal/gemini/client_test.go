package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/doubtsolver/internal/imaging"
)

const okBody = `{"candidates":[{"content":{"parts":[{"text":"thinking"},{"text":"F=ma"}]}}]}`

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL
	if opts.APIKey == "" {
		opts.APIKey = "test-key"
	}
	return NewClient(nil, opts)
}

func TestAskBuildsTextRequest(t *testing.T) {
	t.Parallel()

	var got generateContentRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, okBody)
	}, Options{})

	answer, err := client.Ask(context.Background(), TextQuestion("What is Newton's second law?"), nil)
	require.NoError(t, err)
	assert.Equal(t, "F=ma", answer)

	require.Len(t, got.Contents, 1)
	require.Len(t, got.Contents[0].Parts, 1)
	assert.Equal(t, TeachingInstruction+"Question:\nWhat is Newton's second law?", got.Contents[0].Parts[0].Text)
	assert.Nil(t, got.Contents[0].Parts[0].InlineData)
}

func TestAskPutsImageBeforeText(t *testing.T) {
	t.Parallel()

	var raw map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &raw))
		_, _ = io.WriteString(w, okBody)
	}, Options{Model: "gemini-1.5-pro"})

	img := &imaging.NormalizedImage{Data: []byte{0xff, 0xd8, 0xff}, MIMEType: imaging.MIMEJPEG, Width: 1, Height: 1}
	_, err := client.Ask(context.Background(), ImageQuestion(""), img)
	require.NoError(t, err)

	parts := raw["contents"].([]any)[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	inline := parts[0].(map[string]any)["inline_data"].(map[string]any)
	assert.Equal(t, "image/jpeg", inline["mime_type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(img.Data), inline["data"])
	assert.Equal(t, TeachingInstruction+"Question (image based):\n"+DefaultImageCaption, parts[1].(map[string]any)["text"])
}

func TestAskClassifiesHTTPErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status      int
		unsupported bool
		rateLimited bool
		serverError bool
	}{
		{status: http.StatusNotFound, unsupported: true},
		{status: http.StatusTooManyRequests, rateLimited: true},
		{status: http.StatusInternalServerError, serverError: true},
		{status: http.StatusServiceUnavailable, serverError: true},
		{status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, `{"error":{"message":"secret upstream detail"}}`)
			}, Options{})

			_, err := client.Ask(context.Background(), "q", nil)
			var upErr *UpstreamError
			require.True(t, errors.As(err, &upErr), "got %v", err)
			assert.Equal(t, KindHTTP, upErr.Kind)
			assert.Equal(t, tt.status, upErr.Status)
			assert.Equal(t, tt.unsupported, upErr.IsModelUnsupported())
			assert.Equal(t, tt.rateLimited, upErr.IsRateLimited())
			assert.Equal(t, tt.serverError, upErr.IsServerError())
			assert.Contains(t, upErr.Detail, "secret upstream detail")
		})
	}
}

func TestAskNoCandidates(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"empty list":      `{"candidates":[]}`,
		"blocked":         `{"promptFeedback":{"blockReason":"SAFETY"}}`,
		"empty candidate": `{"candidates":[{"finishReason":"SAFETY"}]}`,
		"not json":        `<html>`,
	}
	for name, body := range tests {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			}, Options{})
			_, err := client.Ask(context.Background(), "q", nil)
			var upErr *UpstreamError
			require.True(t, errors.As(err, &upErr))
			assert.Equal(t, KindNoCandidates, upErr.Kind)
		})
	}
}

func TestAskBlockReasonInDetail(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	}, Options{})
	_, err := client.Ask(context.Background(), "q", nil)
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "blocked: SAFETY", upErr.Detail)
}

func TestAskTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	client := NewClient(nil, Options{APIKey: "k", BaseURL: baseURL})
	_, err := client.Ask(context.Background(), "q", nil)
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, KindTransport, upErr.Kind)
}

func TestAskTimeoutIsTransport(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, Options{Timeout: 50 * time.Millisecond})
	defer close(release)

	_, err := client.Ask(context.Background(), "q", nil)
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, KindTransport, upErr.Kind)
}

func TestAskSingleFlightSerializesCalls(t *testing.T) {
	t.Parallel()

	var inFlight, maxInFlight atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			cur := maxInFlight.Load()
			if n <= cur || maxInFlight.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		_, _ = io.WriteString(w, okBody)
	}, Options{SingleFlight: true, PreCallDelay: time.Millisecond})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Ask(context.Background(), "q", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestUpstreamErrorMessages(t *testing.T) {
	t.Parallel()

	assert.Contains(t, (&UpstreamError{Kind: KindHTTP, Status: 404, Detail: "x"}).Error(), "404")
	assert.Contains(t, (&UpstreamError{Kind: KindNoCandidates, Detail: "y"}).Error(), "no candidates")
	cause := errors.New("dial tcp: refused")
	err := &UpstreamError{Kind: KindTransport, Err: cause}
	assert.Contains(t, err.Error(), "refused")
	assert.ErrorIs(t, err, cause)
}

func TestTruncateDetail(t *testing.T) {
	t.Parallel()

	long := make([]byte, maxDetailBytes*2)
	for i := range long {
		long[i] = 'a'
	}
	got := truncateDetail(string(long))
	assert.Len(t, got, maxDetailBytes+3)
}
