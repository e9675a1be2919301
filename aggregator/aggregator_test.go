package aggregator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/serisow/coalmind/services/llm_service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// echoQuerier answers with the document it was given.
type echoQuerier struct {
	calls atomic.Int32
	fail  string
}

func (q *echoQuerier) Ask(_ context.Context, question string, document []byte) (string, error) {
	q.calls.Add(1)
	if q.fail != "" && strings.Contains(string(document), q.fail) {
		return "", errors.New("model unavailable")
	}
	return "summary of " + string(document), nil
}

func dataServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/shift", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"shift":"A"}]}`)
	})
	mux.HandleFunc("/api/v1/user", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"user":"ravi"}]}`)
	})
	mux.HandleFunc("/api/v1/smp/rm", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCollectIsolatesFailedDomain(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts []Option
	}{
		{"concurrent", nil},
		{"sequential", []Option{WithSequential()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			srv := dataServer(t)
			q := &echoQuerier{}
			agg := New(srv.URL, q, discardLogger(), tc.opts...)

			got := agg.Collect(context.Background(), "roof bolting")

			require.Len(t, got, 3)
			assert.Equal(t, `summary of {"data":[{"shift":"A"}]}`, got["shift"])
			assert.Equal(t, `summary of {"data":[{"user":"ravi"}]}`, got["user"])
			assert.True(t, strings.HasPrefix(got["smp"], "[unavailable:"), got["smp"])
			assert.Contains(t, got["smp"], "status 500")
			assert.EqualValues(t, 2, q.calls.Load())
		})
	}
}

func TestCollectSummarizerFailure(t *testing.T) {
	srv := dataServer(t)
	agg := New(srv.URL, &echoQuerier{fail: "ravi"}, discardLogger())

	got := agg.Collect(context.Background(), "belt conveyor")

	assert.Contains(t, got["user"], "[unavailable: model unavailable]")
	assert.Contains(t, got["shift"], "summary of")
}

func TestCollectUnreachableService(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	got := New(url, &echoQuerier{}, discardLogger()).Collect(context.Background(), "blasting")

	require.Len(t, got, 3)
	for name, summary := range got {
		assert.True(t, strings.HasPrefix(summary, "[unavailable:"), "%s: %s", name, summary)
	}
}

func TestFetchJSONPathAndInvalidBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/nested", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"meta":{"page":1},"data":{"rounds":[1,2]}}`)
	})
	mux.HandleFunc("/html", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>not json</html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	agg := New(srv.URL, &echoQuerier{}, discardLogger(), WithDomains([]Domain{
		{Name: "rounds", Path: "/nested", JSONPath: "data.rounds", Question: "q"},
		{Name: "missing", Path: "/nested", JSONPath: "data.absent", Question: "q"},
		{Name: "html", Path: "/html", Question: "q"},
	}))

	got := agg.Collect(context.Background(), "x")

	assert.Equal(t, "summary of [1,2]", got["rounds"])
	assert.Contains(t, got["missing"], `path "data.absent" not found`)
	assert.Contains(t, got["html"], "not valid JSON")
	assert.Equal(t, []string{"rounds", "missing", "html"}, agg.Domains())
}

func TestLLMJSONQuerierTruncates(t *testing.T) {
	mock := &llm_service.MockLLMService{CallLLMFunc: func(context.Context, string) (string, error) {
		return "three tasks completed", nil
	}}
	q := NewLLMJSONQuerier(mock)

	doc := []byte(`{"x":"` + strings.Repeat("a", MaxDocumentBytes) + `"}`)
	answer, err := q.Ask(context.Background(), "what was completed?", doc)

	require.NoError(t, err)
	assert.Equal(t, "three tasks completed", answer)
	prompts := mock.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "what was completed?")
	assert.NotContains(t, prompts[0], `a"}`)
}

func TestLLMJSONQuerierTruncatesOnRuneBoundary(t *testing.T) {
	mock := &llm_service.MockLLMService{CallLLMFunc: func(context.Context, string) (string, error) {
		return "ok", nil
	}}
	q := NewLLMJSONQuerier(mock)

	// "é" is two bytes and straddles the cut.
	doc := []byte(strings.Repeat("a", MaxDocumentBytes-1) + "é tail")
	_, err := q.Ask(context.Background(), "any incidents?", doc)

	require.NoError(t, err)
	prompts := mock.Prompts()
	require.Len(t, prompts, 1)
	assert.True(t, utf8.ValidString(prompts[0]))
	assert.NotContains(t, prompts[0], "é")
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "abc", string(truncateUTF8([]byte("abc"), 5)))
	assert.Equal(t, "ab", string(truncateUTF8([]byte("ab€"), 4)))
	assert.Equal(t, "ab€", string(truncateUTF8([]byte("ab€d"), 5)))
}
