// Package aggregator fetches auxiliary records from the mine data service and
// condenses each domain into a short text summary for hazard analysis prompts.
package aggregator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

const maxResponseBytes = 4 << 20

// Domain is one remote record type. JSONPath, when set, narrows the fetched
// document before it is summarized.
type Domain struct {
	Name     string
	Path     string
	Question string
	JSONPath string
}

func DefaultDomains() []Domain {
	return []Domain{
		{
			Name:     "shift",
			Path:     "/api/v1/shift",
			Question: "Provide a detailed breakdown of works in the current shift, categorized as: Completed works, Half Completed, Unfinished works",
		},
		{
			Name:     "user",
			Path:     "/api/v1/user",
			Question: "For the current user and current shift, generate a comprehensive report of completed tasks",
		},
		{
			Name:     "smp",
			Path:     "/api/v1/smp/rm",
			Question: "Provide a textual report for the current Safety Management Plan (SMP), identifying each activity/hazard and its Consequences, Probability, Exposure.",
		},
	}
}

// RemoteFetchError is recorded per domain and never aborts the aggregate.
type RemoteFetchError struct {
	Domain     string
	URL        string
	StatusCode int
	Err        error
}

func (e *RemoteFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s from %s: status %d", e.Domain, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s from %s: %v", e.Domain, e.URL, e.Err)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

// JSONQuerier answers a natural language question about a JSON document.
type JSONQuerier interface {
	Ask(ctx context.Context, question string, document []byte) (string, error)
}

type Aggregator struct {
	baseURL    string
	domains    []Domain
	querier    JSONQuerier
	httpClient *http.Client
	concurrent bool
	logger     *slog.Logger
}

type Option func(*Aggregator)

func WithDomains(domains []Domain) Option {
	return func(a *Aggregator) { a.domains = domains }
}

func WithHTTPClient(c *http.Client) Option {
	return func(a *Aggregator) { a.httpClient = c }
}

// WithSequential fetches one domain at a time.
func WithSequential() Option {
	return func(a *Aggregator) { a.concurrent = false }
}

func New(baseURL string, querier JSONQuerier, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		domains:    DefaultDomains(),
		querier:    querier,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		concurrent: true,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) Domains() []string {
	names := make([]string, len(a.domains))
	for i, d := range a.domains {
		names[i] = d.Name
	}
	return names
}

// Collect returns one entry per configured domain. Failed domains carry an
// "[unavailable: ...]" placeholder instead of being left out.
func (a *Aggregator) Collect(ctx context.Context, activity string) map[string]string {
	results := make(map[string]string, len(a.domains))
	var mu sync.Mutex
	record := func(name, summary string) {
		mu.Lock()
		results[name] = summary
		mu.Unlock()
	}

	if !a.concurrent {
		for _, d := range a.domains {
			record(d.Name, a.collectDomain(ctx, d, activity))
		}
		return results
	}

	// Domain failures are folded into placeholders, so the group never errors.
	var g errgroup.Group
	for _, d := range a.domains {
		g.Go(func() error {
			record(d.Name, a.collectDomain(ctx, d, activity))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Aggregator) collectDomain(ctx context.Context, d Domain, activity string) string {
	logger := a.logger.With(slog.String("domain", d.Name))

	doc, err := a.fetch(ctx, d)
	if err != nil {
		logger.Warn("Remote fetch failed", slog.String("error", err.Error()))
		return Unavailable(err)
	}

	question := fmt.Sprintf("%s. Do not use markdown or style the text. The user asked about the activity: %s. Extract only relevant information.", d.Question, activity)
	summary, err := a.querier.Ask(ctx, question, doc)
	if err != nil {
		logger.Warn("Summarizing remote data failed", slog.String("error", err.Error()))
		return Unavailable(err)
	}
	logger.Debug("Remote data summarized", slog.Int("bytes", len(doc)))
	return strings.TrimSpace(summary)
}

func (a *Aggregator) fetch(ctx context.Context, d Domain) ([]byte, error) {
	url := a.baseURL + d.Path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &RemoteFetchError{Domain: d.Name, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteFetchError{Domain: d.Name, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteFetchError{Domain: d.Name, URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &RemoteFetchError{Domain: d.Name, URL: url, Err: err}
	}
	if !gjson.ValidBytes(body) {
		return nil, &RemoteFetchError{Domain: d.Name, URL: url, Err: fmt.Errorf("response is not valid JSON")}
	}

	if d.JSONPath != "" {
		sub := gjson.GetBytes(body, d.JSONPath)
		if !sub.Exists() {
			return nil, &RemoteFetchError{Domain: d.Name, URL: url, Err: fmt.Errorf("path %q not found in response", d.JSONPath)}
		}
		body = []byte(sub.Raw)
	}
	return body, nil
}

func Unavailable(err error) string {
	return fmt.Sprintf("[unavailable: %v]", err)
}
