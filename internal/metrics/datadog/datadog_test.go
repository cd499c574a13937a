package datadog

import (
	"context"
	"net/http"
	"os"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter captures payloads submitted by Backend.Flush().
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func (f *fakeSubmitter) last() (datadogV2.MetricPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.payloads) == 0 {
		return datadogV2.MetricPayload{}, false
	}
	return f.payloads[len(f.payloads)-1], true
}

func newTestBackend(fs *fakeSubmitter) *Backend {
	return NewBackend(context.Background(), Options{
		JobName:    "catalogo-test",
		FlushEvery: 24 * time.Hour,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(1000, 0) },
		newTicker:  func(d time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) },
	})
}

// TestResolveEnvTag verifies environment-tag precedence and defaults.
func TestResolveEnvTag(t *testing.T) {
	oldENV := os.Getenv("ENV")
	oldDDENV := os.Getenv("DD_ENV")
	t.Cleanup(func() {
		_ = os.Setenv("ENV", oldENV)
		_ = os.Setenv("DD_ENV", oldDDENV)
	})

	tests := []struct {
		name string
		env  string
		dd   string
		want string
	}{
		{name: "ENV_wins", env: "prod", dd: "stage", want: "env:prod"},
		{name: "DD_ENV_used_when_ENV_empty", env: "", dd: "stage", want: "env:stage"},
		{name: "whitespace_ignored", env: "   ", dd: "\n\t", want: "env:unknown"},
		{name: "default_unknown", env: "", dd: "", want: "env:unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_ = os.Setenv("ENV", tc.env)
			_ = os.Setenv("DD_ENV", tc.dd)
			if got := resolveEnvTag(); got != tc.want {
				t.Fatalf("resolveEnvTag()=%q, want %q", got, tc.want)
			}
		})
	}
}

// TestBufferKeyRoundTrip verifies key encoding/decoding.
func TestBufferKeyRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		metric string
		tags   []string
	}{
		{name: "no_tags", metric: "sync.completed", tags: nil},
		{name: "one_tag", metric: "search.total", tags: []string{"kind:produto"}},
		{name: "two_tags", metric: "search.total", tags: []string{"kind:produto", "path:api"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			k := bufferKey(tc.metric, tc.tags)
			name, tags := splitBufferKey(k)
			if name != tc.metric {
				t.Fatalf("name=%q, want %q", name, tc.metric)
			}
			if len(tags) != len(tc.tags) {
				t.Fatalf("tags=%v, want %v", tags, tc.tags)
			}
			for i := range tags {
				if tags[i] != tc.tags[i] {
					t.Fatalf("tags=%v, want %v", tags, tc.tags)
				}
			}
		})
	}
}

// TestWithTags verifies tag concatenation and immutability.
func TestWithTags(t *testing.T) {
	base := []string{"env:test", "job:catalogo"}
	got := withTags(base, "kind:produto")
	want := []string{"env:test", "job:catalogo", "kind:produto"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("withTags()=%v, want %v", got, want)
	}
	got[0] = "env:mutated"
	if base[0] == "env:mutated" {
		t.Fatalf("withTags output aliases base slice")
	}
}

// TestPercentileNearestRank verifies percentile behavior.
func TestPercentileNearestRank(t *testing.T) {
	tests := []struct {
		name string
		s    []float64
		p    float64
		want float64
	}{
		{name: "empty", s: nil, p: 0.50, want: 0},
		{name: "single", s: []float64{7}, p: 0.95, want: 7},
		{name: "p_le_0", s: []float64{1, 2, 3}, p: -1, want: 1},
		{name: "p_ge_1", s: []float64{1, 2, 3}, p: 2, want: 3},
		{name: "median", s: []float64{1, 2, 3, 4, 5}, p: 0.50, want: 3},
		{name: "p90_small_n", s: []float64{1, 2, 3, 4, 5}, p: 0.90, want: 5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := percentileNearestRank(tc.s, tc.p); got != tc.want {
				t.Fatalf("percentileNearestRank(%v,%v)=%v, want %v", tc.s, tc.p, got, tc.want)
			}
		})
	}
}

// TestFlush_SubmitsAndResets verifies Flush submits buffered metrics and
// resets buffers.
func TestFlush_SubmitsAndResets(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(fs)
	defer func() { _ = b.Close() }()

	b.IncCounter("sync.completed", 1)
	b.IncCounter("search.total", 3, "kind:produto")
	b.ObserveDuration("sync.duration", 500*time.Millisecond)
	b.ObserveDuration("search.duration", 20*time.Millisecond, "kind:produto")

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 1 {
		t.Fatalf("submit calls=%d, want 1", fs.count())
	}

	b.mu.Lock()
	empty := len(b.counters) == 0 && len(b.samples) == 0
	b.mu.Unlock()
	if !empty {
		t.Fatalf("buffers not reset after Flush")
	}

	payload, ok := fs.last()
	if !ok {
		t.Fatalf("missing payload")
	}
	var names []string
	for _, s := range payload.Series {
		names = append(names, s.Metric)
	}
	for _, w := range []string{
		"catalogo.sync.completed",
		"catalogo.search.total",
		"catalogo.sync.duration.p50",
		"catalogo.sync.duration.samples",
		"catalogo.search.duration.max",
	} {
		if !contains(names, w) {
			t.Fatalf("payload missing metric %q; got=%v", w, names)
		}
	}

	for _, s := range payload.Series {
		if s.Metric == "catalogo.search.total" && !contains(s.Tags, "kind:produto") {
			t.Fatalf("series %q missing its tag; tags=%v", s.Metric, s.Tags)
		}
	}
}

// TestFlush_NoDataDoesNotSubmit verifies the empty path.
func TestFlush_NoDataDoesNotSubmit(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(fs)
	defer func() { _ = b.Close() }()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("unexpected submission count=%d, want 0", fs.count())
	}
}

// TestLoopAndClose verifies the background loop flushes periodically and
// Close performs a final flush.
func TestLoopAndClose(t *testing.T) {
	fs := &fakeSubmitter{}
	b := NewBackend(context.Background(), Options{
		JobName:    "catalogo-test",
		FlushEvery: 5 * time.Millisecond,
		submitter:  fs,
		now:        func() time.Time { return time.Unix(2000, 0) },
	})

	b.IncCounter("sync.completed", 1)

	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) {
		if fs.count() >= 1 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if fs.count() < 1 {
		_ = b.Close()
		t.Fatalf("expected at least one background Flush submission; got %d", fs.count())
	}

	b.IncCounter("sync.completed", 1)
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v, want nil", err)
	}
	if fs.count() < 2 {
		t.Fatalf("expected at least 2 submissions after Close; got %d", fs.count())
	}
}

// TestEdgeCases verifies ignored inputs.
func TestEdgeCases(t *testing.T) {
	fs := &fakeSubmitter{}
	b := newTestBackend(fs)
	defer func() { _ = b.Close() }()

	b.IncCounter("sync.completed", 0)
	b.IncCounter("sync.completed", -1)
	b.ObserveDuration("sync.duration", -time.Second)

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v, want nil", err)
	}
	if fs.count() != 0 {
		t.Fatalf("ignored inputs still produced a submission")
	}
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty_returns_nil", in: "", want: nil},
		{
			name: "trims_and_skips_empty_segments",
			in:   " env:prod , ,service:catalogo,  ,team:loja ",
			want: []string{"env:prod", "service:catalogo", "team:loja"},
		},
		{name: "single_tag", in: "service:catalogo", want: []string{"service:catalogo"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ParseTagsCSV(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
