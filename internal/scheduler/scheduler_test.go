package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/funcr"

	"spraykit/internal/collector"
	"spraykit/internal/core"
	"spraykit/internal/core/coretest"
	"spraykit/internal/observability"
)

const endpoint = "https://auth.example.test/"

func identities(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("user%03d", i)
	}
	return ids
}

func allRecorded(agg *collector.Aggregator) []string {
	var ids []string
	for _, set := range [][]core.AttemptResult{agg.Accepted(), agg.Rejected(), agg.Errored()} {
		for _, r := range set {
			ids = append(ids, r.Identity)
		}
	}
	sort.Strings(ids)
	return ids
}

func TestRun_EveryIdentityExactlyOnce(t *testing.T) {
	ids := identities(50)
	agg := collector.NewAggregator()
	auth := &coretest.RecordingAuthenticator{
		Next:    coretest.NewStaticAuthenticator(core.Credential{Identity: "user007", Secret: "pw"}),
		Latency: time.Millisecond,
	}
	s := New(auth, agg, Options{MaxConcurrency: 5})

	summary, err := s.Run(context.Background(), "pw", ids, endpoint)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Total() != len(ids) {
		t.Fatalf("expected %d results, got %d", len(ids), summary.Total())
	}
	if summary.Accepted != 1 || summary.Rejected != 49 || summary.Errored != 0 {
		t.Errorf("unexpected summary %+v", summary.Snapshot)
	}
	if summary.Dispatched != len(ids) || summary.Cancelled {
		t.Errorf("expected full dispatch, got dispatched=%d cancelled=%v", summary.Dispatched, summary.Cancelled)
	}

	got := allRecorded(agg)
	for i, id := range ids {
		if got[i] != id {
			t.Fatalf("recorded identities differ from input at %d: %s vs %s", i, got[i], id)
		}
	}
}

func TestRun_SingleAcceptedPair(t *testing.T) {
	agg := collector.NewAggregator()
	auth := coretest.NewStaticAuthenticator(core.Credential{Identity: "bob", Secret: "Summer2024!"})
	s := New(auth, agg, Options{})

	summary, err := s.Run(context.Background(), "Summer2024!", []string{"alice", "bob", "carol"}, endpoint)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	accepted := agg.AcceptedList()
	if len(accepted) != 1 || accepted[0] != (core.Credential{Identity: "bob", Secret: "Summer2024!"}) {
		t.Errorf("expected [bob:Summer2024!], got %v", accepted)
	}
	if summary.Rejected != 2 {
		t.Errorf("expected 2 rejected, got %d", summary.Rejected)
	}
	if summary.Errored != 0 {
		t.Errorf("expected 0 errored, got %d", summary.Errored)
	}
}

func TestRun_Pacing(t *testing.T) {
	agg := collector.NewAggregator()
	auth := coretest.NewStaticAuthenticator()
	s := New(auth, agg, Options{MaxConcurrency: 1, Delay: 200 * time.Millisecond})

	start := time.Now()
	summary, err := s.Run(context.Background(), "pw", identities(5), endpoint)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.Total() != 5 {
		t.Fatalf("expected 5 results, got %d", summary.Total())
	}
	// Four inter-attempt delays, no trailing delay after the last completion.
	if elapsed < 800*time.Millisecond {
		t.Errorf("pass finished too fast for pacing: %v", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("pass took too long: %v", elapsed)
	}
}

func TestRun_PacingPerSlot(t *testing.T) {
	agg := collector.NewAggregator()
	s := New(coretest.NewStaticAuthenticator(), agg, Options{MaxConcurrency: 2, Delay: 100 * time.Millisecond})

	start := time.Now()
	if _, err := s.Run(context.Background(), "pw", identities(6), endpoint); err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start)

	// Two slots, three rounds, two delays between rounds.
	if elapsed < 200*time.Millisecond {
		t.Errorf("expected >= 200ms with 2 slots, got %v", elapsed)
	}
	if elapsed > 1500*time.Millisecond {
		t.Errorf("pass took too long: %v", elapsed)
	}
}

func TestRun_ZeroDelayIsConcurrencyBound(t *testing.T) {
	agg := collector.NewAggregator()
	auth := &coretest.RecordingAuthenticator{Latency: 30 * time.Millisecond}
	s := New(auth, agg, Options{MaxConcurrency: 3})

	start := time.Now()
	if _, err := s.Run(context.Background(), "pw", identities(12), endpoint); err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start)

	if peak := auth.MaxInFlight(); peak > 3 {
		t.Errorf("admission limit exceeded: %d attempts in flight", peak)
	}
	if peak := auth.MaxInFlight(); peak < 2 {
		t.Errorf("attempts do not appear to run concurrently, peak %d", peak)
	}
	// Sequential would be 12 * 30ms = 360ms.
	if elapsed > 300*time.Millisecond {
		t.Errorf("expected concurrent execution, took %v", elapsed)
	}
}

func TestRun_DispatchInInputOrder(t *testing.T) {
	ids := []string{"zoe", "adam", "mia", "bob", "carol"}
	auth := &coretest.RecordingAuthenticator{}
	s := New(auth, collector.NewAggregator(), Options{MaxConcurrency: 1})

	if _, err := s.Run(context.Background(), "pw", ids, endpoint); err != nil {
		t.Fatal(err)
	}

	order := auth.Order()
	for i := range ids {
		if order[i] != ids[i] {
			t.Fatalf("dispatch order %v differs from input %v", order, ids)
		}
	}
}

func TestRun_TransportFaultIsIsolated(t *testing.T) {
	ids := identities(10)
	agg := collector.NewAggregator()
	auth := &coretest.FaultyAuthenticator{
		Next:   coretest.NewStaticAuthenticator(),
		Faults: map[string]error{"user003": errors.New("connection reset by peer")},
	}
	s := New(auth, agg, Options{MaxConcurrency: 4})

	summary, err := s.Run(context.Background(), "pw", ids, endpoint)
	if err != nil {
		t.Fatalf("transport fault must not fail the pass: %v", err)
	}

	if summary.Total() != len(ids) {
		t.Fatalf("expected %d results, got %d", len(ids), summary.Total())
	}
	if summary.Errored != 1 || summary.Rejected != 9 {
		t.Errorf("unexpected summary %+v", summary.Snapshot)
	}
	errs := agg.Errored()
	if errs[0].Identity != "user003" || errs[0].Outcome.Message != "connection reset by peer" {
		t.Errorf("unexpected errored result %+v", errs[0])
	}
	if errs[0].ErrorDetail != "connection reset by peer" {
		t.Errorf("expected error detail to be kept, got %q", errs[0].ErrorDetail)
	}
}

func TestRun_PanicIsRecordedAsError(t *testing.T) {
	agg := collector.NewAggregator()
	auth := &coretest.PanickingAuthenticator{Next: coretest.NewStaticAuthenticator(), Identity: "bob"}
	s := New(auth, agg, Options{})

	summary, err := s.Run(context.Background(), "pw", []string{"alice", "bob", "carol"}, endpoint)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Errored != 1 || summary.Rejected != 2 {
		t.Errorf("unexpected summary %+v", summary.Snapshot)
	}
	if msg := agg.Errored()[0].Outcome.Message; !strings.HasPrefix(msg, "panic: ") {
		t.Errorf("expected panic message, got %q", msg)
	}
}

func TestRun_TimeoutIsErrorNotRejected(t *testing.T) {
	agg := collector.NewAggregator()
	auth := &coretest.RecordingAuthenticator{Latency: 500 * time.Millisecond}
	s := New(auth, agg, Options{AttemptTimeout: 30 * time.Millisecond})

	summary, err := s.Run(context.Background(), "pw", []string{"alice", "bob"}, endpoint)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Errored != 2 || summary.Rejected != 0 {
		t.Fatalf("expected both attempts to time out, got %+v", summary.Snapshot)
	}
	for _, r := range agg.Errored() {
		if r.Outcome.Message != core.TimeoutMessage {
			t.Errorf("expected %q, got %q", core.TimeoutMessage, r.Outcome.Message)
		}
	}
}

func TestRun_OverrunningAttemptKeepsItsSlot(t *testing.T) {
	agg := collector.NewAggregator()
	auth := &coretest.RecordingAuthenticator{
		Next:          coretest.NewStaticAuthenticator(core.Credential{Identity: "bob", Secret: "pw"}),
		Latency:       80 * time.Millisecond,
		IgnoreContext: true,
	}
	s := New(auth, agg, Options{MaxConcurrency: 1, AttemptTimeout: 20 * time.Millisecond})

	start := time.Now()
	summary, err := s.Run(context.Background(), "pw", []string{"alice", "bob", "carol"}, endpoint)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatal(err)
	}

	if peak := auth.MaxInFlight(); peak > 1 {
		t.Errorf("admission limit exceeded: %d attempts in flight", peak)
	}
	if elapsed < 240*time.Millisecond {
		t.Errorf("pass returned before the overrunning attempts finished: %v", elapsed)
	}
	// A late acceptance past the deadline still counts as a timeout.
	if summary.Errored != 3 || summary.Accepted != 0 {
		t.Fatalf("expected every attempt to time out, got %+v", summary.Snapshot)
	}
	for _, r := range agg.Errored() {
		if r.Outcome.Message != core.TimeoutMessage {
			t.Errorf("expected %q for %s, got %q", core.TimeoutMessage, r.Identity, r.Outcome.Message)
		}
	}
	if n := len(auth.Intervals()); n != 3 {
		t.Errorf("expected all 3 attempts finished when the pass returned, got %d", n)
	}
}

func TestRun_CancellationStopsDispatch(t *testing.T) {
	ids := identities(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agg := collector.NewAggregator()
	auth := &coretest.RecordingAuthenticator{
		Latency: 20 * time.Millisecond,
		OnStart: func(n int) {
			if n == 3 {
				cancel()
			}
		},
	}
	s := New(auth, agg, Options{MaxConcurrency: 1})

	summary, err := s.Run(ctx, "pw", ids, endpoint)
	if err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}

	if !summary.Cancelled {
		t.Error("expected summary to be marked cancelled")
	}
	if summary.Dispatched != 3 {
		t.Errorf("expected 3 dispatches, got %d", summary.Dispatched)
	}
	if summary.Total() != summary.Dispatched {
		t.Errorf("every dispatched attempt must be counted: %d != %d", summary.Total(), summary.Dispatched)
	}
	// The in-flight attempt finished normally rather than being aborted.
	if summary.Rejected != 3 {
		t.Errorf("expected 3 rejected, got %+v", summary.Snapshot)
	}
	if auth.Started() != 3 {
		t.Errorf("expected no attempts after cancellation, got %d started", auth.Started())
	}
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	auth := coretest.NewStaticAuthenticator()
	summary, err := New(auth, collector.NewAggregator(), Options{}).Run(ctx, "pw", identities(3), endpoint)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total() != 0 || !summary.Cancelled || auth.Calls() != 0 {
		t.Errorf("expected nothing dispatched, got %+v calls=%d", summary, auth.Calls())
	}
}

func TestRun_CallerContractViolations(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		identities []string
		endpoint   string
		want       error
	}{
		{"empty secret", "", []string{"alice"}, endpoint, core.ErrEmptySecret},
		{"nil identities", "pw", nil, endpoint, core.ErrNoIdentities},
		{"empty identity", "pw", []string{"alice", ""}, endpoint, core.ErrEmptyIdentity},
		{"empty endpoint", "pw", []string{"alice"}, "", core.ErrEmptyEndpoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := coretest.NewStaticAuthenticator()
			agg := collector.NewAggregator()
			_, err := New(auth, agg, Options{}).Run(context.Background(), tt.secret, tt.identities, tt.endpoint)

			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, core.ErrCallerContract) {
				t.Errorf("expected caller contract violation, got %v", err)
			}
			if auth.Calls() != 0 || agg.Snapshot().Total() != 0 {
				t.Error("nothing should be dispatched on a contract violation")
			}
		})
	}
}

func TestRun_SummaryIsDelta(t *testing.T) {
	agg := collector.NewAggregator()
	agg.Record(core.AttemptResult{Identity: "old", Secret: "x", Outcome: core.Accepted()})
	agg.Record(core.AttemptResult{Identity: "old2", Secret: "x", Outcome: core.Rejected()})

	s := New(coretest.NewStaticAuthenticator(), agg, Options{})
	summary, err := s.Run(context.Background(), "pw", identities(4), endpoint)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Snapshot != (collector.Snapshot{Rejected: 4}) {
		t.Errorf("expected delta of 4 rejected, got %+v", summary.Snapshot)
	}
	if total := agg.Snapshot().Total(); total != 6 {
		t.Errorf("expected cumulative 6, got %d", total)
	}
}

func TestRun_RecordsAttemptTiming(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := core.NewFakeClock(now)
	agg := collector.NewAggregator()
	s := New(coretest.NewStaticAuthenticator(), agg, Options{Clock: clock})

	if _, err := s.Run(context.Background(), "pw", []string{"alice"}, endpoint); err != nil {
		t.Fatal(err)
	}

	r := agg.Rejected()[0]
	if !r.StartedAt.Equal(now) {
		t.Errorf("expected StartedAt %v, got %v", now, r.StartedAt)
	}
	if r.Secret != "pw" || r.ErrorDetail != "" {
		t.Errorf("unexpected result %+v", r)
	}
}

func TestRun_RateLimitCeiling(t *testing.T) {
	s := New(coretest.NewStaticAuthenticator(), collector.NewAggregator(), Options{MaxConcurrency: 5, RateLimit: 20})

	start := time.Now()
	if _, err := s.Run(context.Background(), "pw", identities(5), endpoint); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Errorf("expected rate ceiling of 20/s to space 5 dispatches, took %v", elapsed)
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	attempts map[core.OutcomeKind]int
	passes   []observability.Pass
}

func (f *fakeRecorder) RecordAttempt(kind core.OutcomeKind, latency time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempts == nil {
		f.attempts = make(map[core.OutcomeKind]int)
	}
	f.attempts[kind]++
}

func (f *fakeRecorder) RecordPass(pass observability.Pass) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passes = append(f.passes, pass)
}

func TestRun_ReportsMetrics(t *testing.T) {
	rec := &fakeRecorder{}
	auth := coretest.NewStaticAuthenticator(core.Credential{Identity: "bob", Secret: "pw"})
	s := New(auth, collector.NewAggregator(), Options{Recorder: rec})

	if _, err := s.Run(context.Background(), "pw", []string{"alice", "bob", "carol"}, endpoint); err != nil {
		t.Fatal(err)
	}

	if rec.attempts[core.OutcomeAccepted] != 1 || rec.attempts[core.OutcomeRejected] != 2 {
		t.Errorf("unexpected attempt metrics %v", rec.attempts)
	}
	if len(rec.passes) != 1 || rec.passes[0].Accepted != 1 || rec.passes[0].Cancelled {
		t.Errorf("unexpected pass metrics %+v", rec.passes)
	}
}

func TestRun_LogsWithoutSecrets(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	logger := funcr.New(func(prefix, args string) {
		mu.Lock()
		lines = append(lines, args)
		mu.Unlock()
	}, funcr.Options{Verbosity: 1})

	auth := coretest.NewStaticAuthenticator(core.Credential{Identity: "bob", Secret: "Summer2024!"})
	s := New(auth, collector.NewAggregator(), Options{Logger: logger})

	if _, err := s.Run(context.Background(), "Summer2024!", []string{"alice", "bob"}, endpoint); err != nil {
		t.Fatal(err)
	}

	out := strings.Join(lines, "\n")
	if !strings.Contains(out, `"msg"="Valid credential found"`) || !strings.Contains(out, `"identity"="bob"`) {
		t.Errorf("expected accepted credential to be logged, got:\n%s", out)
	}
	if !strings.Contains(out, `"msg"="Attempt rejected"`) {
		t.Errorf("expected rejected attempt at V(1), got:\n%s", out)
	}
	if strings.Contains(out, "Summer2024!") {
		t.Errorf("secret leaked into logs:\n%s", out)
	}
}

func TestNew_Defaults(t *testing.T) {
	opts := New(coretest.NewStaticAuthenticator(), collector.NewAggregator(), Options{Delay: -time.Second}).Options()

	if opts.MaxConcurrency != 5 {
		t.Errorf("expected default concurrency 5, got %d", opts.MaxConcurrency)
	}
	if opts.AttemptTimeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", opts.AttemptTimeout)
	}
	if opts.Delay != 0 {
		t.Errorf("expected negative delay to clamp to 0, got %v", opts.Delay)
	}
	if opts.Clock == nil || opts.Recorder == nil {
		t.Error("expected clock and recorder defaults")
	}
}
