// Package spraykit tests candidate secrets against a list of identities on a
// single endpoint, under concurrency and pacing limits, and reports every
// attempt as accepted, rejected or errored. It is intended for authorized
// security assessments only.
//
// The network handshake is supplied by the caller as an Authenticator.
package spraykit

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"spraykit/internal/campaign"
	"spraykit/internal/collector"
	"spraykit/internal/config"
	"spraykit/internal/core"
	"spraykit/internal/observability"
	"spraykit/internal/observability/prom"
	"spraykit/internal/progress"
	"spraykit/internal/scheduler"
)

type (
	Authenticator     = core.Authenticator
	AuthenticatorFunc = core.AuthenticatorFunc
	Outcome           = core.Outcome
	OutcomeKind       = core.OutcomeKind
	Signal            = core.Signal
	AttemptResult     = core.AttemptResult
	Credential        = core.Credential
	Config            = config.Config
	SprayConfig       = config.SprayConfig
	ReportConfig      = config.ReportConfig
	Recorder          = observability.Recorder
	PassMetrics       = observability.Pass
	PassSummary       = scheduler.PassSummary
	Totals            = campaign.Totals
	Snapshot          = collector.Snapshot
	Report            = collector.Report
)

const (
	OutcomeAccepted = core.OutcomeAccepted
	OutcomeRejected = core.OutcomeRejected
	OutcomeErrored  = core.OutcomeErrored

	SignalSuccess           = core.SignalSuccess
	SignalInvalidCredential = core.SignalInvalidCredential
	SignalOther             = core.SignalOther
)

var (
	Accepted       = core.Accepted
	Rejected       = core.Rejected
	Errored        = core.Errored
	ClassifySignal = core.ClassifySignal

	ErrCallerContract = core.ErrCallerContract
)

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() Config {
	return config.Defaults()
}

// LoadConfig reads a YAML configuration file. Missing keys keep their defaults.
func LoadConfig(path string) (*Config, error) {
	return config.LoadConfig(path)
}

// ParseConfig decodes YAML configuration data onto the defaults.
func ParseConfig(data []byte) (*Config, error) {
	return config.Parse(data)
}

// NewPrometheusRecorder registers the spraykit metrics with registerer.
func NewPrometheusRecorder(registerer prometheus.Registerer) Recorder {
	return prom.NewRecorder(registerer)
}

// EngineOptions carries the ambient collaborators. All fields are optional.
type EngineOptions struct {
	Logger   logr.Logger
	Recorder Recorder
	// Progress, when set, receives a periodic status line during SprayAll.
	Progress io.Writer
}

// Engine owns one result aggregator shared by every pass it runs. Spray and
// SprayAll may be called from several goroutines; calls run one at a time so
// the concurrency limit and pass ordering hold across them.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	agg    *collector.Aggregator
	sched  *scheduler.Scheduler
	runner *campaign.Runner
}

func New(auth Authenticator, cfg Config, opts EngineOptions) (*Engine, error) {
	if auth == nil {
		return nil, fmt.Errorf("authenticator is required: %w", core.ErrCallerContract)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	agg := collector.NewAggregator()

	sopts := cfg.Spray.SchedulerOptions()
	sopts.Logger = opts.Logger
	sopts.Recorder = opts.Recorder
	sched := scheduler.New(auth, agg, sopts)

	copts := cfg.Spray.CampaignOptions()
	copts.Logger = opts.Logger
	if opts.Progress != nil {
		p := progress.NewProgress(agg, false)
		p.SetOutput(opts.Progress)
		copts.Progress = p
	}

	return &Engine{
		cfg:    cfg,
		agg:    agg,
		sched:  sched,
		runner: campaign.NewRunner(sched, copts),
	}, nil
}

// Spray runs a single pass of secret against identities.
func (e *Engine) Spray(ctx context.Context, secret string, identities []string, endpoint string) (PassSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Run(ctx, secret, identities, endpoint)
}

// SprayAll runs one pass per secret in order.
func (e *Engine) SprayAll(ctx context.Context, secrets, identities []string, endpoint string) (Totals, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runner.SprayAll(ctx, secrets, identities, endpoint)
}

func (e *Engine) Snapshot() Snapshot {
	return e.agg.Snapshot()
}

// AcceptedCredentials lists every accepted pair in completion order.
func (e *Engine) AcceptedCredentials() []Credential {
	return e.agg.AcceptedList()
}

func (e *Engine) Report() Report {
	return e.agg.Report(e.cfg.Report.FailedPreview)
}

// WriteReport renders the current report in the configured format.
func (e *Engine) WriteReport(w io.Writer) error {
	r := e.Report()
	if e.cfg.Report.Format == "json" {
		return collector.FormatJSON(w, r)
	}
	collector.FormatText(w, r)
	return nil
}
