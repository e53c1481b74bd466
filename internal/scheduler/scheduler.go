package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dshills/docgraph/internal/config"
	"github.com/dshills/docgraph/internal/graph"
	"github.com/dshills/docgraph/internal/indexer"
	"github.com/dshills/docgraph/internal/logger"
)

// Job names
const (
	JobIndex     = "index"
	JobInfer     = "infer"
	JobRetention = "retention"
)

// IndexRunner runs index passes
type IndexRunner interface {
	Index(ctx context.Context, roots []string) (*indexer.Result, error)
	Running() bool
}

// Inferencer recomputes stored references
type Inferencer interface {
	Run(ctx context.Context) (*graph.RunResult, error)
}

// Pruner drops old session logs
type Pruner interface {
	PruneSessionLogs(ctx context.Context, keep int) (int, error)
}

// Config selects the schedules and what each job works on. An empty
// expression leaves that job unscheduled.
type Config struct {
	Index     string
	Infer     string
	Retention string

	Roots           []string
	KeepSessionLogs int

	// OnPrune is called after a retention run removed documents
	OnPrune func(removed int)
	Logger  *zerolog.Logger
}

// Scheduler runs the index, infer and retention jobs on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	cfg    Config
	logger zerolog.Logger

	indexer    IndexRunner
	inferencer Inferencer
	pruner     Pruner

	jobs map[string]func(context.Context)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

// New registers every configured job. Nothing runs until Start.
func New(cfg Config, idx IndexRunner, inf Inferencer, pruner Pruner) (*Scheduler, error) {
	s := &Scheduler{
		cfg:        cfg,
		logger:     logger.Component("scheduler"),
		indexer:    idx,
		inferencer: inf,
		pruner:     pruner,
	}
	if cfg.Logger != nil {
		s.logger = *cfg.Logger
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithParser(config.CronParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	s.jobs = map[string]func(context.Context){
		JobIndex:     s.runIndex,
		JobInfer:     s.runInfer,
		JobRetention: s.runRetention,
	}

	schedules := []struct{ name, expr string }{
		{JobIndex, cfg.Index},
		{JobInfer, cfg.Infer},
		{JobRetention, cfg.Retention},
	}
	for _, sc := range schedules {
		if sc.expr == "" {
			continue
		}
		run := s.jobs[sc.name]
		if _, err := s.cron.AddFunc(sc.expr, func() { run(s.ctx) }); err != nil {
			return nil, fmt.Errorf("scheduling %s job %q: %w", sc.name, sc.expr, err)
		}
		s.logger.Debug().Str("job", sc.name).Str("schedule", sc.expr).Msg("job scheduled")
	}

	return s, nil
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// Entries returns the next fire time of each scheduled job, by entry order.
func (s *Scheduler) Entries() []time.Time {
	entries := s.cron.Entries()
	next := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		next = append(next, e.Next)
	}
	return next
}

// RunJob runs the named job once, synchronously.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	run, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	run(ctx)
	return nil
}

// busy reports whether an index run holds the lock; jobs skip while it does.
func (s *Scheduler) busy(job string) bool {
	if !s.indexer.Running() {
		return false
	}
	s.logger.Info().Str("job", job).Msg("index run in progress, skipping")
	return true
}

func (s *Scheduler) runIndex(ctx context.Context) {
	if s.busy(JobIndex) {
		return
	}
	res, err := s.indexer.Index(ctx, s.cfg.Roots)
	if err != nil {
		s.logger.Error().Err(err).Str("job", JobIndex).Msg("scheduled index run failed")
		return
	}
	s.logger.Info().
		Str("job", JobIndex).
		Str("run_id", res.RunID).
		Int("processed", res.Processed).
		Int("failed", len(res.Failures)).
		Msg("scheduled index run complete")
}

func (s *Scheduler) runInfer(ctx context.Context) {
	if s.busy(JobInfer) {
		return
	}
	res, err := s.inferencer.Run(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("job", JobInfer).Msg("scheduled inference failed")
		return
	}
	s.logger.Info().
		Str("job", JobInfer).
		Str("run_id", res.RunID).
		Int("references", res.References).
		Msg("scheduled inference complete")
}

func (s *Scheduler) runRetention(ctx context.Context) {
	if s.busy(JobRetention) {
		return
	}
	removed, err := s.pruner.PruneSessionLogs(ctx, s.cfg.KeepSessionLogs)
	if err != nil {
		s.logger.Error().Err(err).Str("job", JobRetention).Msg("retention run failed")
		return
	}
	s.logger.Info().Str("job", JobRetention).Int("removed", removed).Msg("retention run complete")
	if removed > 0 && s.cfg.OnPrune != nil {
		s.cfg.OnPrune(removed)
	}
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
