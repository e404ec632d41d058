package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/urbanestate/listing-service/internal/platform/logger"
)

// DefaultSchedule runs the sweep at the top of every hour.
const DefaultSchedule = "0 * * * *"

// Runner is one unit of scheduled work.
type Runner interface {
	Run(ctx context.Context) (int64, error)
}

// Parser accepts standard five-field specs, six-field specs with a leading
// seconds field, and descriptors such as @hourly.
var Parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler triggers a Runner on a cron schedule. Overlapping runs are skipped
// and a panicking run is recovered.
type Scheduler struct {
	cron       *cron.Cron
	job        cron.Job
	runner     Runner
	spec       string
	timeout    time.Duration
	runOnStart bool
	logger     *logger.Logger

	mu      sync.Mutex
	running bool
	extra   sync.WaitGroup
}

// SchedulerConfig configures NewScheduler.
type SchedulerConfig struct {
	Spec       string
	Timeout    time.Duration
	RunOnStart bool
}

// NewScheduler validates the schedule and registers the job. Nothing runs
// until Start.
func NewScheduler(runner Runner, cfg SchedulerConfig, log *logger.Logger) (*Scheduler, error) {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	log = log.Named("ExpiryScheduler")
	cl := cronLogger{log: log}

	s := &Scheduler{
		runner:     runner,
		spec:       cfg.Spec,
		timeout:    cfg.Timeout,
		runOnStart: cfg.RunOnStart,
		logger:     log,
		cron:       cron.New(cron.WithParser(Parser), cron.WithLogger(cl)),
	}
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.runOnce))

	if _, err := s.cron.AddJob(cfg.Spec, s.job); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Spec, err)
	}
	return s, nil
}

// Start begins scheduling. Calling Start twice has no effect.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()

	if s.runOnStart {
		s.extra.Add(1)
		go func() {
			defer s.extra.Done()
			s.job.Run()
		}()
	}
	s.logger.Info("expiry scheduler started", zap.String("schedule", s.spec), zap.Bool("run_on_start", s.runOnStart))
}

// Stop prevents further runs. The returned context is done once any in-flight
// run has finished; in-flight runs are bounded by the per-run timeout.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.running = false
	cronDone := s.cron.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.extra.Wait()
		cancel()
	}()
	s.logger.Info("expiry scheduler stopping")
	return ctx
}

// RunNow runs the job synchronously outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.runner.Run(ctx)
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled expiry sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled expiry sweep finished", zap.Int64("expired", n))
}

// cronLogger adapts the zap logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
