package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"bwt-monservice/internal/components/assert"
	"bwt-monservice/internal/components/chrono"
	"bwt-monservice/internal/components/telemetry"
	"bwt-monservice/internal/scrapers/bwt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/coordinator")

const (
	report_coordinator_refresh = "coordinator.refresh"
	report_coordinator_failed  = "coordinator.consecutive-failures"
)

// ErrUpdateFailed wraps every error returned by a refresh.
var ErrUpdateFailed = errors.New("update failed")

// Fetcher is implemented by *bwt.Client.
type Fetcher interface {
	GetDeviceData(ctx context.Context) (bwt.Record, error)
}

type Options struct {
	// Interval is the polling period in minutes.
	Interval int
	// Timeout bounds a single scheduled refresh, defaults to 2 minutes.
	Timeout   time.Duration
	Cron      chrono.CronAPI
	Clock     chrono.API
	Telemetry telemetry.API
}

// Coordinator polls a Fetcher on a fixed interval and keeps the last good
// record. Polls never overlap, a tick firing while a poll is running is
// skipped.
type Coordinator struct {
	fetcher Fetcher
	tel     telemetry.API
	cron    chrono.CronAPI
	clock   chrono.API
	spec    string
	timeout time.Duration

	mu           sync.Mutex
	running      bool
	data         bwt.Record
	lastSuccess  bool
	lastErr      error
	lastUpdated  time.Time
	failures     int64
	listeners    map[int]func()
	nextListener int
	removeJob    func()
}

func New(fetcher Fetcher, opts Options) *Coordinator {
	assert.NotNil(fetcher)
	assert.NotNil(opts.Cron)
	assert.NotNil(opts.Telemetry)

	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = chrono.NewStandardImpl()
	}

	return &Coordinator{
		fetcher:   fetcher,
		tel:       telemetry.NewScopedAPI("coordinator", opts.Telemetry),
		cron:      opts.Cron,
		clock:     opts.Clock,
		spec:      chrono.EveryMinutes(opts.Interval),
		timeout:   opts.Timeout,
		listeners: map[int]func(){},
	}
}

// Refresh polls the fetcher once. It returns nil without polling when a poll
// is already in progress.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.tel.ReportDebug("refresh skipped, previous poll still running")
		return nil
	}
	c.running = true
	c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "coordinator:Refresh")
	defer span.End()

	record, err := c.fetcher.GetDeviceData(ctx)
	if err != nil {
		err = wrapFailure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
	}

	c.mu.Lock()
	c.running = false
	c.lastUpdated = c.clock.Now()
	c.lastErr = err
	if err == nil {
		c.data = record
		c.lastSuccess = true
		c.failures = 0
	} else {
		c.lastSuccess = false
		c.failures++
	}
	failures := c.failures
	listeners := make([]func(), 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	if err != nil {
		c.tel.ReportWarning(report_coordinator_refresh, err)
	} else {
		c.tel.ReportDebug("refresh succeeded", len(record))
	}
	c.tel.ReportCount(report_coordinator_failed, failures)

	for _, l := range listeners {
		l()
	}
	return err
}

// FirstRefresh performs the initial poll, unlike scheduled polls its failure
// is returned to the caller so setup can be aborted.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Start schedules polling on the cron.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removeJob != nil {
		return nil
	}

	remove, err := c.cron.Cron(c.spec, c.tick)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", c.spec, err)
	}
	c.removeJob = remove
	c.tel.ReportDebug("polling scheduled", c.spec)
	return nil
}

func (c *Coordinator) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	// failures are kept in LastError and reported by Refresh
	_ = c.Refresh(ctx)
}

// Stop removes the scheduled job, a poll already running is not interrupted.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removeJob == nil {
		return
	}
	c.removeJob()
	c.removeJob = nil
}

// Data returns a copy of the last good record, nil before the first success.
func (c *Coordinator) Data() bwt.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		return nil
	}
	return c.data.Clone()
}

// LastUpdateSuccess reports whether the most recent poll succeeded.
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccess
}

// LastError is the error of the most recent poll, nil if it succeeded.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// LastUpdated is the time the most recent poll completed.
func (c *Coordinator) LastUpdated() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdated
}

// AddListener registers a callback invoked after every poll, the returned
// function unregisters it.
func (c *Coordinator) AddListener(listener func()) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = listener
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func wrapFailure(err error) error {
	switch {
	case errors.Is(err, bwt.ErrAuthentication):
		return fmt.Errorf("%w: authentication failed: %w", ErrUpdateFailed, err)
	case errors.Is(err, bwt.ErrConnection):
		return fmt.Errorf("%w: connection error: %w", ErrUpdateFailed, err)
	default:
		return fmt.Errorf("%w: error updating data: %w", ErrUpdateFailed, err)
	}
}
