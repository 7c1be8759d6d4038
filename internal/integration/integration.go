package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bwt-monservice/internal/components/assert"
	"bwt-monservice/internal/components/chrono"
	"bwt-monservice/internal/components/telemetry"
	"bwt-monservice/internal/coordinator"
	"bwt-monservice/internal/entities"
	"bwt-monservice/internal/scrapers/bwt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/integration")

const Title = "BWT MyService"

const (
	report_integration_setup    = "integration.setup"
	report_integration_unload   = "integration.unload"
	report_integration_validate = "integration.validate-input"
)

var (
	// ErrAuthFailed is permanent, the credentials must be changed before
	// retrying.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrNotReady is transient, setup may be retried later.
	ErrNotReady = errors.New("not ready")
)

// Env holds what every integration shares with the rest of the process.
type Env struct {
	Telemetry telemetry.API
	Clock     chrono.API
	Cron      chrono.CronAPI
	// Client is the template every portal client is created from, Telemetry
	// and Clock are filled in from Env.
	Client bwt.ClientOptions
}

func (e Env) clientOptions() bwt.ClientOptions {
	opts := e.Client
	opts.Telemetry = e.Telemetry
	opts.Clock = e.Clock
	return opts
}

// newClient is swapped in tests to observe the clients created.
var newClient = bwt.NewClient

// Integration is one configured portal account polled on its own schedule.
type Integration struct {
	env   Env
	tel   telemetry.API
	creds Credentials

	mu            sync.Mutex
	options       Options
	key           string
	client        *bwt.Client
	coordinator   *coordinator.Coordinator
	sensors       []entities.Sensor
	binarySensors []entities.BinarySensor
	loaded        bool
}

// Setup logs in, locates the device, performs the first poll and schedules
// the following ones. Failures are classified as ErrAuthFailed or ErrNotReady.
func Setup(ctx context.Context, env Env, creds Credentials, options Options) (*Integration, error) {
	assert.NotNil(env.Telemetry)
	assert.NotNil(env.Cron)

	if env.Clock == nil {
		env.Clock = chrono.NewStandardImpl()
	}
	options = options.WithDefaults()
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	i := &Integration{
		env:     env,
		tel:     telemetry.NewScopedAPI("integration", env.Telemetry),
		creds:   creds,
		options: options,
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	err := i.load(ctx)
	if err != nil {
		return nil, err
	}
	return i, nil
}

// load must be called with mu held.
func (i *Integration) load(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "integration:load")
	defer span.End()

	i.tel.ReportDebug("setting up", "scan_interval", i.options.ScanInterval)

	client, err := newClient(i.env.clientOptions())
	if err != nil {
		span.SetStatus(codes.Error, "failed to create client")
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	fail := func(err error) error {
		closeErr := client.Close()
		if closeErr != nil {
			i.tel.ReportWarning(report_integration_setup, closeErr)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.tel.ReportWarning(report_integration_setup, err)
		return classifySetupError(err)
	}

	err = client.Authenticate(ctx, i.creds.Username, i.creds.Password)
	if err != nil {
		return fail(err)
	}
	key, err := client.ReceiptLineKey(ctx)
	if err != nil {
		return fail(err)
	}

	coord := coordinator.New(client, coordinator.Options{
		Interval:  i.options.ScanInterval,
		Cron:      i.env.Cron,
		Clock:     i.env.Clock,
		Telemetry: i.env.Telemetry,
	})
	err = coord.FirstRefresh(ctx)
	if err != nil {
		// the first poll failing never means the credentials are wrong
		closeErr := client.Close()
		if closeErr != nil {
			i.tel.ReportWarning(report_integration_setup, closeErr)
		}
		i.tel.ReportWarning(report_integration_setup, err)
		span.SetStatus(codes.Error, "first refresh failed")
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	err = coord.Start()
	if err != nil {
		_ = client.Close()
		span.SetStatus(codes.Error, "failed to schedule polling")
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}

	i.key = key
	i.client = client
	i.coordinator = coord
	i.sensors, i.binarySensors = entities.Build(coord, i.options.Host)
	i.loaded = true

	i.tel.ReportDebug("setup completed", "receipt_line_key", key)
	return nil
}

// unload must be called with mu held.
func (i *Integration) unload() error {
	if !i.loaded {
		return nil
	}
	i.coordinator.Stop()
	err := i.client.Close()
	i.loaded = false
	if err != nil {
		i.tel.ReportWarning(report_integration_unload, err)
		return err
	}
	i.tel.ReportDebug("unloaded")
	return nil
}

// Unload stops polling and closes the portal session. It is safe to call
// more than once.
func (i *Integration) Unload() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.unload()
}

// Reload tears the integration down and sets it up again with the stored
// credentials and current options.
func (i *Integration) Reload(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	err := i.unload()
	if err != nil {
		return err
	}
	return i.load(ctx)
}

// UpdateOptions validates options and reloads the integration with them.
func (i *Integration) UpdateOptions(ctx context.Context, options Options) error {
	options = options.WithDefaults()
	if err := options.Validate(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	err := i.unload()
	if err != nil {
		return err
	}
	i.options = options
	return i.load(ctx)
}

// Key is the receipt line key identifying the device of this integration.
func (i *Integration) Key() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.key
}

func (i *Integration) Options() Options {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.options
}

func (i *Integration) Loaded() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.loaded
}

func (i *Integration) Coordinator() *coordinator.Coordinator {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.coordinator
}

func (i *Integration) Sensors() []entities.Sensor {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.sensors
}

func (i *Integration) BinarySensors() []entities.BinarySensor {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.binarySensors
}

func classifySetupError(err error) error {
	if errors.Is(err, bwt.ErrAuthentication) {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	return fmt.Errorf("%w: %w", ErrNotReady, err)
}
