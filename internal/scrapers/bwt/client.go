// client.go holds the portal session: the cookie-bearing http client, the
// stored credentials and the memoized receipt line key.

package bwt

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"bwt-monservice/internal/components/assert"
	"bwt-monservice/internal/components/chrono"
	"bwt-monservice/internal/components/telemetry"
	"bwt-monservice/pkg/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("bwt-monservice/scrapers/bwt")

const (
	DefaultBaseUrl = "https://www.bwt-monservice.com"
	DefaultTimeout = 30 * time.Second

	loginPath     = "/login"
	dashboardPath = "/dashboard"
	devicePath    = "/device"
	ajaxPath      = "/device/ajaxChart"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	// closeDelay is how long Close waits for the transport to finish tearing
	// down connections.
	closeDelay = 250 * time.Millisecond
)

const (
	report_client_authenticate     = "client.authenticate"
	report_client_receipt_line_key = "client.receipt-line-key"
	report_client_get_device_data  = "client.get-device-data"
	report_client_fetch_ajax       = "client.fetch-ajax"
	report_client_fetch_html       = "client.fetch-html"
	report_client_close            = "client.close"
)

type ClientOptions struct {
	// BaseUrl defaults to DefaultBaseUrl.
	BaseUrl string
	// Timeout is the overall budget of a single request, it defaults to DefaultTimeout.
	Timeout time.Duration
	// RateLimit is the maximum requests per second, it defaults to 2.
	RateLimit rate.Limit
	// DisableCloudflareBypass leaves the default transport untouched.
	DisableCloudflareBypass bool
	// Dump receives every http exchange when set, see restyutil.DumpExchanges.
	Dump restyutil.Output

	Telemetry telemetry.API
	// Clock decides what "today" is when selecting the history row, defaults to UTC wall time.
	Clock chrono.API
}

// Client is a logged in session against the portal. It is not safe for
// concurrent use, callers are expected to serialize calls.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	tel       telemetry.API
	clock     chrono.API
	transport *http.Transport

	username       string
	password       string
	authenticated  bool
	receiptLineKey string
	closed         bool
}

func NewClient(opts ClientOptions) (*Client, error) {
	assert.NotNil(opts.Telemetry)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 2
	}
	if opts.Clock == nil {
		opts.Clock = chrono.NewStandardImpl()
	}

	tel := telemetry.NewScopedAPI("bwt", opts.Telemetry)

	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	httpClient.SetCookieJar(jar)
	httpClient.SetTransport(transport)
	if !opts.DisableCloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	httpClient.SetTimeout(opts.Timeout)

	// max burst >= rate just means that no requests will be dropped
	burst := 1
	if opts.RateLimit != rate.Inf && opts.RateLimit > 1 {
		burst = int(opts.RateLimit)
	}
	rateLimiter := rate.NewLimiter(opts.RateLimit, burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, "bwt-monservice/scrapers/bwt/http")
	restyutil.DumpExchanges(httpClient, opts.Dump)

	return &Client{
		BaseUrl:   baseUrl,
		Http:      httpClient,
		tel:       tel,
		clock:     opts.Clock,
		transport: transport,
	}, nil
}

// IsAuthenticated reports whether the last login succeeded and no 401/403
// has been observed since.
func (c *Client) IsAuthenticated() bool {
	return c.authenticated
}

func (c *Client) Closed() bool {
	return c.closed
}

func (c *Client) checkOpen() error {
	if c.closed {
		return fmt.Errorf("%w: client is closed", ErrConnection)
	}
	return nil
}

func (c *Client) deviceUrl() string {
	return fmt.Sprintf(
		"%s%s?receiptLineKey=%s",
		c.BaseUrl.String(), devicePath, url.QueryEscape(c.receiptLineKey),
	)
}

// Close releases the transport. It is safe to call more than once, only the
// first call waits for the connections to wind down.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.authenticated = false

	c.tel.ReportDebug(report_client_close)
	c.Http.GetClient().CloseIdleConnections()
	c.transport.CloseIdleConnections()

	time.Sleep(closeDelay)
	return nil
}

// checkStatus applies the status policy shared by every scrape.
func checkStatus(res *resty.Response) error {
	switch code := res.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", errSessionExpired, code)
	case code == http.StatusInternalServerError:
		return fmt.Errorf("%w: server overload (500)", ErrConnection)
	case code != http.StatusOK:
		return fmt.Errorf("%w: unexpected status %d", ErrConnection, code)
	}
	return nil
}

// transportError wraps a resty error so that callers only ever see ErrConnection.
func transportError(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnection, what, ctx.Err())
	}
	return fmt.Errorf("%w: %s: %w", ErrConnection, what, err)
}
