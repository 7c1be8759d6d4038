package bwt

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// the login page has no stable markup to test against, these substrings are
// all there is to tell a failed login apart from a successful one. they break
// whenever the portal changes its wording.
var (
	dashboardMarker          = "dashboard"
	invalidCredentialPhrases = []string{"identifiants invalides", "invalid credentials"}
	loginFormFields          = []string{"_username", "_password"}
)

type loginOutcome int

const (
	// the portal redirected to the dashboard
	loginRedirected loginOutcome = iota
	// nothing indicated a failure, the login is assumed to have worked
	loginAssumed
)

// classifyLogin decides from the final url and body of the login response
// whether the credentials were accepted.
func classifyLogin(finalUrl, body string) (loginOutcome, error) {
	if strings.Contains(finalUrl, dashboardMarker) {
		return loginRedirected, nil
	}

	lowered := strings.ToLower(body)
	for _, phrase := range invalidCredentialPhrases {
		if strings.Contains(lowered, phrase) {
			return 0, fmt.Errorf("%w: invalid credentials", ErrAuthentication)
		}
	}

	for _, field := range loginFormFields {
		if strings.Contains(body, field) {
			return 0, fmt.Errorf("%w: login form still present", ErrAuthentication)
		}
	}

	return loginAssumed, nil
}

// Authenticate logs in and stores the credentials for later re-authentication.
func (c *Client) Authenticate(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:Authenticate")
	defer span.End()

	if err := c.checkOpen(); err != nil {
		return err
	}

	c.tel.ReportDebug("authenticating user", username)
	c.username = username
	c.password = password

	// visiting the login page first picks up whatever cookies the form expects,
	// it does not matter if it fails.
	res, err := c.Http.R().
		SetContext(ctx).
		Get(loginPath)
	if err != nil {
		c.tel.ReportDebug("login page warmup failed (continuing anyway)", err)
	} else {
		c.tel.ReportDebug("login page warmup", res.StatusCode())
	}

	res, err = c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"_username": username,
			"_password": password,
		}).
		Post(loginPath)
	if err != nil {
		c.authenticated = false
		c.tel.ReportWarning(report_client_authenticate, fmt.Errorf("login request: %w", err))
		span.SetStatus(codes.Error, "login request failed")
		return transportError(ctx, "authenticate", err)
	}

	if res.StatusCode() != http.StatusOK {
		c.authenticated = false
		span.SetStatus(codes.Error, "login returned non-200")
		return fmt.Errorf("%w: login failed with status %d", ErrAuthentication, res.StatusCode())
	}

	finalUrl := res.Request.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalUrl = res.RawResponse.Request.URL.String()
	}
	span.SetAttributes(attribute.String("final_url", finalUrl))

	outcome, err := classifyLogin(finalUrl, res.String())
	if err != nil {
		c.authenticated = false
		c.tel.ReportWarning(report_client_authenticate, err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	switch outcome {
	case loginRedirected:
		c.tel.ReportDebug("authentication successful (redirected to dashboard)")
	case loginAssumed:
		// TODO: this accepts any unrecognized page as a successful login, tighten
		// it once the portal's post-login landing page is known to be stable.
		c.tel.ReportWarning(
			report_client_authenticate,
			"login completed but not redirected to dashboard, assuming success",
			finalUrl,
		)
	}

	c.authenticated = true
	return nil
}

// ensureAuthenticated logs in again with the stored credentials if the
// session is not (or no longer) authenticated.
func (c *Client) ensureAuthenticated(ctx context.Context) error {
	if c.authenticated {
		return nil
	}
	if c.username == "" || c.password == "" {
		return fmt.Errorf("%w: no credentials stored for re-authentication", ErrAuthentication)
	}
	c.tel.ReportWarning(report_client_authenticate, "session expired, re-authenticating")
	return c.Authenticate(ctx, c.username, c.password)
}

// expire marks the session as unauthenticated after a 401/403.
func (c *Client) expire(reportId string, err error) {
	c.tel.ReportWarning(reportId, fmt.Errorf("re-authenticating: %w", err))
	c.authenticated = false
}
