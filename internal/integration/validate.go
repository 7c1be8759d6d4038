package integration

import (
	"context"
	"errors"

	"bwt-monservice/internal/scrapers/bwt"

	"go.opentelemetry.io/otel/codes"
)

// Form error keys shown next to the credential form.
const (
	FormErrorInvalidAuth   = "invalid_auth"
	FormErrorCannotConnect = "cannot_connect"
	FormErrorUnknown       = "unknown"
)

type ValidationResult struct {
	Title string
	// ReceiptLineKey is the unique id of the account's device.
	ReceiptLineKey string
}

// ValidateInput checks that creds can log in and reach a device using a
// throwaway client, which is always closed before returning.
func ValidateInput(ctx context.Context, env Env, creds Credentials) (result ValidationResult, err error) {
	ctx, span := tracer.Start(ctx, "integration:ValidateInput")
	defer span.End()

	if err := creds.Validate(); err != nil {
		return ValidationResult{}, err
	}

	client, err := newClient(env.clientOptions())
	if err != nil {
		return ValidationResult{}, err
	}
	defer func() {
		closeErr := client.Close()
		if closeErr != nil {
			env.Telemetry.ReportWarning(report_integration_validate, closeErr)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			env.Telemetry.ReportWarning(report_integration_validate, err)
		}
	}()

	err = client.Authenticate(ctx, creds.Username, creds.Password)
	if err != nil {
		return ValidationResult{}, err
	}
	key, err := client.ReceiptLineKey(ctx)
	if err != nil {
		return ValidationResult{}, err
	}

	return ValidationResult{
		Title:          Title,
		ReceiptLineKey: key,
	}, nil
}

// FormError maps a ValidateInput error to the form error key to display.
func FormError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, bwt.ErrAuthentication), errors.Is(err, ErrInvalidOptions):
		return FormErrorInvalidAuth
	case errors.Is(err, bwt.ErrConnection):
		return FormErrorCannotConnect
	default:
		return FormErrorUnknown
	}
}
