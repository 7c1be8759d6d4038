package integration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultScanInterval = 10
	MinScanInterval     = 5
	MaxScanInterval     = 1440
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Credentials are only held in memory for re-authentication.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Options can change while an integration is running, applying them reloads it.
type Options struct {
	// ScanInterval is the polling period in minutes.
	ScanInterval int `json:"scan_interval" validate:"min=5,max=1440"`
	// Host optionally points at the device on the local network, it is only
	// used as the configuration url of the device.
	Host string `json:"host,omitempty" validate:"omitempty,hostname_port|hostname|ip"`
}

// WithDefaults fills in unset fields.
func (o Options) WithDefaults() Options {
	if o.ScanInterval == 0 {
		o.ScanInterval = DefaultScanInterval
	}
	return o
}

func (o Options) Validate() error {
	return validationError(validate.Struct(o))
}

func (c Credentials) Validate() error {
	return validationError(validate.Struct(c))
}

// ErrInvalidOptions is returned for options or credentials failing validation.
var ErrInvalidOptions = errors.New("invalid options")

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs[i] = fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
			continue
		}
		msgs[i] = fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(msgs, ", "))
}
