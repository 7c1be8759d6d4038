package commands

import (
	"bwt-monservice/internal/components/chrono"
	"bwt-monservice/internal/components/telemetry"
	"bwt-monservice/internal/integration"
	"bwt-monservice/internal/scrapers/bwt"
	"bwt-monservice/pkg/configutil"

	"golang.org/x/time/rate"
)

type Config struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	ScanInterval int    `json:"scan_interval"`
	Host         string `json:"host"`
	// BaseUrl and RateLimit are only meant to be changed for debugging.
	BaseUrl   string  `json:"base_url"`
	RateLimit float64 `json:"rate_limit"`
}

func readConfig(path string) (Config, error) {
	return configutil.ReadConfig[Config](path)
}

func (c Config) Credentials() integration.Credentials {
	return integration.Credentials{
		Username: c.Username,
		Password: c.Password,
	}
}

func (c Config) Options() integration.Options {
	return integration.Options{
		ScanInterval: c.ScanInterval,
		Host:         c.Host,
	}
}

func (c Config) ClientOptions() bwt.ClientOptions {
	return bwt.ClientOptions{
		BaseUrl:   c.BaseUrl,
		RateLimit: rate.Limit(c.RateLimit),
	}
}

func (c Config) Env(tel telemetry.API, cron chrono.CronAPI) integration.Env {
	return integration.Env{
		Telemetry: tel,
		Clock:     chrono.NewStandardImpl(),
		Cron:      cron,
		Client:    c.ClientOptions(),
	}
}
