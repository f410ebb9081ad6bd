package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	watch  bool
	stdout io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithWatch keeps the process running and re-publishes files as they change.
func WithWatch() Option {
	return func(a *application) {
		a.watch = true
	}
}

// WithOutput redirects the per-run summary (defaults to os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.stdout = w
	}
}
