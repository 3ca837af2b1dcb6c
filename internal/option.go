package internal

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config   *Config
	registry *prometheus.Registry
	out      io.Writer

	fragment string
	siteURL  string
	submit   bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRegistry sets the Prometheus registry metrics are registered with.
// Without it a fresh registry is used.
func WithRegistry(r *prometheus.Registry) Option {
	return func(a *application) {
		a.registry = r
	}
}

// WithOutput sets where the search command writes results.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithFragment sets the initial query in URL fragment form.
func WithFragment(fragment string) Option {
	return func(a *application) {
		a.fragment = fragment
	}
}

// WithSiteURL overrides the site the dataset is fetched from. An empty URL
// reads the charts root directly.
func WithSiteURL(u string) Option {
	return func(a *application) {
		a.siteURL = u
	}
}

// WithSubmit makes the search command print only the first candidate, as
// pressing Enter in the widget would navigate to it.
func WithSubmit(submit bool) Option {
	return func(a *application) {
		a.submit = submit
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.registry == nil {
		app.registry = prometheus.NewRegistry()
	}
	return app, nil
}
