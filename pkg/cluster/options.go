package cluster

import (
	"log/slog"

	"kvring/pkg/client"
	"kvring/pkg/metrics"
	"kvring/pkg/ring"
)

type options struct {
	replicas     int
	readOnMaster bool
	standalone   bool
	factory      client.Factory
	readOnly     func(name string) bool
	logger       *slog.Logger
	metrics      metrics.RouterMetrics
}

func defaultOptions() options {
	return options{
		replicas:     ring.DefaultReplicas,
		readOnMaster: true,
		factory:      client.NewHTTP,
		readOnly:     IsReadOnly,
		logger:       slog.Default(),
		metrics:      metrics.Nop(),
	}
}

// Option configures a Router.
type Option func(*options)

// WithReplicas sets R; every server gets R+1 ring points.
func WithReplicas(n int) Option {
	return func(o *options) { o.replicas = n }
}

// WithReadOnMaster controls whether the master also serves hashed reads.
// When false the master only receives writes.
func WithReadOnMaster(v bool) Option {
	return func(o *options) { o.readOnMaster = v }
}

// WithStandalone calls ForceStandalone on every client.
func WithStandalone(v bool) Option {
	return func(o *options) { o.standalone = v }
}

// WithClientFactory replaces the default HTTP client factory.
func WithClientFactory(f client.Factory) Option {
	return func(o *options) { o.factory = f }
}

// WithReadOnly replaces the read-only command classifier used for
// read/write splitting. Names are passed as given by the caller.
func WithReadOnly(f func(name string) bool) Option {
	return func(o *options) { o.readOnly = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m metrics.RouterMetrics) Option {
	return func(o *options) { o.metrics = m }
}
