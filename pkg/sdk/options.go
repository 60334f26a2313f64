package docflat

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	database       string
	hosts          []string
	ports          []string
	username       string
	password       string
	readPreference string
	batchSize      int32

	flatten    bool
	fieldRules []FieldRule
	onDate     func(*DateError)

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// FieldRule copies a source field to a column, optionally reparsing it as a
// date. An empty Column writes back to MongoField.
type FieldRule struct {
	MongoField string
	Column     string
	// DateFormat is a SimpleDateFormat-style pattern such as "yyyy-MM-dd HH:mm:ss".
	DateFormat string
}

// WithDatabase sets the database to read from. Required.
func WithDatabase(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.database = name
	})
}

// WithHosts sets the server hosts. Defaults to localhost.
func WithHosts(hosts ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.hosts = hosts
	})
}

// WithPorts sets the server ports. Ports pair with hosts by position when
// both lists have the same length; otherwise every host uses the first port.
// Defaults to 27017.
func WithPorts(ports ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.ports = ports
	})
}

// WithCredentials authenticates against the configured database.
func WithCredentials(username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.username = username
		c.password = password
	})
}

// WithReadPreference sets the read preference mode. Default: secondaryPreferred.
func WithReadPreference(mode string) Option {
	return optionFunc(func(c *clientConfig) {
		c.readPreference = mode
	})
}

// WithBatchSize sets the cursor batch size.
func WithBatchSize(n int32) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = n
	})
}

// WithFlatten toggles dotted-path flattening. When off, each top-level field
// becomes one column and nested values are serialized. Default: on.
func WithFlatten(on bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.flatten = on
	})
}

// WithFieldRules sets the column rules applied to every row.
func WithFieldRules(rules ...FieldRule) Option {
	return optionFunc(func(c *clientConfig) {
		c.fieldRules = append(c.fieldRules, rules...)
	})
}

// WithObserver registers a callback for date values that fail to parse.
func WithObserver(fn func(*DateError)) Option {
	return optionFunc(func(c *clientConfig) {
		c.onDate = fn
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts, durations and date
// failures) on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
