package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cerrors "github.com/cloudkit/cloudkit/pkg/errors"
)

// Recorder is what plugins and the framework report to. *Collector
// implements it; Nop discards everything.
type Recorder interface {
	RecordOperation(category, operation string, duration time.Duration, err error)
	RecordResolution(category string, err error)
	RecordConfiguration(category string, err error)
}

// Nop is a Recorder that records nothing.
type Nop struct{}

func (Nop) RecordOperation(string, string, time.Duration, error) {}
func (Nop) RecordResolution(string, error)                       {}
func (Nop) RecordConfiguration(string, error)                    {}

// Multi fans every record out to each recorder in order.
type Multi []Recorder

func (m Multi) RecordOperation(category, operation string, d time.Duration, err error) {
	for _, r := range m {
		r.RecordOperation(category, operation, d, err)
	}
}

func (m Multi) RecordResolution(category string, err error) {
	for _, r := range m {
		r.RecordResolution(category, err)
	}
}

func (m Multi) RecordConfiguration(category string, err error) {
	for _, r := range m {
		r.RecordConfiguration(category, err)
	}
}

// Collector exports category metrics to Prometheus.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry

	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	resolutionCounter *prometheus.CounterVec
	configureCounter  *prometheus.CounterVec
	errorCounter      *prometheus.CounterVec

	operations map[string]*OperationMetrics

	handlers map[string]http.Handler
	server   *http.Server
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Labels    map[string]string `yaml:"labels"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "cloudkit",
		Labels:    make(map[string]string),
	}
}

// OperationMetrics tracks metrics for a specific category operation
type OperationMetrics struct {
	Count         int64         `json:"count"`
	Errors        int64         `json:"errors"`
	TotalDuration time.Duration `json:"total_duration"`
	AvgDuration   time.Duration `json:"avg_duration"`
	LastOperation time.Time     `json:"last_operation"`
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	collector := &Collector{
		config:     config,
		registry:   prometheus.NewRegistry(),
		operations: make(map[string]*OperationMetrics),
	}

	collector.initMetrics()

	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// Registry returns the underlying Prometheus registry, nil when disabled.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handle mounts an extra handler next to the metrics endpoint. It must be
// called before Start.
func (c *Collector) Handle(pattern string, handler http.Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = make(map[string]http.Handler)
	}
	c.handlers[pattern] = handler
}

// Start serves the metrics endpoint until Stop is called.
func (c *Collector) Start(logger *slog.Logger) error {
	if !c.config.Enabled {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	c.mu.RLock()
	for pattern, h := range c.handlers {
		mux.Handle(pattern, h)
	}
	c.mu.RUnlock()

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	return nil
}

// Stop shuts down the metrics endpoint.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordOperation records one category operation.
func (c *Collector) RecordOperation(category, operation string, duration time.Duration, err error) {
	if !c.config.Enabled {
		return
	}

	key := category + "." + operation
	failed := err != nil

	c.mu.Lock()
	m, ok := c.operations[key]
	if !ok {
		m = &OperationMetrics{}
		c.operations[key] = m
	}
	m.Count++
	m.TotalDuration += duration
	m.AvgDuration = time.Duration(int64(m.TotalDuration) / m.Count)
	m.LastOperation = time.Now()
	if failed {
		m.Errors++
	}
	c.mu.Unlock()

	c.operationCounter.With(prometheus.Labels{
		"category":  category,
		"operation": operation,
		"status":    status(err),
	}).Inc()
	c.operationDuration.With(prometheus.Labels{
		"category":  category,
		"operation": operation,
	}).Observe(duration.Seconds())

	if failed {
		c.recordError(category, err)
	}
}

// RecordResolution records a category lookup.
func (c *Collector) RecordResolution(category string, err error) {
	if !c.config.Enabled {
		return
	}

	outcome := "resolved"
	if err != nil {
		outcome = "missing"
	}
	c.resolutionCounter.With(prometheus.Labels{
		"category": category,
		"outcome":  outcome,
	}).Inc()
}

// RecordConfiguration records a plugin configuration attempt.
func (c *Collector) RecordConfiguration(category string, err error) {
	if !c.config.Enabled {
		return
	}

	c.configureCounter.With(prometheus.Labels{
		"category": category,
		"status":   status(err),
	}).Inc()

	if err != nil {
		c.recordError(category, err)
	}
}

// GetOperations returns a snapshot of per-operation metrics.
func (c *Collector) GetOperations() map[string]OperationMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]OperationMetrics, len(c.operations))
	for k, v := range c.operations {
		out[k] = *v
	}
	return out
}

func (c *Collector) recordError(category string, err error) {
	c.errorCounter.With(prometheus.Labels{
		"category": category,
		"code":     string(cerrors.CodeOf(err)),
	}).Inc()
}

func (c *Collector) initMetrics() {
	constLabels := prometheus.Labels(c.config.Labels)

	c.operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operations_total",
			Help:        "Total number of category operations",
			ConstLabels: constLabels,
		},
		[]string{"category", "operation", "status"},
	)

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operation_duration_seconds",
			Help:        "Duration of category operations in seconds",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~32s
			ConstLabels: constLabels,
		},
		[]string{"category", "operation"},
	)

	c.resolutionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "plugin_resolutions_total",
			Help:        "Total number of category plugin lookups",
			ConstLabels: constLabels,
		},
		[]string{"category", "outcome"},
	)

	c.configureCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "plugin_configurations_total",
			Help:        "Total number of plugin configuration attempts",
			ConstLabels: constLabels,
		},
		[]string{"category", "status"},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "errors_total",
			Help:        "Total number of errors by category and code",
			ConstLabels: constLabels,
		},
		[]string{"category", "code"},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.operationCounter,
		c.operationDuration,
		c.resolutionCounter,
		c.configureCounter,
		c.errorCounter,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
