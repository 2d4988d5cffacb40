// Package health tracks per-category health from operation outcomes.
package health

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cloudkit/cloudkit/internal/logging"
	"github.com/cloudkit/cloudkit/pkg/errors"
)

// State is the health state of a category.
type State int

const (
	// StateHealthy indicates the category is fully operational
	StateHealthy State = iota

	// StateDegraded indicates repeated recent failures
	StateDegraded

	// StateUnavailable indicates the category is failing every operation
	StateUnavailable
)

// String returns the string representation of a health state
func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// CategoryHealth is a snapshot of one category's health.
type CategoryHealth struct {
	Category          string    `json:"category"`
	State             State     `json:"state"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	LastError         string    `json:"last_error,omitempty"`
	LastStateChange   time.Time `json:"last_state_change"`
	LastCheck         time.Time `json:"last_check"`
}

// Config sets the failure counts at which a category changes state.
type Config struct {
	ErrorThreshold       int `yaml:"error_threshold"`
	UnavailableThreshold int `yaml:"unavailable_threshold"`
}

// DefaultConfig returns a default tracker configuration
func DefaultConfig() Config {
	return Config{
		ErrorThreshold:       3,
		UnavailableThreshold: 10,
	}
}

// Tracker implements metrics.Recorder so it can observe plugin operations
// alongside the metrics collector.
type Tracker struct {
	mu         sync.RWMutex
	categories map[string]*CategoryHealth
	config     Config
	logger     *slog.Logger
}

// NewTracker creates a new health tracker
func NewTracker(config Config, logger *slog.Logger) *Tracker {
	if config.ErrorThreshold <= 0 {
		config.ErrorThreshold = DefaultConfig().ErrorThreshold
	}
	if config.UnavailableThreshold < config.ErrorThreshold {
		config.UnavailableThreshold = config.ErrorThreshold
	}
	return &Tracker{
		categories: make(map[string]*CategoryHealth),
		config:     config,
		logger:     logging.OrDefault(logger).With("component", "health"),
	}
}

// Register starts tracking a category as healthy.
func (t *Tracker) Register(category string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.categories[category]; !exists {
		now := time.Now()
		t.categories[category] = &CategoryHealth{
			Category:        category,
			State:           StateHealthy,
			LastStateChange: now,
			LastCheck:       now,
		}
	}
}

// RecordOperation updates the category from an operation outcome. Missing
// objects are caller errors and do not count against health.
func (t *Tracker) RecordOperation(category, _ string, _ time.Duration, err error) {
	if err != nil && errors.CodeOf(err) == errors.ErrCodeObjectNotFound {
		err = nil
	}
	t.record(category, err)
}

// RecordResolution is a no-op; resolution failures say nothing about health.
func (t *Tracker) RecordResolution(string, error) {}

// RecordConfiguration registers the category once it configures successfully.
func (t *Tracker) RecordConfiguration(category string, err error) {
	if err == nil {
		t.Register(category)
	}
}

// RecordCheck records the outcome of an explicit health check.
func (t *Tracker) RecordCheck(category string, err error) {
	t.record(category, err)
}

func (t *Tracker) record(category string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, exists := t.categories[category]
	if !exists {
		return
	}

	old := h.State
	h.LastCheck = time.Now()

	if err == nil {
		if h.ConsecutiveErrors > 0 {
			h.ConsecutiveErrors--
			if h.ConsecutiveErrors == 0 {
				t.transition(h, StateHealthy)
			}
		}
	} else {
		h.ConsecutiveErrors++
		h.LastError = err.Error()
		switch {
		case h.ConsecutiveErrors >= t.config.UnavailableThreshold:
			t.transition(h, StateUnavailable)
		case h.ConsecutiveErrors >= t.config.ErrorThreshold:
			t.transition(h, StateDegraded)
		}
	}

	if old != h.State {
		t.logger.Warn("Category health changed",
			"category", category,
			"from", old.String(),
			"to", h.State.String(),
			"consecutive_errors", h.ConsecutiveErrors)
	}
}

func (t *Tracker) transition(h *CategoryHealth, state State) {
	if h.State != state {
		h.State = state
		h.LastStateChange = time.Now()
	}
}

// State returns the state of a category; unknown categories are unavailable.
func (t *Tracker) State(category string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if h, exists := t.categories[category]; exists {
		return h.State
	}
	return StateUnavailable
}

// Snapshot returns a copy of every tracked category sorted by name.
func (t *Tracker) Snapshot() []CategoryHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]CategoryHealth, 0, len(t.categories))
	for _, h := range t.categories {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// Overall returns the worst state across all categories.
func (t *Tracker) Overall() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	overall := StateHealthy
	for _, h := range t.categories {
		if h.State > overall {
			overall = h.State
		}
	}
	return overall
}
