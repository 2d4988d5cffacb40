package metrics

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	cerrors "github.com/cloudkit/cloudkit/pkg/errors"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("with valid config", func(t *testing.T) {
		config := &Config{
			Enabled:   true,
			Port:      9190,
			Path:      "/metrics",
			Namespace: "cloudkit",
			Subsystem: "test",
		}
		collector, err := NewCollector(config)
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.config != config {
			t.Error("collector.config does not match input config")
		}
		if collector.Registry() == nil {
			t.Error("collector registry is nil")
		}
		if collector.operations == nil {
			t.Error("collector.operations map is nil")
		}
	})

	t.Run("with nil config uses defaults", func(t *testing.T) {
		collector, err := NewCollector(nil)
		if err != nil {
			t.Fatalf("NewCollector(nil) error = %v, want nil", err)
		}
		if collector.config.Port != 9090 {
			t.Errorf("default port = %d, want 9090", collector.config.Port)
		}
		if collector.config.Path != "/metrics" {
			t.Errorf("default path = %q, want %q", collector.config.Path, "/metrics")
		}
		if collector.config.Namespace != "cloudkit" {
			t.Errorf("default namespace = %q, want %q", collector.config.Namespace, "cloudkit")
		}
	})

	t.Run("with disabled config", func(t *testing.T) {
		collector, err := NewCollector(&Config{Enabled: false})
		if err != nil {
			t.Fatalf("NewCollector() error = %v", err)
		}
		if collector.Registry() != nil {
			t.Error("disabled collector should not have registry")
		}
	})
}

func TestRecordOperation(t *testing.T) {
	t.Parallel()

	t.Run("success and failure", func(t *testing.T) {
		collector, err := NewCollector(&Config{Enabled: true, Namespace: "test"})
		if err != nil {
			t.Fatalf("NewCollector() error = %v", err)
		}

		collector.RecordOperation("storage", "upload", 100*time.Millisecond, nil)
		collector.RecordOperation("storage", "upload", 300*time.Millisecond,
			cerrors.New(cerrors.CategoryStorage, cerrors.ErrCodeAccessDenied, "denied"))

		op, ok := collector.GetOperations()["storage.upload"]
		if !ok {
			t.Fatal("storage.upload not recorded")
		}
		if op.Count != 2 {
			t.Errorf("op.Count = %d, want 2", op.Count)
		}
		if op.Errors != 1 {
			t.Errorf("op.Errors = %d, want 1", op.Errors)
		}
		if op.AvgDuration != 200*time.Millisecond {
			t.Errorf("op.AvgDuration = %v, want 200ms", op.AvgDuration)
		}

		success := testutil.ToFloat64(collector.operationCounter.WithLabelValues("storage", "upload", "success"))
		if success != 1 {
			t.Errorf("success counter = %v, want 1", success)
		}
		denied := testutil.ToFloat64(collector.errorCounter.WithLabelValues("storage", "ACCESS_DENIED"))
		if denied != 1 {
			t.Errorf("ACCESS_DENIED counter = %v, want 1", denied)
		}
	})

	t.Run("plain errors are counted as unknown", func(t *testing.T) {
		collector, _ := NewCollector(&Config{Enabled: true, Namespace: "test"})
		collector.RecordOperation("analytics", "flush", time.Millisecond, errors.New("boom"))

		got := testutil.ToFloat64(collector.errorCounter.WithLabelValues("analytics", "UNKNOWN_ERROR"))
		if got != 1 {
			t.Errorf("UNKNOWN_ERROR counter = %v, want 1", got)
		}
	})

	t.Run("disabled collector ignores operations", func(t *testing.T) {
		collector, _ := NewCollector(&Config{Enabled: false})
		collector.RecordOperation("storage", "upload", time.Millisecond, nil)
		collector.RecordResolution("storage", nil)
		collector.RecordConfiguration("storage", nil)

		if len(collector.GetOperations()) != 0 {
			t.Error("disabled collector should not track operations")
		}
	})
}

func TestRecordResolutionAndConfiguration(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: true, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	collector.RecordResolution("analytics", nil)
	collector.RecordResolution("storage", cerrors.NoSuchProvider("none"))
	collector.RecordConfiguration("analytics",
		cerrors.Analytics(cerrors.ErrCodeMissingConfig, "Missing Analytics configuration", "enable it"))

	if got := testutil.ToFloat64(collector.resolutionCounter.WithLabelValues("analytics", "resolved")); got != 1 {
		t.Errorf("resolved = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.resolutionCounter.WithLabelValues("storage", "missing")); got != 1 {
		t.Errorf("missing = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.configureCounter.WithLabelValues("analytics", "error")); got != 1 {
		t.Errorf("configure error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.errorCounter.WithLabelValues("analytics", "MISSING_CONFIGURATION")); got != 1 {
		t.Errorf("MISSING_CONFIGURATION = %v, want 1", got)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	collector, _ := NewCollector(&Config{Enabled: true, Port: 0, Path: "/metrics", Namespace: "test"})
	if err := collector.Start(nil); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := collector.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	disabled, _ := NewCollector(&Config{Enabled: false})
	if err := disabled.Start(nil); err != nil {
		t.Errorf("disabled Start() error = %v", err)
	}
	if err := disabled.Stop(ctx); err != nil {
		t.Errorf("disabled Stop() error = %v", err)
	}
}

func TestHandle(t *testing.T) {
	t.Parallel()

	collector, _ := NewCollector(&Config{Enabled: true, Namespace: "test"})
	collector.Handle("/health", http.NotFoundHandler())

	if _, ok := collector.handlers["/health"]; !ok {
		t.Error("handler not mounted")
	}
}

func TestNopRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = Nop{}
	r.RecordOperation("storage", "upload", time.Second, errors.New("ignored"))
	r.RecordResolution("storage", nil)
	r.RecordConfiguration("storage", nil)

	var _ Recorder = (*Collector)(nil)
}

func TestMultiRecorder(t *testing.T) {
	t.Parallel()

	first, err := NewCollector(&Config{Enabled: true, Namespace: "first"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	second, err := NewCollector(&Config{Enabled: true, Namespace: "second"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	var r Recorder = Multi{first, Nop{}, second}
	r.RecordOperation("analytics", "flush", time.Millisecond, nil)
	r.RecordResolution("analytics", nil)
	r.RecordConfiguration("analytics", nil)

	for _, c := range []*Collector{first, second} {
		ops := c.GetOperations()
		if ops["analytics.flush"].Count != 1 {
			t.Errorf("analytics.flush count = %d, want 1", ops["analytics.flush"].Count)
		}
	}
}
