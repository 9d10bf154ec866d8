package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMonitorStages(t *testing.T) {
	reg := NewRegistry()
	m := NewMonitor("req-1", reg, nil)

	parse := m.StartStage("request_parsing")
	parse.Finish(nil)
	vision := m.StartStage("vision_analysis")
	vision.Finish(errors.New("throttled"))
	vision.Finish(nil) // second finish is ignored

	sum := m.Summary()
	if sum.TotalStages != 2 || sum.SuccessfulStages != 1 || sum.FailedStages != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.Stages[1].Error != "throttled" {
		t.Fatalf("stage error = %q", sum.Stages[1].Error)
	}

	snap := reg.Snapshot()
	if got := snap.Timers["stage_duration{stage=request_parsing,success=true}"].Count; got != 1 {
		t.Fatalf("stage timer count = %d", got)
	}
	if got := snap.Timers["stage_duration{stage=vision_analysis,success=false}"].Count; got != 1 {
		t.Fatalf("failed stage timer count = %d", got)
	}
}

func TestMonitorMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewMonitor("req-2", reg, nil)

	m.Counter("drug_info_skipped", map[string]string{"reason": "low_confidence"})
	m.Gauge("vision_confidence", 0.42)
	m.Timer("request_duration", 1500*time.Millisecond, nil)

	if v, ok := m.Metric("vision_confidence"); !ok || v != 0.42 {
		t.Fatalf("gauge = %v %v", v, ok)
	}
	if v, _ := m.Metric("drug_info_skipped{reason=low_confidence}"); v != 1 {
		t.Fatalf("counter = %v", v)
	}
	if v, _ := m.Metric("request_duration"); v != 1.5 {
		t.Fatalf("timer = %v", v)
	}
	if reg.Counter("drug_info_skipped", map[string]string{"reason": "low_confidence"}).Value() != 1 {
		t.Fatal("registry counter not incremented")
	}
}

func TestRegistryConcurrentCounters(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Counter("requests_total", map[string]string{"success": "true"}).Inc()
			reg.Timer("request_duration", nil).Observe(time.Millisecond)
		}()
	}
	wg.Wait()

	if got := reg.Counter("requests_total", map[string]string{"success": "true"}).Value(); got != 50 {
		t.Fatalf("counter = %d, want 50", got)
	}
	stats := reg.Timer("request_duration", nil).Stats()
	if stats.Count != 50 || stats.Average != time.Millisecond || stats.Max != time.Millisecond {
		t.Fatalf("timer stats = %+v", stats)
	}
}

func TestStartSpanFeedsTimer(t *testing.T) {
	_, end := StartSpan(context.Background(), "druginfo", "lookup")
	end(nil)
	if Default().Timer("druginfo.lookup", nil).Stats().Count == 0 {
		t.Fatal("span should observe the component timer")
	}
}

func TestSpanLogsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	shutdown, err := Setup(context.Background(), Config{Enabled: true}, logger)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer func() {
		_ = shutdown(context.Background())
		current.Store(nil)
	}()

	ctx := ContextWithRequestID(context.Background(), "req-42")
	_, end := StartSpan(ctx, "vision", "analyze")
	end(errors.New("boom"))

	out := buf.String()
	if !strings.Contains(out, "request_id=req-42") || !strings.Contains(out, "error=boom") {
		t.Fatalf("span log missing fields: %s", out)
	}
	if Default().Counter("vision.analyze.errors", nil).Value() == 0 {
		t.Fatal("failed span should count an error")
	}
	if RequestIDFromContext(context.Background()) != "" {
		t.Fatal("empty context should carry no request id")
	}
}

func TestCollectSystemStats(t *testing.T) {
	stats := CollectSystemStats(context.Background())
	if stats.Goroutines <= 0 {
		t.Fatalf("goroutines = %d", stats.Goroutines)
	}
}
