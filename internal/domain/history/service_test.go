package history_test

import (
	"context"
	"testing"
	"time"

	"medid-server-go/internal/domain/eventbus"
	"medid-server-go/internal/domain/history"
	"medid-server-go/internal/platform/storage"
	platformtesting "medid-server-go/internal/platform/testing"
)

func newService(t *testing.T) *history.Service {
	t.Helper()
	db := platformtesting.OpenTestDB(t)
	return history.NewService(storage.NewAnalysisRepository(db), nil)
}

func TestServiceRecordsBusEvents(t *testing.T) {
	svc := newService(t)
	bus := eventbus.NewAsyncEventBus(1, nil)
	bus.Start()
	defer bus.Stop()

	if err := svc.Subscribe(bus); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	bus.PublishAsync(eventbus.EventAnalysisCompleted, eventbus.AnalysisEventData{
		RequestID:         "req-ok",
		Source:            "http",
		Success:           true,
		Confidence:        0.9,
		ConfidenceLevel:   "Very High",
		DrugInfoAvailable: true,
		ProcessingTime:    time.Second,
		Stages:            map[string]float64{"vision_analysis": 0.7},
	})
	bus.PublishAsync(eventbus.EventAnalysisFailed, eventbus.AnalysisEventData{
		RequestID: "req-bad",
		Source:    "agent",
		ErrorCode: "invalid_format",
	})
	bus.WaitAsync()

	ctx := context.Background()
	got, err := svc.Find(ctx, "req-ok")
	if err != nil || got == nil {
		t.Fatalf("Find() = %v, %v", got, err)
	}
	if !got.Success || got.Stages["vision_analysis"] != 0.7 {
		t.Fatalf("unexpected record %+v", got)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Total != 2 || stats.Succeeded != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	recent, err := svc.Recent(ctx, 0)
	if err != nil || len(recent) != 2 {
		t.Fatalf("Recent(0) = %d records, %v", len(recent), err)
	}
}

func TestServicePurge(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	if err := svc.Record(ctx, eventbus.AnalysisEventData{RequestID: "fresh"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	n, err := svc.Purge(ctx, time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("Purge() removed %d fresh records, err %v", n, err)
	}
	n, err = svc.Purge(ctx, -time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("Purge(-1h) = %d, %v; want 1", n, err)
	}
}
