package analysis

import (
	"bytes"
	"context"
	stderrors "errors"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"medid-server-go/internal/domain/druginfo"
	"medid-server-go/internal/domain/druginfo/model"
	"medid-server-go/internal/domain/eventbus"
	"medid-server-go/internal/domain/failure"
	imagepkg "medid-server-go/internal/domain/image"
	"medid-server-go/internal/domain/synthesis"
	"medid-server-go/internal/domain/vision"
	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/errors"
	"medid-server-go/internal/platform/observability"
)

func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewPCG(1, 2))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(rng.IntN(256)), uint8(rng.IntN(256)), uint8(rng.IntN(256)), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

type fakeProvider struct {
	mu      sync.Mutex
	answers []string
	errs    []error
	calls   int
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-vision" }

func (p *fakeProvider) Analyze(_ context.Context, _ vision.Request) (*vision.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if i := p.calls - 1; i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	return &vision.Response{Text: p.answers[min(p.calls-1, len(p.answers)-1)]}, nil
}

type fakeFetcher struct {
	mu    sync.Mutex
	label model.Label
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (model.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.label, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (p *recordingPublisher) PublishAsync(topic string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, args[0])
}

type fixture struct {
	svc      *Service
	provider *fakeProvider
	fetcher  *fakeFetcher
	events   *recordingPublisher
	registry *observability.Registry
}

func newFixture(t *testing.T, answers ...string) *fixture {
	t.Helper()
	cfg := config.DefaultConfig()
	fast := config.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, ExponentialBase: 2}
	cfg.Retry.Vision = fast
	cfg.Retry.Drug = config.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, ExponentialBase: 2}

	pipeline, err := imagepkg.NewPipeline(imagepkg.Options{Config: cfg.Image})
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	f := &fixture{
		provider: &fakeProvider{answers: answers},
		fetcher: &fakeFetcher{label: model.Label{
			BrandName:           "ADVIL",
			GenericName:         "IBUPROFEN",
			Purpose:             "Pain reliever",
			Warnings:            "Allergy alert",
			IndicationsAndUsage: "Temporarily relieves minor aches",
		}},
		events:   &recordingPublisher{},
		registry: observability.NewRegistry(),
	}
	f.svc, err = NewService(Options{
		Pipeline: pipeline,
		Vision:   vision.NewClient(f.provider, "", nil),
		Drugs:    druginfo.NewService(f.fetcher, nil, nil),
		Config:   cfg,
		Registry: f.registry,
		Events:   f.events,
		Now:      func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return f
}

func TestAnalyzeIdentifiesAndLooksUp(t *testing.T) {
	f := newFixture(t, "Medication name: Advil\nDosage: 200mg\nhigh confidence")
	img := imagepkg.EncodeBase64(noisePNG(t, 64, 64))

	body, err := f.svc.Analyze(context.Background(), Request{ImageData: img, Source: "test"})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !body.Success || body.MedicationName != "Advil" || body.Confidence != 0.9 {
		t.Fatalf("unexpected body %+v", body)
	}
	if !body.DrugInfoAvailable || body.DrugInfo == nil || body.DrugInfo.GenericName != "IBUPROFEN" {
		t.Fatalf("drug info missing: %+v", body.DrugInfo)
	}
	if body.RequestID == "" || body.PerformanceMetrics == nil {
		t.Fatalf("request id or metrics missing")
	}
	if body.PerformanceMetrics.StageCount != 6 || body.PerformanceMetrics.SuccessfulStages != 6 {
		t.Fatalf("metrics = %+v, want 6/6 stages", body.PerformanceMetrics)
	}
	if !strings.Contains(body.UserResponse, "Advil") {
		t.Fatalf("user response does not name the medication: %q", body.UserResponse)
	}

	snap := f.registry.Snapshot()
	if snap.Counters["requests_total{success=true}"] != 1 || snap.Counters["drug_info_requests{success=true}"] != 1 {
		t.Fatalf("unexpected counters %v", snap.Counters)
	}
	if snap.Gauges["vision_confidence"] != 0.9 {
		t.Fatalf("vision_confidence gauge = %v", snap.Gauges["vision_confidence"])
	}

	if len(f.events.topics) != 1 || f.events.topics[0] != eventbus.EventAnalysisCompleted {
		t.Fatalf("events = %v", f.events.topics)
	}
	ev := f.events.events[0].(eventbus.AnalysisEventData)
	if ev.RequestID != body.RequestID || !ev.DrugInfoAvailable || ev.VisionModel != "fake-vision" || ev.Stages[StageVisionAnalysis] < 0 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestAnalyzeSkipsLookupAtLowConfidence(t *testing.T) {
	f := newFixture(t, "This is Advil. low confidence")
	body, err := f.svc.Analyze(context.Background(), Request{ImageBytes: noisePNG(t, 64, 64)})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if f.fetcher.calls != 0 {
		t.Fatalf("fetcher called %d times at confidence 0.3", f.fetcher.calls)
	}
	if body.DrugInfoAvailable || body.PerformanceMetrics.StageCount != 5 {
		t.Fatalf("unexpected body %+v", body)
	}
	if f.registry.Snapshot().Counters["drug_info_skipped{reason=low_confidence}"] != 1 {
		t.Fatalf("skip counter not recorded")
	}
	if f.events.topics[0] != eventbus.EventDrugInfoSkipped {
		t.Fatalf("events = %v", f.events.topics)
	}
}

func TestAnalyzeWithoutMedication(t *testing.T) {
	f := newFixture(t, "The image is blurry. I cannot determine what this medication is.")
	body, err := f.svc.Analyze(context.Background(), Request{ImageBytes: noisePNG(t, 64, 64)})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if body.MedicationName != "Unknown" || body.DrugInfoAvailable {
		t.Fatalf("unexpected body %+v", body)
	}
	if f.registry.Snapshot().Counters["drug_info_skipped{reason=no_medication}"] != 1 {
		t.Fatalf("skip counter not recorded")
	}
}

func TestAnalyzeRejectsMissingImage(t *testing.T) {
	f := newFixture(t, "unused")
	_, err := f.svc.Analyze(context.Background(), Request{Prompt: "what is it"})
	if errors.CodeOf(err) != imagepkg.CodeNoImageData || errors.MessageOf(err) != MissingImageMessage {
		t.Fatalf("err = %v", err)
	}
	if f.provider.calls != 0 {
		t.Fatalf("vision called without an image")
	}
	ev := f.events.events[0].(eventbus.AnalysisEventData)
	if f.events.topics[0] != eventbus.EventAnalysisFailed || ev.ErrorCode != imagepkg.CodeNoImageData {
		t.Fatalf("unexpected failure event %s %+v", f.events.topics[0], ev)
	}
	if f.registry.Snapshot().Counters["request_errors{error_type=no_image_data}"] != 1 {
		t.Fatalf("request_errors not recorded")
	}
}

func TestAnalyzeRejectsInvalidImage(t *testing.T) {
	f := newFixture(t, "unused")
	_, err := f.svc.Analyze(context.Background(), Request{ImageBytes: bytes.Repeat([]byte("not an image "), 20)})
	if errors.CodeOf(err) != imagepkg.CodeInvalidFormat {
		t.Fatalf("code = %q, want invalid_format", errors.CodeOf(err))
	}
	if f.provider.calls != 0 {
		t.Fatalf("vision called for an invalid image")
	}
}

func TestAnalyzeRetriesTransientVisionErrors(t *testing.T) {
	f := newFixture(t, "Medication name: Tylenol\n90% confident")
	f.provider.errs = []error{stderrors.New("connection reset by peer")}

	body, err := f.svc.Analyze(context.Background(), Request{ImageBytes: noisePNG(t, 64, 64)})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if f.provider.calls != 2 || body.MedicationName != "Tylenol" {
		t.Fatalf("calls = %d, name = %q", f.provider.calls, body.MedicationName)
	}
}

func TestAnalyzeGivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, "unused")
	netErr := stderrors.New("connection refused")
	f.provider.errs = []error{netErr, netErr, netErr}

	_, err := f.svc.Analyze(context.Background(), Request{ImageBytes: noisePNG(t, 64, 64)})
	if errors.CodeOf(err) != vision.CodeNetwork {
		t.Fatalf("code = %q, want network_error", errors.CodeOf(err))
	}
	if f.provider.calls != 3 {
		t.Fatalf("calls = %d, want 3", f.provider.calls)
	}
}

func TestAnalyzeDrugNotFoundIsNotRetried(t *testing.T) {
	f := newFixture(t, "Medication name: Zzyzx\nhigh confidence")
	f.fetcher.err = errors.New(errors.KindDrugInfo, "druginfo.fetch", "No information found for 'Zzyzx'.").WithCode(druginfo.CodeNotFound)

	body, err := f.svc.Analyze(context.Background(), Request{ImageBytes: noisePNG(t, 64, 64)})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if f.fetcher.calls != 1 {
		t.Fatalf("fetcher calls = %d, want 1", f.fetcher.calls)
	}
	if body.DrugInfoAvailable || body.DrugInfo != nil {
		t.Fatalf("unexpected drug info %+v", body.DrugInfo)
	}
	if !strings.Contains(body.UserResponse, "Zzyzx") {
		t.Fatalf("user response = %q", body.UserResponse)
	}
}

func TestBackoff(t *testing.T) {
	p := config.RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second, ExponentialBase: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := Backoff(p, i+1); got != w {
			t.Errorf("Backoff(attempt %d) = %v, want %v", i+1, got, w)
		}
	}

	p.Jitter = true
	for i := 0; i < 50; i++ {
		got := Backoff(p, 2)
		if got < 1800*time.Millisecond || got > 2200*time.Millisecond {
			t.Fatalf("jittered delay %v outside ±10%% of 2s", got)
		}
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	p := config.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, ExponentialBase: 2}
	calls := 0
	_, err := Retry(context.Background(), p, nil, "op", func(context.Context) (int, error) {
		calls++
		return 0, errors.New(errors.KindImage, "op", "bad").WithCode(imagepkg.CodeInvalidFormat)
	})
	if err == nil || calls != 1 {
		t.Fatalf("calls = %d, err = %v", calls, err)
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	p := config.RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour, ExponentialBase: 2}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, p, nil, "op", func(context.Context) (int, error) {
			calls++
			return 0, errors.New(errors.KindTimeout, "op", "slow").WithCode(vision.CodeTimeout)
		})
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil || calls != 1 {
			t.Fatalf("calls = %d, err = %v", calls, err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Retry did not return after cancellation")
	}
}

func TestWithTimeout(t *testing.T) {
	_, err := withTimeout(context.Background(), 10*time.Millisecond, "slow.op", vision.CodeTimeout,
		func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
	if !errors.IsKind(err, errors.KindTimeout) || errors.CodeOf(err) != vision.CodeTimeout {
		t.Fatalf("err = %v, want vision timeout", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = withTimeout(ctx, time.Second, "op", vision.CodeTimeout, func(ctx context.Context) (int, error) {
		return 0, ctx.Err()
	})
	if !stderrors.Is(err, context.Canceled) || errors.IsKind(err, errors.KindTimeout) {
		t.Fatalf("caller cancellation should pass through, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "unused")
	h := f.svc.Health()
	if h.Status != "healthy" || h.Service != "image_analysis_tool" || h.Version != "1.0.0" {
		t.Fatalf("unexpected health %+v", h)
	}
	if !strings.HasPrefix(h.Timestamp, "2024-05-01T12:00:00") {
		t.Fatalf("timestamp = %q", h.Timestamp)
	}
}

func TestErrorResponse(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	status, body := ErrorResponse(errors.New(errors.KindValidation, "op", MissingImageMessage).WithCode(imagepkg.CodeNoImageData), now)
	typed, ok := body.(synthesis.ErrorBody)
	if status != 400 || !ok || typed.ErrorType != synthesis.ErrorValidation || typed.Error != MissingImageMessage {
		t.Fatalf("missing image -> %d %#v", status, body)
	}

	status, body = ErrorResponse(errors.New(errors.KindImage, "op", "too big").WithCode(imagepkg.CodeFileTooLarge), now)
	classified, ok := body.(failure.Body)
	if status != 400 || !ok || classified.ErrorCode != "file_too_large" || classified.RetryPossible {
		t.Fatalf("file too large -> %d %#v", status, body)
	}
}
