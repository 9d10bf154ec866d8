package agent

import (
	"context"
	"net/http"
	"testing"
	"time"

	"medid-server-go/internal/domain/analysis"
	"medid-server-go/internal/domain/recovery"
	"medid-server-go/internal/domain/synthesis"
	"medid-server-go/internal/domain/vision"
	"medid-server-go/internal/platform/errors"
)

type fakeAnalyzer struct {
	got  analysis.Request
	body *synthesis.SuccessBody
	err  error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, req analysis.Request) (*synthesis.SuccessBody, error) {
	f.got = req
	return f.body, f.err
}

type fakeDrugs struct{ got string }

func (f *fakeDrugs) ToolBody(_ context.Context, name string) map[string]any {
	f.got = name
	return map[string]any{"brand_name": name}
}

type fakePlans struct {
	got   *int
	tasks any
	err   error
}

func (f *fakePlans) Plan(_ context.Context, day *int) (any, error) {
	f.got = day
	return f.tasks, f.err
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(a Analyzer, d DrugTool, p PlanSource) *Handler {
	return NewHandler(Options{Analyzer: a, Drugs: d, Recovery: p, Now: func() time.Time { return fixedNow }})
}

func TestHandleAnalysis(t *testing.T) {
	a := &fakeAnalyzer{body: &synthesis.SuccessBody{Success: true, MedicationName: "Advil", RequestID: "r1"}}
	h := newTestHandler(a, nil, nil)

	resp, err := h.Handle(context.Background(), []byte(`{"parameters":[{"name":"image_data","value":"AAA"},{"name":"confidence_check","value":"true"}]}`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if a.got.ImageData != "AAA" || a.got.Source != "agent" || !a.got.ConfidenceCheck {
		t.Fatalf("analyzer got %+v", a.got)
	}
	if a.got.Prompt == "" {
		t.Fatalf("prompt did not default to the configured prompt")
	}
	r := resp.Response
	if r.ActionGroup != "image_analysis_tool" || r.APIPath != PathAnalyze || r.HTTPMethod != "POST" || r.HTTPStatusCode != http.StatusOK {
		t.Fatalf("unexpected envelope %+v", r)
	}
	var body synthesis.SuccessBody
	if err := resp.DecodeBody(&body); err != nil || body.MedicationName != "Advil" {
		t.Fatalf("body = %+v, err %v", body, err)
	}
}

func TestHandleAnalysisErrors(t *testing.T) {
	missing := errors.New(errors.KindValidation, "analysis.normalize", analysis.MissingImageMessage).WithCode("no_image_data")
	h := newTestHandler(&fakeAnalyzer{err: missing}, nil, nil)
	resp, err := h.Handle(context.Background(), []byte(`{}`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if resp.Response.HTTPStatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Response.HTTPStatusCode)
	}
	var typed synthesis.ErrorBody
	if err := resp.DecodeBody(&typed); err != nil {
		t.Fatalf("DecodeBody() error = %v", err)
	}
	if typed.ErrorType != synthesis.ErrorValidation || typed.Error != analysis.MissingImageMessage {
		t.Fatalf("unexpected body %+v", typed)
	}

	timeout := errors.New(errors.KindTimeout, "analysis.vision", "vision timed out").WithCode(vision.CodeTimeout)
	h = newTestHandler(&fakeAnalyzer{err: timeout}, nil, nil)
	resp, err = h.Handle(context.Background(), []byte(`{"image_data":"AAA"}`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	var classified map[string]any
	if err := resp.DecodeBody(&classified); err != nil {
		t.Fatalf("DecodeBody() error = %v", err)
	}
	if classified["error_code"] != vision.CodeTimeout || classified["retry_possible"] != true || classified["success"] != false {
		t.Fatalf("unexpected body %v", classified)
	}
	if resp.Response.HTTPStatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Response.HTTPStatusCode)
	}
}

func TestHandleDrugInfo(t *testing.T) {
	d := &fakeDrugs{}
	h := newTestHandler(nil, d, nil)

	resp, err := h.Handle(context.Background(), []byte(`{"apiPath":"/drug-info","parameters":[{"name":"drug_name","value":"Advil"}]}`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if d.got != "Advil" {
		t.Fatalf("drug tool got %q", d.got)
	}
	if resp.Response.ActionGroup != "drug_info_tool" || resp.Response.APIPath != PathDrugInfo {
		t.Fatalf("unexpected envelope %+v", resp.Response)
	}

	resp, err = h.Handle(context.Background(), []byte(`{"apiPath":"/drug-info"}`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	var body map[string]string
	if err := resp.DecodeBody(&body); err != nil || body["error"] != MissingDrugNameMessage {
		t.Fatalf("body = %v, err %v", body, err)
	}
}

func TestHandleRecoveryPlan(t *testing.T) {
	event := []byte(`{"apiPath":"/recovery-plan","input":{"RequestBody":{"content":{"application/json":{"properties":[{"name":"day","value":"2"}]}}}}}`)

	tests := []struct {
		name       string
		plans      *fakePlans
		wantStatus int
		wantBody   string
	}{
		{"plan", &fakePlans{tasks: []any{"ice", "rest"}}, http.StatusOK, `{"plan":["ice","rest"]}`},
		{
			"missing bucket",
			&fakePlans{err: errors.New(errors.KindConfig, "recovery.plan", recovery.MissingBucketMessage).WithCode(recovery.CodeMissingBucket)},
			http.StatusInternalServerError,
			`"` + recovery.MissingBucketMessage + `"`,
		},
		{
			"fetch error",
			&fakePlans{err: errors.New(errors.KindStorage, "recovery.load", "An error occurred: boom").WithCode(recovery.CodeFetchFailed)},
			http.StatusOK,
			`{"response":"An error occurred: boom"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := newTestHandler(nil, nil, tt.plans).Handle(context.Background(), event)
			if err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if tt.plans.got == nil || *tt.plans.got != 2 {
				t.Fatalf("plan source got day %v", tt.plans.got)
			}
			if resp.Response.HTTPStatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.Response.HTTPStatusCode, tt.wantStatus)
			}
			if got := resp.Response.ResponseBody["application/json"].Body; got != tt.wantBody {
				t.Fatalf("body = %s, want %s", got, tt.wantBody)
			}
			if resp.Response.ActionGroup != "recovery_plan_tool" {
				t.Fatalf("actionGroup = %q", resp.Response.ActionGroup)
			}
		})
	}
}

func TestHandleRecoveryWithoutDay(t *testing.T) {
	plans := &fakePlans{err: errors.New(errors.KindValidation, "recovery.plan", recovery.MissingDayMessage).WithCode(recovery.CodeMissingDay)}
	resp, err := newTestHandler(nil, nil, plans).Handle(context.Background(), []byte(`{"apiPath":"/recovery-plan"}`))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if plans.got != nil {
		t.Fatalf("day = %v, want nil", *plans.got)
	}
	var body map[string]string
	if err := resp.DecodeBody(&body); err != nil || body["response"] != recovery.MissingDayMessage {
		t.Fatalf("body = %v, err %v", body, err)
	}
}
