package druginfo

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"medid-server-go/internal/domain/druginfo/cache"
	"medid-server-go/internal/domain/druginfo/model"
	"medid-server-go/internal/platform/errors"
)

func TestClientFetch(t *testing.T) {
	var gotSearch, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drug/label.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotSearch = r.URL.Query().Get("search")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results":[{"openfda":{"brand_name":["Advil"],"generic_name":["IBUPROFEN"]},"purpose":["Pain reliever"],"warnings":["Allergy alert"]}]}`)
	}))
	defer srv.Close()

	label, err := NewClient(srv.URL, time.Second, nil).Fetch(context.Background(), "Advil")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := model.Label{
		BrandName:           "Advil",
		GenericName:         "IBUPROFEN",
		Purpose:             "Pain reliever",
		Warnings:            "Allergy alert",
		IndicationsAndUsage: "Not available.",
	}
	if label != want {
		t.Fatalf("label = %+v, want %+v", label, want)
	}
	if gotSearch != `(openfda.brand_name:"Advil" OR openfda.generic_name:"Advil")` || gotLimit != "1" {
		t.Fatalf("query search=%q limit=%q", gotSearch, gotLimit)
	}
}

func TestClientFetchDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results":[{}]}`)
	}))
	defer srv.Close()

	label, err := NewClient(srv.URL, time.Second, nil).Fetch(context.Background(), "thing")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if label.BrandName != "N/A" || label.GenericName != "N/A" || label.Purpose != "Not available." {
		t.Fatalf("defaults not applied: %+v", label)
	}
}

func TestClientFetchErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"no match 404", http.StatusNotFound, `{"error":{"code":"NOT_FOUND"}}`, CodeNotFound},
		{"empty results", http.StatusOK, `{"results":[]}`, CodeNotFound},
		{"server error", http.StatusInternalServerError, `oops`, CodeAPIError},
		{"rate limited", http.StatusTooManyRequests, `{}`, CodeRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second, nil).Fetch(context.Background(), "Advil")
			if got := errors.CodeOf(err); got != tt.wantCode {
				t.Fatalf("code = %q, want %q (err %v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestClientFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 20*time.Millisecond, nil).Fetch(context.Background(), "Advil")
	if errors.CodeOf(err) != CodeTimeout || !errors.IsKind(err, errors.KindTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

type countingFetcher struct {
	calls   atomic.Int32
	label   model.Label
	err     error
	release chan struct{}
}

func (f *countingFetcher) Fetch(_ context.Context, _ string) (model.Label, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	return f.label, f.err
}

func TestServiceLookupCaches(t *testing.T) {
	ctx := context.Background()
	f := &countingFetcher{label: model.Label{BrandName: "Advil"}}
	c := cache.NewMemory(cache.Config{TTL: time.Minute})
	svc := NewService(f, c, nil)
	defer svc.Close(ctx)

	for _, name := range []string{"Advil", " advil ", "ADVIL"} {
		label, err := svc.Lookup(ctx, name)
		if err != nil {
			t.Fatalf("Lookup(%q) error = %v", name, err)
		}
		if label.BrandName != "Advil" {
			t.Fatalf("unexpected label %+v", label)
		}
	}
	if n := f.calls.Load(); n != 1 {
		t.Fatalf("fetcher called %d times, want 1", n)
	}
}

func TestServiceLookupCollapsesConcurrentCalls(t *testing.T) {
	f := &countingFetcher{label: model.Label{BrandName: "Tylenol"}, release: make(chan struct{})}
	svc := NewService(f, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Lookup(context.Background(), "Tylenol"); err != nil {
				t.Errorf("Lookup error: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	if n := f.calls.Load(); n != 1 {
		t.Fatalf("fetcher called %d times, want 1", n)
	}
}

type blockingFetcher struct {
	calls   atomic.Int32
	release chan struct{}
}

func (f *blockingFetcher) Fetch(ctx context.Context, name string) (model.Label, error) {
	f.calls.Add(1)
	select {
	case <-f.release:
		return model.Label{BrandName: name}, nil
	case <-ctx.Done():
		return model.Label{}, ctx.Err()
	}
}

func TestServiceLookupSurvivesOtherCallerCancel(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{})}
	svc := NewService(f, nil, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.Lookup(ctxA, "Advil")
		errA <- err
	}()
	for f.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	type result struct {
		label model.Label
		err   error
	}
	resB := make(chan result, 1)
	go func() {
		label, err := svc.Lookup(context.Background(), "Advil")
		resB <- result{label, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		if err == nil {
			t.Fatalf("cancelled caller got no error")
		}
	case <-time.After(time.Second):
		t.Fatalf("cancelled caller did not return")
	}

	close(f.release)
	select {
	case got := <-resB:
		if got.err != nil {
			t.Fatalf("waiting caller error = %v", got.err)
		}
		if got.label.BrandName != "Advil" {
			t.Fatalf("unexpected label %+v", got.label)
		}
	case <-time.After(time.Second):
		t.Fatalf("waiting caller did not return")
	}
	if n := f.calls.Load(); n != 1 {
		t.Fatalf("fetcher called %d times, want 1", n)
	}
}

func TestServiceValidation(t *testing.T) {
	svc := NewService(&countingFetcher{}, nil, nil)
	for _, name := range []string{"", "  ", "a"} {
		_, err := svc.Lookup(context.Background(), name)
		if !errors.IsKind(err, errors.KindValidation) {
			t.Fatalf("Lookup(%q) error = %v, want validation error", name, err)
		}
	}
}

func TestServiceDescribeAndToolBody(t *testing.T) {
	ctx := context.Background()

	ok := NewService(&countingFetcher{label: model.Label{BrandName: "Advil", GenericName: "IBUPROFEN", Purpose: "p", Warnings: "w"}}, nil, nil)
	if out := ok.Describe(ctx, "Advil"); !out.Success || out.DrugInfo.BrandName != "Advil" {
		t.Fatalf("Describe() = %+v", out)
	}
	body := ok.ToolBody(ctx, "Advil")
	if body["brand_name"] != "Advil" || body["warnings"] != "w" || len(body) != 4 {
		t.Fatalf("ToolBody() = %v", body)
	}

	missing := NewService(&countingFetcher{err: notFound("Zzz")}, nil, nil)
	out := missing.Describe(ctx, "Zzz")
	if out.Success || out.Suggestion != "Try using the generic name or check the spelling" {
		t.Fatalf("Describe() not-found = %+v", out)
	}
	if body := missing.ToolBody(ctx, "Zzz"); body["error"] != "No information found for 'Zzz'." {
		t.Fatalf("ToolBody() not-found = %v", body)
	}

	broken := NewService(&countingFetcher{err: stderrors.New("boom")}, nil, nil)
	if body := broken.ToolBody(ctx, "Advil"); body["error"] != "An unexpected error occurred: Drug information lookup failed" {
		t.Fatalf("ToolBody() failure = %v", body)
	}
}

func TestHint(t *testing.T) {
	api := errors.New(errors.KindDrugInfo, "op", "API request failed with status code 500").WithCode(CodeAPIError)
	if h := Hint(api, "Advil"); h.Error != "Drug information service temporarily unavailable" || h.Suggestion != "Please try again in a few moments" {
		t.Fatalf("Hint(api) = %+v", h)
	}
	other := stderrors.New("weird")
	if h := Hint(other, "Advil"); h.Error != "weird" || h.UserMessage != "There was an issue retrieving drug information: weird" {
		t.Fatalf("Hint(other) = %+v", h)
	}
}

func TestClassify(t *testing.T) {
	tests := map[string]string{
		"label not found":            CodeNotFound,
		"status 404":                 CodeNotFound,
		"i/o timeout":                CodeTimeout,
		"connection refused":         CodeNetwork,
		"authorization header wrong": CodeAuth,
		"something else":             CodeAPIError,
	}
	for msg, want := range tests {
		if got := errors.CodeOf(Classify(stderrors.New(msg))); got != want {
			t.Errorf("Classify(%q) code = %q, want %q", msg, got, want)
		}
	}
}
