package vision

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"medid-server-go/internal/platform/errors"
)

type scriptedProvider struct {
	answers []string
	err     error
	calls   int
	prompts []string
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-model" }

func (p *scriptedProvider) Analyze(_ context.Context, req Request) (*Response, error) {
	p.calls++
	p.prompts = append(p.prompts, req.Prompt)
	if p.err != nil {
		return nil, p.err
	}
	text := p.answers[min(p.calls-1, len(p.answers)-1)]
	return &Response{Text: text, Duration: time.Millisecond}, nil
}

func TestClientIdentify(t *testing.T) {
	p := &scriptedProvider{answers: []string{"Medication name: Advil\nDosage: 200mg\nhigh confidence"}}
	c := NewClient(p, "", nil)

	res, err := c.Identify(context.Background(), Request{ImageBase64: "aGk="})
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if res.Identification.MedicationName != "Advil" || res.Identification.Dosage != "200mg" {
		t.Fatalf("unexpected identification %+v", res.Identification)
	}
	if res.Response.Model != "scripted-model" {
		t.Fatalf("model = %q", res.Response.Model)
	}
	if p.prompts[0] != Prompt(PromptStandard) {
		t.Fatalf("empty prompt did not default to the standard template")
	}
}

func TestClientRejectsEmptyImage(t *testing.T) {
	c := NewClient(&scriptedProvider{}, "custom", nil)
	_, err := c.Analyze(context.Background(), Request{})
	if errors.CodeOf(err) != "no_image_data" {
		t.Fatalf("code = %q, want no_image_data", errors.CodeOf(err))
	}
}

func TestClientClassifiesAndOpensBreaker(t *testing.T) {
	p := &scriptedProvider{err: stderrors.New("connection reset by peer")}
	c := NewClient(p, "custom", nil)

	for i := 0; i < breakerMaxFailures; i++ {
		_, err := c.Analyze(context.Background(), Request{ImageBase64: "aGk="})
		if errors.CodeOf(err) != CodeNetwork {
			t.Fatalf("attempt %d code = %q, want %q", i, errors.CodeOf(err), CodeNetwork)
		}
	}
	_, err := c.Analyze(context.Background(), Request{ImageBase64: "aGk="})
	if errors.CodeOf(err) != CodeUnavailable {
		t.Fatalf("open breaker code = %q, want %q", errors.CodeOf(err), CodeUnavailable)
	}
	if p.calls != breakerMaxFailures {
		t.Fatalf("provider called %d times, want %d", p.calls, breakerMaxFailures)
	}
}

func TestClientConfidenceCheck(t *testing.T) {
	p := &scriptedProvider{answers: []string{
		"This is Advil. low confidence",
		"Medication name: Advil\n90% confident",
	}}
	c := NewClient(p, "", nil)

	res, err := c.IdentifyWithConfidenceCheck(context.Background(), "aGk=", "image/jpeg", 0.8)
	if err != nil {
		t.Fatalf("IdentifyWithConfidenceCheck() error = %v", err)
	}
	if p.calls != 2 {
		t.Fatalf("calls = %d, want 2", p.calls)
	}
	if res.Prompt != PromptConfidenceCheck || res.Identification.Confidence != 0.9 {
		t.Fatalf("kept %s at %v, want confidence_check at 0.9", res.Prompt, res.Identification.Confidence)
	}

	p = &scriptedProvider{answers: []string{"Medication name: Advil\n95% confident"}}
	res, err = NewClient(p, "", nil).IdentifyWithConfidenceCheck(context.Background(), "aGk=", "", 0.8)
	if err != nil || p.calls != 1 || res.Prompt != PromptStandard {
		t.Fatalf("confident first answer should not trigger a second call (calls=%d err=%v)", p.calls, err)
	}
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Unix(0, 0)
	cb := newCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	cb.recordFailure()
	if !cb.allow() {
		t.Fatalf("breaker opened after one failure")
	}
	cb.recordFailure()
	if cb.allow() {
		t.Fatalf("breaker still closed after max failures")
	}

	now = now.Add(2 * time.Minute)
	if !cb.allow() {
		t.Fatalf("breaker did not half-open after retryAfter")
	}
	cb.recordFailure()
	if cb.allow() {
		t.Fatalf("half-open failure did not reopen the breaker")
	}

	now = now.Add(2 * time.Minute)
	cb.allow()
	cb.recordSuccess()
	if !cb.allow() || cb.state != breakerClosed {
		t.Fatalf("success did not close the breaker")
	}
}

func TestCircuitBreakerAdmitsOneTrialCall(t *testing.T) {
	now := time.Unix(0, 0)
	cb := newCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { return now }

	cb.recordFailure()
	now = now.Add(2 * time.Minute)

	admitted := 0
	for i := 0; i < 5; i++ {
		if cb.allow() {
			admitted++
		}
	}
	if admitted != 1 {
		t.Fatalf("half-open breaker admitted %d calls, want 1", admitted)
	}

	cb.recordSuccess()
	if !cb.allow() || !cb.allow() {
		t.Fatalf("closed breaker refused calls")
	}
}
