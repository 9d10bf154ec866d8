package observability

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Stage is one timed step of a request.
type Stage struct {
	Name     string         `json:"stage_name"`
	Start    time.Time      `json:"start_time"`
	End      time.Time      `json:"end_time"`
	Success  bool           `json:"success"`
	Error    string         `json:"error_message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	monitor *Monitor
}

// Duration is zero until the stage finishes.
func (s *Stage) Duration() time.Duration {
	if s.End.IsZero() {
		return 0
	}
	return s.End.Sub(s.Start)
}

// Finish closes the stage. A nil err marks it successful.
func (s *Stage) Finish(err error) {
	if s == nil || !s.End.IsZero() {
		return
	}
	s.monitor.finish(s, err)
}

// Monitor tracks the stages and metrics of a single request. Metrics also
// flow into the registry it was created with.
type Monitor struct {
	mu        sync.Mutex
	requestID string
	start     time.Time
	stages    []*Stage
	metrics   map[string]float64
	registry  *Registry
	logger    *slog.Logger
}

// NewMonitor starts a monitor for requestID. A nil registry uses Default().
func NewMonitor(requestID string, registry *Registry, logger *slog.Logger) *Monitor {
	if registry == nil {
		registry = Default()
	}
	return &Monitor{
		requestID: requestID,
		start:     time.Now(),
		metrics:   make(map[string]float64),
		registry:  registry,
		logger:    logger,
	}
}

func (m *Monitor) RequestID() string { return m.requestID }

// StartStage opens a named stage.
func (m *Monitor) StartStage(name string) *Stage {
	stage := &Stage{Name: name, Start: time.Now(), Metadata: map[string]any{}, monitor: m}
	m.mu.Lock()
	m.stages = append(m.stages, stage)
	m.mu.Unlock()
	if m.logger != nil {
		m.logger.LogAttrs(context.Background(), slog.LevelDebug, "[ANALYSIS] stage started",
			slog.String("stage", name), slog.String("request_id", m.requestID))
	}
	return stage
}

func (m *Monitor) finish(s *Stage, err error) {
	m.mu.Lock()
	s.End = time.Now()
	s.Success = err == nil
	if err != nil {
		s.Error = err.Error()
	}
	m.mu.Unlock()

	m.registry.Timer("stage_duration", map[string]string{
		"stage":   s.Name,
		"success": strconv.FormatBool(s.Success),
	}).Observe(s.Duration())

	if m.logger == nil {
		return
	}
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("stage", s.Name),
		slog.String("request_id", m.requestID),
		slog.Duration("duration", s.Duration()),
		slog.Bool("success", s.Success),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", s.Error))
	}
	m.logger.LogAttrs(context.Background(), level, "[ANALYSIS] stage finished", attrs...)
}

// Counter increments a registry counter and the per-request tally.
func (m *Monitor) Counter(name string, labels map[string]string) {
	m.registry.Counter(name, labels).Inc()
	m.mu.Lock()
	m.metrics[metricKey(name, labels)]++
	m.mu.Unlock()
}

// Gauge records a value for this request.
func (m *Monitor) Gauge(name string, value float64) {
	m.registry.Gauge(name, nil).Set(value)
	m.mu.Lock()
	m.metrics[name] = value
	m.mu.Unlock()
}

// Timer records a duration for this request.
func (m *Monitor) Timer(name string, d time.Duration, labels map[string]string) {
	m.registry.Timer(name, labels).Observe(d)
	m.mu.Lock()
	m.metrics[metricKey(name, labels)] = d.Seconds()
	m.mu.Unlock()
}

// Metric returns the per-request value recorded under key.
func (m *Monitor) Metric(key string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.metrics[key]
	return v, ok
}

// Elapsed is the time since the monitor was created.
func (m *Monitor) Elapsed() time.Duration {
	return time.Since(m.start)
}

// Summary describes finished and pending stages.
type Summary struct {
	TotalStages      int           `json:"total_stages"`
	SuccessfulStages int           `json:"successful_stages"`
	FailedStages     int           `json:"failed_stages"`
	TotalTime        time.Duration `json:"total_processing_time"`
	Stages           []Stage       `json:"stages"`
}

func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := Summary{TotalStages: len(m.stages), TotalTime: time.Since(m.start)}
	for _, s := range m.stages {
		if s.Success {
			sum.SuccessfulStages++
		} else {
			sum.FailedStages++
		}
		cp := *s
		cp.monitor = nil
		sum.Stages = append(sum.Stages, cp)
	}
	return sum
}

// LogSummary writes the final request line.
func (m *Monitor) LogSummary() {
	if m.logger == nil {
		return
	}
	sum := m.Summary()
	rate := float64(sum.SuccessfulStages) / float64(max(sum.TotalStages, 1)) * 100
	level := slog.LevelInfo
	if sum.FailedStages > 0 {
		level = slog.LevelWarn
	}
	m.logger.LogAttrs(context.Background(), level, "[ANALYSIS] processing completed",
		slog.String("request_id", m.requestID),
		slog.Duration("total_time", sum.TotalTime),
		slog.Float64("success_rate", rate),
		slog.Int("stages", sum.TotalStages),
	)
}
