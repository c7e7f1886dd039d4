package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ReportSignal flags something a reader of the run report should look
// at: an unterminated function, a size-capped body, a failed request.
type ReportSignal struct {
	Code     string  `json:"code"`
	Stage    string  `json:"stage"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Value    float64 `json:"value,omitempty"`
}

// StageMetric times one pipeline stage.
type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Notes      []string           `json:"notes,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// FunctionMetric records what happened to one located function.
type FunctionMetric struct {
	Name       string `json:"name,omitempty"`
	Line       int    `json:"line"`
	Offset     int    `json:"offset"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// ReportSummary rolls one run up into a few numbers.
type ReportSummary struct {
	StageCount        int            `json:"stage_count"`
	FunctionCount     int            `json:"function_count"`
	Annotated         int            `json:"annotated"`
	Skipped           int            `json:"skipped"`
	Failed            int            `json:"failed"`
	SignalsBySeverity map[string]int `json:"signals_by_severity"`
}

// Report is the machine-readable account of one annotation run, so
// omissions can be audited without re-running the pipeline.
type Report struct {
	Version     string           `json:"version"`
	Input       string           `json:"input"`
	GeneratedAt string           `json:"generated_at"`
	Stages      []StageMetric    `json:"stages"`
	Functions   []FunctionMetric `json:"functions,omitempty"`
	Signals     []ReportSignal   `json:"signals,omitempty"`
	Summary     ReportSummary    `json:"summary"`
}

type StageHandle struct {
	name    string
	started time.Time
}

func NewReport(input string) *Report {
	return &Report{
		Version:     "v1",
		Input:       input,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Stages:      []StageMetric{},
		Functions:   []FunctionMetric{},
		Signals:     []ReportSignal{},
	}
}

func (r *Report) BeginStage(name string) StageHandle {
	return StageHandle{name: strings.TrimSpace(name), started: time.Now().UTC()}
}

func (r *Report) EndStage(h StageHandle, status string, counters map[string]float64, notes []string, err error) {
	if r == nil || strings.TrimSpace(h.name) == "" {
		return
	}
	if strings.TrimSpace(status) == "" {
		status = "ok"
	}
	finished := time.Now().UTC()
	m := StageMetric{
		Name:       h.name,
		Status:     status,
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: finished.Sub(h.started).Milliseconds(),
		Counters:   cleanCounters(counters),
		Notes:      cleanNotes(notes),
	}
	if err != nil {
		m.Error = err.Error()
		if status == "ok" {
			m.Status = "error"
		}
	}
	r.Stages = append(r.Stages, m)
}

func (r *Report) AddSignal(code, stage, severity, message string, value float64) {
	if r == nil {
		return
	}
	s := ReportSignal{
		Code:     strings.TrimSpace(code),
		Stage:    strings.TrimSpace(stage),
		Severity: strings.ToLower(strings.TrimSpace(severity)),
		Message:  strings.TrimSpace(message),
		Value:    value,
	}
	if s.Code == "" || s.Stage == "" || s.Severity == "" || s.Message == "" {
		return
	}
	r.Signals = append(r.Signals, s)
}

func (r *Report) AddFunction(m FunctionMetric) {
	if r == nil {
		return
	}
	r.Functions = append(r.Functions, m)
}

func (r *Report) Finalize() {
	if r == nil {
		return
	}
	r.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	severityCount := map[string]int{
		"critical": 0,
		"warning":  0,
		"info":     0,
	}
	sort.Slice(r.Signals, func(i, j int) bool {
		pi := signalPriority(r.Signals[i].Severity)
		pj := signalPriority(r.Signals[j].Severity)
		if pi == pj {
			if r.Signals[i].Stage == r.Signals[j].Stage {
				return r.Signals[i].Code < r.Signals[j].Code
			}
			return r.Signals[i].Stage < r.Signals[j].Stage
		}
		return pi > pj
	})
	for _, s := range r.Signals {
		if _, ok := severityCount[s.Severity]; ok {
			severityCount[s.Severity]++
		} else {
			severityCount[s.Severity] = 1
		}
	}

	annotated, skipped, failed := 0, 0, 0
	for _, f := range r.Functions {
		switch f.Status {
		case "annotated":
			annotated++
		case "skipped":
			skipped++
		case "failed":
			failed++
		}
	}

	r.Summary = ReportSummary{
		StageCount:        len(r.Stages),
		FunctionCount:     len(r.Functions),
		Annotated:         annotated,
		Skipped:           skipped,
		Failed:            failed,
		SignalsBySeverity: severityCount,
	}
}

// Save finalizes the report and writes it as indented JSON.
func (r *Report) Save(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

func cleanCounters(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanNotes(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, n := range raw {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func signalPriority(severity string) int {
	switch severity {
	case "critical":
		return 3
	case "warning":
		return 2
	default:
		return 1
	}
}
