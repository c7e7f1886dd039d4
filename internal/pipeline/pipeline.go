// Package pipeline sequences one annotation run over a single C source
// file: scan, locate, describe every located function through the
// annotation service, splice the descriptions back in as comment
// blocks, and account for every function in a run report. Per-function
// failures never abort the run; the output is always the most complete
// annotated file the service allowed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"cdoc/internal/annotate"
	"cdoc/internal/locator"
	"cdoc/internal/rewrite"
	"cdoc/internal/scanner"
	"cdoc/internal/source"
)

// Stage names one phase of a run. A run moves through the stages in
// order; StageFailed is terminal and reached only on fatal errors, not
// on per-function failures.
type Stage int

const (
	StageIdle Stage = iota
	StageScanning
	StageLocating
	StageAnnotating
	StageRewriting
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageScanning:
		return "scanning"
	case StageLocating:
		return "locating"
	case StageAnnotating:
		return "annotating"
	case StageRewriting:
		return "rewriting"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status classifies the fate of one located function.
type Status int

const (
	// StatusAnnotated means a comment block was spliced in above the
	// function.
	StatusAnnotated Status = iota
	// StatusSkipped means the function was never sent: its body ran past
	// end of file, it was over the size cap, or the run was cancelled
	// first.
	StatusSkipped
	// StatusFailed means the service was asked and could not deliver.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusAnnotated:
		return "annotated"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SpanOutcome is the per-function line of the run summary. Reason is
// empty for annotated functions; Elapsed covers service time only.
type SpanOutcome struct {
	Offset  int
	Line    int
	Name    string
	Status  Status
	Reason  string
	Elapsed time.Duration
}

// Options tune one run.
type Options struct {
	// Pool bounds concurrency, rate and quota pauses for the service
	// calls.
	Pool annotate.PoolOptions
	// MaxFuncBytes skips functions whose text is larger, keeping
	// oversized bodies out of the prompt. Zero disables the cap.
	MaxFuncBytes int
	// CommentWidth is the wrap column for inserted comment text. Zero
	// means rewrite.DefaultWidth.
	CommentWidth int
}

// Result is everything one completed run produced. Output holds the
// rewritten text; when nothing was inserted it is the input text
// verbatim.
type Result struct {
	Output   string
	Spans    []locator.FunctionSpan
	Outcomes []SpanOutcome
	Report   *Report
}

// Annotated counts the functions that received a comment.
func (r *Result) Annotated() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == StatusAnnotated {
			n++
		}
	}
	return n
}

// Omissions counts the functions that did not.
func (r *Result) Omissions() int {
	return len(r.Outcomes) - r.Annotated()
}

// Complete reports whether every located function was annotated.
func (r *Result) Complete() bool { return r.Omissions() == 0 }

// Runner drives one buffer through the full annotation sequence.
type Runner struct {
	describer annotate.Describer
	opts      Options
	stage     Stage
}

func NewRunner(d annotate.Describer, opts Options) *Runner {
	return &Runner{describer: d, opts: opts}
}

// Stage returns the phase the last Run call reached.
func (r *Runner) Stage() Stage { return r.stage }

// Run annotates buf and returns the rewritten text with one outcome per
// located function. Per-function failures are folded into the outcomes;
// the returned error is reserved for fatal conditions, a rewriter
// invariant violation or a service that answered nothing at all.
func (r *Runner) Run(ctx context.Context, buf *source.Buffer) (*Result, error) {
	report := NewReport(buf.Path())

	r.stage = StageScanning
	h := report.BeginStage("scan")
	regions := scanner.Regions(buf.Text())
	report.EndStage(h, "ok", map[string]float64{
		"bytes":   float64(buf.Len()),
		"regions": float64(len(regions)),
	}, nil, nil)

	r.stage = StageLocating
	loc := r.locateStage(buf, report)

	r.stage = StageAnnotating
	outcomes, descs, err := r.annotateStage(ctx, buf, loc.Spans, report)
	if err != nil {
		r.stage = StageFailed
		return nil, err
	}

	r.stage = StageRewriting
	output, err := r.rewriteStage(buf, loc.Spans, descs, report)
	if err != nil {
		r.stage = StageFailed
		return nil, err
	}

	for _, sk := range loc.Skipped {
		line, _ := buf.Position(sk.Offset)
		outcomes = append(outcomes, SpanOutcome{
			Offset: sk.Offset,
			Line:   line,
			Status: StatusSkipped,
			Reason: sk.Reason,
		})
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Offset < outcomes[j].Offset })
	for _, o := range outcomes {
		report.AddFunction(FunctionMetric{
			Name:       o.Name,
			Line:       o.Line,
			Offset:     o.Offset,
			Status:     o.Status.String(),
			Reason:     o.Reason,
			DurationMS: o.Elapsed.Milliseconds(),
		})
	}

	r.stage = StageDone
	res := &Result{Output: output, Spans: loc.Spans, Outcomes: outcomes, Report: report}
	fmt.Printf("✅ Annotated %d/%d functions in %s.\n", res.Annotated(), len(res.Outcomes), buf.Path())
	return res, nil
}

func (r *Runner) locateStage(buf *source.Buffer, report *Report) locator.Result {
	h := report.BeginStage("locate")
	loc := locator.Locate(buf)
	report.EndStage(h, "ok", map[string]float64{
		"functions":    float64(len(loc.Spans)),
		"unterminated": float64(len(loc.Skipped)),
	}, nil, nil)

	fmt.Printf("🔍 Located %d function definitions in %s.\n", len(loc.Spans), buf.Path())
	for _, sk := range loc.Skipped {
		line, _ := buf.Position(sk.Offset)
		log.Printf("⚠️ Skipping candidate at line %d: %s", line, sk.Reason)
		report.AddSignal("unterminated-function", "locate", "warning", sk.Reason, float64(line))
	}
	return loc
}

// annotateStage sends every located function through the describer pool
// and records one outcome per span. descs is index aligned with spans;
// an empty entry means no comment for that function.
func (r *Runner) annotateStage(ctx context.Context, buf *source.Buffer, spans []locator.FunctionSpan, report *Report) ([]SpanOutcome, []string, error) {
	h := report.BeginStage("annotate")
	outcomes := make([]SpanOutcome, len(spans))
	descs := make([]string, len(spans))

	var taskSpan []int
	var tasks []string
	for i, sp := range spans {
		line, _ := buf.Position(sp.SignatureStart)
		outcomes[i] = SpanOutcome{
			Offset: sp.SignatureStart,
			Line:   line,
			Name:   locator.FuncName(buf.Text(), sp),
		}
		text := sp.Text(buf)
		if r.opts.MaxFuncBytes > 0 && len(text) > r.opts.MaxFuncBytes {
			outcomes[i].Status = StatusSkipped
			outcomes[i].Reason = fmt.Sprintf("%d bytes is over the %d byte cap", len(text), r.opts.MaxFuncBytes)
			report.AddSignal("size-cap", "annotate", "info", outcomes[i].Reason, float64(outcomes[i].Line))
			continue
		}
		taskSpan = append(taskSpan, i)
		tasks = append(tasks, text)
	}

	counters := map[string]float64{"sent": float64(len(tasks))}
	unreachable := 0
	if len(tasks) > 0 {
		fmt.Printf("✍️  Describing %d functions via %s...\n", len(tasks), r.describer.Name())
		pool := annotate.NewPool(r.describer, r.opts.Pool)
		for _, out := range pool.Run(ctx, tasks) {
			i := taskSpan[out.Index]
			outcomes[i].Elapsed = out.Elapsed
			switch {
			case out.Err == nil:
				outcomes[i].Status = StatusAnnotated
				descs[i] = out.Text
			case cancelled(out.Err):
				outcomes[i].Status = StatusSkipped
				outcomes[i].Reason = "run cancelled before the service answered"
			default:
				outcomes[i].Status = StatusFailed
				outcomes[i].Reason = out.Err.Error()
				if k, ok := annotate.Kind(out.Err); ok && (k == annotate.FailUnavailable || k == annotate.FailTimeout) {
					unreachable++
				}
				log.Printf("⚠️ Function %s (line %d): %v", nameOrOffset(outcomes[i]), outcomes[i].Line, out.Err)
				report.AddSignal("describe-failed", "annotate", "warning", outcomes[i].Reason, float64(outcomes[i].Line))
			}
		}
	}

	annotated, skipped, failed := tally(outcomes)
	counters["annotated"] = float64(annotated)
	counters["skipped"] = float64(skipped)
	counters["failed"] = float64(failed)

	// A service that answered nothing at all is a fatal condition, not a
	// per-function one. Quota and malformed answers prove the service is
	// up, so they stay fail-open.
	if len(tasks) > 0 && unreachable == len(tasks) {
		err := fmt.Errorf("service unreachable: none of %d requests got an answer", len(tasks))
		report.EndStage(h, "error", counters, nil, err)
		return nil, nil, err
	}
	status := "ok"
	if failed > 0 {
		status = "partial"
	}
	report.EndStage(h, status, counters, nil, nil)
	return outcomes, descs, nil
}

func (r *Runner) rewriteStage(buf *source.Buffer, spans []locator.FunctionSpan, descs []string, report *Report) (string, error) {
	h := report.BeginStage("rewrite")
	var ins []rewrite.Insertion
	for i, desc := range descs {
		if desc == "" {
			continue
		}
		ins = append(ins, rewrite.ForSpan(buf, spans[i], desc, r.opts.CommentWidth))
	}
	output, err := rewrite.Apply(buf.Text(), ins)
	if err != nil {
		err = fmt.Errorf("failed to splice comment blocks: %w", err)
		report.EndStage(h, "error", nil, nil, err)
		return "", err
	}
	report.EndStage(h, "ok", map[string]float64{
		"insertions":   float64(len(ins)),
		"output_bytes": float64(len(output)),
	}, nil, nil)
	return output, nil
}

func tally(outcomes []SpanOutcome) (annotated, skipped, failed int) {
	for _, o := range outcomes {
		switch o.Status {
		case StatusAnnotated:
			annotated++
		case StatusSkipped:
			skipped++
		case StatusFailed:
			failed++
		}
	}
	return
}

func nameOrOffset(o SpanOutcome) string {
	if o.Name != "" {
		return o.Name
	}
	return fmt.Sprintf("at offset %d", o.Offset)
}

// cancelled tells a bare context error apart from a classified service
// failure, which may wrap one.
func cancelled(err error) bool {
	if _, ok := annotate.Kind(err); ok {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
