package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/orbitlabs/provision/internal/model"
	"github.com/orbitlabs/provision/internal/notify"
)

// Notifier delivers progress reports to the workflow service.
type Notifier interface {
	NotifyStep(ctx context.Context, n notify.StepNotification) error
	NotifyCompletion(ctx context.Context, r notify.CompletionReport) error
}

// Reporter turns completed stages into workflow notifications. It owns the
// request's step counter: the counter is incremented by exactly 1 immediately
// before each report, so step orders across a run are strictly increasing
// with no gaps. Standalone runs (no process ID) never report and never touch
// the counter.
type Reporter struct {
	req      *model.Request
	notifier Notifier
	now      func() time.Time
}

// NewReporter creates a Reporter for one in-flight request.
func NewReporter(req *model.Request, notifier Notifier) *Reporter {
	return &Reporter{req: req, notifier: notifier, now: time.Now}
}

// Report sends a single stage progress report. Delivery failure is fatal to
// the run; the remote workflow depends on these reports to track state.
func (r *Reporter) Report(ctx context.Context, step, message string) error {
	if !r.req.InWorkflow() {
		return nil
	}
	r.req.StepOrder++
	n := notify.StepNotification{
		ID:        uuid.NewString(),
		ProcessID: r.req.ProcessID,
		Step:      step,
		StepOrder: r.req.StepOrder,
		Message:   message,
		Timestamp: r.now().UTC(),
	}
	if err := r.notifier.NotifyStep(ctx, n); err != nil {
		return fmt.Errorf("report step %s: %w", step, err)
	}
	return nil
}

// Complete sends the entire accumulated request state as the completion
// report, with the final incremented step order.
func (r *Reporter) Complete(ctx context.Context) error {
	if !r.req.InWorkflow() {
		return nil
	}
	r.req.StepOrder++
	report := notify.CompletionReport{
		Status:    "completed",
		Process:   r.req,
		Timestamp: r.now().UTC(),
	}
	if err := r.notifier.NotifyCompletion(ctx, report); err != nil {
		return fmt.Errorf("report completion: %w", err)
	}
	return nil
}
