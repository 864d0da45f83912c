package provision

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitlabs/provision/internal/model"
	"github.com/orbitlabs/provision/internal/notify"
)

type fakeNotifier struct {
	steps         []notify.StepNotification
	completions   []notify.CompletionReport
	stepErr       error
	completionErr error
}

func (f *fakeNotifier) NotifyStep(_ context.Context, n notify.StepNotification) error {
	if f.stepErr != nil {
		return f.stepErr
	}
	f.steps = append(f.steps, n)
	return nil
}

func (f *fakeNotifier) NotifyCompletion(_ context.Context, r notify.CompletionReport) error {
	if f.completionErr != nil {
		return f.completionErr
	}
	f.completions = append(f.completions, r)
	return nil
}

// ---------- Report ----------

func TestReporter_StandaloneIsNoop(t *testing.T) {
	req := &model.Request{ProcessType: model.ProcessCreateAgent}
	notifier := &fakeNotifier{}
	r := NewReporter(req, notifier)

	require.NoError(t, r.Report(context.Background(), StageSchema, "schema configured"))
	require.NoError(t, r.Complete(context.Background()))

	assert.Empty(t, notifier.steps)
	assert.Empty(t, notifier.completions)
	assert.Equal(t, 0, req.StepOrder)
}

func TestReporter_StepOrdersAreStrictlyIncreasing(t *testing.T) {
	req := &model.Request{ProcessID: "p1"}
	notifier := &fakeNotifier{}
	r := NewReporter(req, notifier)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	require.NoError(t, r.Report(context.Background(), StageDeploy, "infrastructure deployed"))
	require.NoError(t, r.Report(context.Background(), StageSchema, "schema configured"))

	require.Len(t, notifier.steps, 2)
	first, second := notifier.steps[0], notifier.steps[1]
	assert.Equal(t, 1, first.StepOrder)
	assert.Equal(t, 2, second.StepOrder)
	assert.Equal(t, "p1", first.ProcessID)
	assert.Equal(t, StageDeploy, first.Step)
	assert.Equal(t, "infrastructure deployed", first.Message)
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, now, first.Timestamp)
	assert.Equal(t, 2, req.StepOrder)
}

func TestReporter_DeliveryFailureIsFatal(t *testing.T) {
	req := &model.Request{ProcessID: "p1"}
	notifier := &fakeNotifier{stepErr: fmt.Errorf("connection refused")}
	r := NewReporter(req, notifier)

	err := r.Report(context.Background(), StageDeploy, "infrastructure deployed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	// The counter is incremented before the send is attempted.
	assert.Equal(t, 1, req.StepOrder)
}

// ---------- Complete ----------

func TestReporter_CompleteSendsFullRequestState(t *testing.T) {
	req := &model.Request{
		ProcessID: "p1",
		StepOrder: 3,
		Agent:     model.AgentDescriptor{Name: "sales-agent", Description: "answers sales questions"},
	}
	notifier := &fakeNotifier{}
	r := NewReporter(req, notifier)

	require.NoError(t, r.Complete(context.Background()))

	require.Len(t, notifier.completions, 1)
	report := notifier.completions[0]
	assert.Equal(t, "completed", report.Status)
	assert.Same(t, req, report.Process)
	assert.Equal(t, 4, req.StepOrder)
}

func TestReporter_CompleteFailurePropagates(t *testing.T) {
	req := &model.Request{ProcessID: "p1"}
	notifier := &fakeNotifier{completionErr: fmt.Errorf("status 502: bad gateway")}
	r := NewReporter(req, notifier)

	err := r.Complete(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
