package procurement_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/procureflow/internal/notify"
	"github.com/odyssey-erp/procureflow/internal/procurement"
	"github.com/odyssey-erp/procureflow/internal/workflow"
)

type failingNotifier struct{ calls atomic.Int32 }

func (f *failingNotifier) Notify(ctx context.Context, userID int64, message string) error {
	f.calls.Add(1)
	return errors.New("notification store unavailable")
}

type failingBroadcaster struct{}

func (failingBroadcaster) Broadcast(ctx context.Context, channel, event string, payload any) error {
	return errors.New("redis down")
}

func TestTransitionCommitsDespiteSideEffectFailures(t *testing.T) {
	notifier := &failingNotifier{}
	dispatcher := notify.NewDispatcher(notify.Config{Notifier: notifier, Broadcaster: failingBroadcaster{}})
	svc, lookup := procurement.NewTestService(dispatcher)
	preparer, reviewer, _ := procurement.FixtureParties()
	ctx := context.Background()

	doc, err := svc.Create(ctx, preparer, procurement.CreateInput{
		Type:       workflow.DocPurchaseOrder,
		Title:      "Chairs",
		ReviewerID: reviewer.ID,
		ApproverID: 3,
		Submit:     true,
		Lines:      []procurement.LineInput{{Description: "chair", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.NewFromInt(50)}},
	})
	require.NoError(t, err)

	updated, err := svc.Act(ctx, reviewer, doc.ID, workflow.ActionApprove)
	require.NoError(t, err)
	require.Equal(t, workflow.SubApproved, updated.ReviewerStatus)

	stored, err := lookup(doc.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.SubApproved, stored.ReviewerStatus)
	require.Equal(t, workflow.StatusPendingApproval, stored.Status)
	require.Positive(t, notifier.calls.Load())
}
