package procurement

import (
	"context"

	"github.com/odyssey-erp/procureflow/internal/shared"
	"github.com/odyssey-erp/procureflow/internal/workflow"
)

// TransitionEvent describes a committed state change. Document carries the
// post-transition state.
type TransitionEvent struct {
	Document Document
	Actor    shared.Actor
	Role     workflow.Role
	// Name is the decision or transition applied, e.g. "APPROVE" or "ORDER".
	Name string
	From workflow.State
}

// EventDispatcher receives transition events after commit. Implementations
// are best effort and must not report failures back to the service.
type EventDispatcher interface {
	Dispatch(ctx context.Context, evt TransitionEvent)
}

// TransitionRecorder counts transition attempts by outcome.
type TransitionRecorder interface {
	ObserveTransition(docType, name, outcome string)
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, TransitionEvent) {}
