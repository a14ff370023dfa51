package procurement

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/procureflow/internal/shared"
)

// NewTestService builds a Service over the in-memory repository and returns
// a lookup for persisted documents.
func NewTestService(events EventDispatcher) (*Service, func(uuid.UUID) (Document, error)) {
	f := newFixture()
	f.svc.events = events
	return f.svc, func(id uuid.UUID) (Document, error) {
		return f.repo.GetDocument(context.Background(), id)
	}
}

// FixtureParties returns the preparer, reviewer and approver actors used by the fixture.
func FixtureParties() (shared.Actor, shared.Actor, shared.Actor) {
	return preparer, reviewer, approver
}
