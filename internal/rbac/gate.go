package rbac

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/procureflow/internal/shared"
)

// Gate answers capability checks from the actor's resolved capability set.
// It satisfies workflow.Authorizer.
type Gate struct{}

// Authorize fails when the actor does not hold capability.
func (Gate) Authorize(ctx context.Context, actor shared.Actor, capability shared.Capability) error {
	if !actor.Authenticated() {
		return fmt.Errorf("rbac: anonymous actor lacks %s", capability)
	}
	if !actor.Has(capability) {
		return fmt.Errorf("rbac: user %d lacks %s", actor.ID, capability)
	}
	return nil
}
