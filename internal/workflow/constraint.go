package workflow

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CheckParentTotal fails when a dependent document total exceeds the total of
// the document it is drawn against. Equal totals are allowed.
func CheckParentTotal(dependent DocType, total decimal.Decimal, parent DocType, parentTotal decimal.Decimal) error {
	if total.GreaterThan(parentTotal) {
		return &ConstraintError{Message: fmt.Sprintf("%s total (%s) cannot exceed %s total (%s).",
			dependent.Label(), total.String(), parent.Label(), parentTotal.String())}
	}
	return nil
}
