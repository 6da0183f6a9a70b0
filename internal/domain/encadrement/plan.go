package encadrement

import (
	"sort"

	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// Formule identifies a subscription plan tier.
type Formule string

// Known formules. Names follow the commercial offer: essentielle gives two
// sessions a month, intensive four, excellence eight.
const (
	FormuleEssentielle Formule = "essentielle"
	FormuleIntensive   Formule = "intensive"
	FormuleExcellence  Formule = "excellence"
)

// String returns the string representation.
func (f Formule) String() string {
	return string(f)
}

// Plan fixes the commercial terms of a formule. SessionsPerMonth is the
// quota of sessions that may be created per billing cycle; cancelling a
// session does not give the slot back.
type Plan struct {
	Formule          Formule
	SessionsPerMonth int
	MonthlyAmount    shared.Cents
}

// planTable is the source of truth for plan terms. Amounts are euro cents.
// Changing a plan here only affects encadrements created afterwards;
// existing ones keep the terms copied at creation.
var planTable = map[Formule]Plan{
	FormuleEssentielle: {Formule: FormuleEssentielle, SessionsPerMonth: 2, MonthlyAmount: 5990},
	FormuleIntensive:   {Formule: FormuleIntensive, SessionsPerMonth: 4, MonthlyAmount: 9990},
	FormuleExcellence:  {Formule: FormuleExcellence, SessionsPerMonth: 8, MonthlyAmount: 17990},
}

// LookupPlan returns the plan for a formule, or ErrInvalidPlan for an
// unknown one.
func LookupPlan(f Formule) (Plan, error) {
	plan, ok := planTable[f]
	if !ok {
		return Plan{}, shared.ErrUnknownFormule
	}
	return plan, nil
}

// KnownFormules returns the known formules in stable (alphabetical) order,
// for validation messages and admin listings.
func KnownFormules() []Formule {
	out := make([]Formule, 0, len(planTable))
	for f := range planTable {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
