// Package schedulererr holds the structured error values the core
// surfaces to its caller (spec.md §6/§7). They carry the offending entity
// identifiers so the caller can point an operator at a row, the way the
// teacher's unassignableError in timetabler_utils.go is a typed error
// carrying the information a caller needs to act on it.
package schedulererr

import "fmt"

// DomainEmptyError reports that, after domain reduction, an enrollment has
// no admissible slot left for one of its meeting instances.
type DomainEmptyError struct {
	ClassID    uint64
	WorkshopID uint64
	Ordinal    int
	Reason     string
}

func (e *DomainEmptyError) Error() string {
	return fmt.Sprintf("class %d, workshop %d: meeting %d has no admissible slot: %s", e.ClassID, e.WorkshopID, e.Ordinal, e.Reason)
}

// PinConflictError reports that two pinned meetings of the same class
// collide on the same week.
type PinConflictError struct {
	ClassID uint64
	Week    int
}

func (e *PinConflictError) Error() string {
	return fmt.Sprintf("class %d has two pinned meetings in week %d", e.ClassID, e.Week)
}

// BudgetOverError reports that a trainer's total-hour budget cannot be met
// even with perfect grouping, detected before solving.
type BudgetOverError struct {
	TrainerID uint64
	Needed    float64
	Budget    float64
}

func (e *BudgetOverError) Error() string {
	return fmt.Sprintf("trainer %d needs at least %.1f hours even with maximal grouping, budget is %.1f", e.TrainerID, e.Needed, e.Budget)
}

// SolverTimeoutNoFeasibleError reports that the search driver hit its wall
// clock limit without ever finding a feasible solution.
type SolverTimeoutNoFeasibleError struct {
	WallSeconds float64
}

func (e *SolverTimeoutNoFeasibleError) Error() string {
	return fmt.Sprintf("solver timed out after %.1fs without a feasible solution", e.WallSeconds)
}

// SolverInfeasibleError reports that the model has no solution, confirmed
// by the diagnostic retry with soft weights zeroed (spec.md §7 item 3).
type SolverInfeasibleError struct {
	ConfirmedByRetry bool
}

func (e *SolverInfeasibleError) Error() string {
	if e.ConfirmedByRetry {
		return "model is infeasible: confirmed by a retry with every soft weight zeroed"
	}
	return "model is infeasible"
}
