// Package scheduler is the top-level entry point: Schedule(input) runs
// every component in order (preprocess, build variables, compile
// constraints and objective, search, extract) and maps the outcome onto
// the structured errors a caller acts on, the way the teacher's
// Timetabler.Build orchestrates preprocessing, SAT construction and
// solving behind one call (pkg/model/timetabler_embedded_room.go).
package scheduler

import (
	"log"

	cpmodel "github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/oradea-labs/labsched/internal/constraints"
	"github.com/oradea-labs/labsched/internal/domain"
	"github.com/oradea-labs/labsched/internal/objective"
	"github.com/oradea-labs/labsched/internal/preprocessor"
	"github.com/oradea-labs/labsched/internal/schedulererr"
	"github.com/oradea-labs/labsched/internal/search"
	"github.com/oradea-labs/labsched/internal/solution"
	"github.com/oradea-labs/labsched/internal/variables"
)

// Result is what Schedule returns on success.
type Result struct {
	Calendar       solution.Calendar
	Status         search.Status
	ObjectiveValue float64
	WallSeconds    float64
}

// Schedule runs the full pipeline against one input, using cfg to
// configure the solver (search.DefaultConfig() if the zero value is not
// wanted).
func Schedule(input domain.ModelInput, cfg search.Config) (Result, error) {
	log.Printf("scheduler: preprocessing %d classes, %d trainers, %d workshops", len(input.Classes), len(input.Trainers), len(input.Workshops))
	pre, err := preprocessor.New(input)
	if err != nil {
		return Result{}, err
	}

	if err := checkBudgetFeasible(input); err != nil {
		return Result{}, err
	}

	cp := cpmodel.NewCpModelBuilder()
	log.Printf("scheduler: building variables")
	vm, err := variables.Build(cp, input, pre)
	if err != nil {
		return Result{}, err
	}

	log.Printf("scheduler: compiling %d meeting groups, %d candidate pairings", len(vm.Meetings), len(vm.Groups))
	constraints.Compile(cp, input, vm)
	objective.Build(cp, input, vm, input.Weights)

	log.Printf("scheduler: solving")
	result, err := search.Run(cp, vm, cfg)
	if err != nil {
		return Result{}, err
	}

	switch result.Status {
	case search.StatusInfeasible:
		return Result{}, diagnoseInfeasible(cp, input, vm, cfg)
	case search.StatusTimeout:
		return Result{}, &schedulererr.SolverTimeoutNoFeasibleError{WallSeconds: result.WallSeconds}
	}

	calendarOut := solution.Extract(result.Response, input, vm)
	log.Printf("scheduler: done status=%s objective=%.2f meetings=%d groupings=%d",
		result.Status, result.ObjectiveValue, len(calendarOut.Meetings), calendarOut.Report.GroupingCount)

	return Result{
		Calendar:       calendarOut,
		Status:         result.Status,
		ObjectiveValue: result.ObjectiveValue,
		WallSeconds:    result.WallSeconds,
	}, nil
}

// diagnoseInfeasible re-solves the same compiled hard-constraint model
// with every soft weight zeroed (spec.md §7 item 3, SPEC_FULL.md §12): if
// it is still infeasible, the hard constraints themselves conflict, not
// the objective.
func diagnoseInfeasible(cp *cpmodel.Builder, input domain.ModelInput, vm *variables.Model, cfg search.Config) error {
	log.Printf("scheduler: infeasible, retrying with soft weights zeroed to confirm")
	objective.Build(cp, input, vm, input.Weights.Zeroed())
	retry, err := search.Run(cp, vm, cfg)
	if err != nil {
		return err
	}
	return &schedulererr.SolverInfeasibleError{ConfirmedByRetry: retry.Status == search.StatusInfeasible}
}

// checkBudgetFeasible rejects, before the expensive solve, any trainer
// whose exclusively-assigned workload (enrollments that fix this trainer
// and so cannot be deflected to anyone else) cannot fit their hour budget
// even under the best possible grouping, where every groupable pair halves
// its cost. This is a lower bound, not an exact feasibility check: H-BUDGET
// itself is still enforced exactly during solving.
func checkBudgetFeasible(input domain.ModelInput) error {
	minNeeded := make(map[uint64]float64)
	for key, e := range input.Enrollments {
		if e.FixedTrainerID == nil {
			continue
		}
		workshop := input.Workshops[key.WorkshopID]
		minNeeded[*e.FixedTrainerID] += workshop.HoursPerMeeting * float64(e.RequiredCount) / 2
	}

	for trainerID, needed := range minNeeded {
		trainer := input.Trainers[trainerID]
		if needed > trainer.TotalHourBudget {
			return &schedulererr.BudgetOverError{TrainerID: trainerID, Needed: needed, Budget: trainer.TotalHourBudget}
		}
	}
	return nil
}
