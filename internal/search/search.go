// Package search configures and invokes the CP-SAT solver, then maps its
// outcome onto the Built → Solving → {Optimal,Feasible,Infeasible,Timeout}
// state machine (spec.md §4.4). The single blocking call here is the
// solver run, matching §5's "the only blocking call is solver.run()".
package search

import (
	"fmt"
	"log"
	"runtime"
	"time"

	cpmodel "github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"
	satpb "github.com/google/or-tools/ortools/sat/proto/sat"
	"google.golang.org/protobuf/proto"

	"github.com/oradea-labs/labsched/internal/variables"
)

// Status mirrors the state machine's terminal states.
type Status int

const (
	StatusOptimal Status = iota
	StatusFeasible
	StatusInfeasible
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "Optimal"
	case StatusFeasible:
		return "Feasible"
	case StatusInfeasible:
		return "Infeasible"
	case StatusTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Config configures one solver run (spec.md §4.4).
type Config struct {
	TimeLimit  time.Duration // default 300s
	NumWorkers int           // default min(CPUs, 12)
	Seed       int32         // deterministic, for P13 idempotence
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	workers := runtime.NumCPU()
	if workers > 12 {
		workers = 12
	}
	return Config{
		TimeLimit:  300 * time.Second,
		NumWorkers: workers,
		Seed:       1,
	}
}

// Result is the outcome of one solver invocation.
type Result struct {
	Status         Status
	Response       *cmpb.CpSolverResponse
	ObjectiveValue float64
	WallSeconds    float64
}

// Run invokes the solver with the given parameters and classifies the
// outcome. It also calls applyDecisionStrategy, documented below as a
// no-op: §4.4's decision-strategy hint has no variable representation to
// attach to in this encoding.
func Run(cp *cpmodel.Builder, vm *variables.Model, cfg Config) (Result, error) {
	applyDecisionStrategy(cp, vm)

	model, err := cp.Model()
	if err != nil {
		return Result{}, fmt.Errorf("cannot instantiate cp model: %w", err)
	}

	params := &satpb.SatParameters{
		MaxTimeInSeconds: proto.Float64(cfg.TimeLimit.Seconds()),
		NumSearchWorkers: proto.Int32(int32(cfg.NumWorkers)),
		RandomSeed:       proto.Int32(cfg.Seed),
	}

	start := time.Now()
	log.Printf("search: solving with time_limit=%s workers=%d seed=%d", cfg.TimeLimit, cfg.NumWorkers, cfg.Seed)
	response, err := cpmodel.SolveCpModelWithSatParameters(model, params)
	wall := time.Since(start).Seconds()
	if err != nil {
		return Result{}, fmt.Errorf("solver invocation failed: %w", err)
	}

	status := classify(response)
	log.Printf("search: finished status=%s wall=%.2fs objective=%v", status, wall, response.GetObjectiveValue())

	return Result{
		Status:         status,
		Response:       response,
		ObjectiveValue: response.GetObjectiveValue(),
		WallSeconds:    wall,
	}, nil
}

func classify(response *cmpb.CpSolverResponse) Status {
	switch response.GetStatus() {
	case cmpb.CpSolverStatus_OPTIMAL:
		return StatusOptimal
	case cmpb.CpSolverStatus_FEASIBLE:
		return StatusFeasible
	case cmpb.CpSolverStatus_INFEASIBLE:
		return StatusInfeasible
	default:
		return StatusTimeout
	}
}

// applyDecisionStrategy would hint the branching order spec.md §4.4
// requires (group vars first, then trainer, week, wday, band), but
// AddDecisionStrategy only accepts IntVar and every variable in this model
// is a BoolVar (one per admissible assignment, one per grouping pair) with
// no conversion between the two exposed by this binding. Construction order
// is the only lever left: Build populates assign-vars meeting by meeting
// and only then derives group-vars from the realized pairs, which already
// puts group-vars last in the model's variable index rather than first.
// Left as a documented gap rather than an incorrect strategy call.
func applyDecisionStrategy(cp *cpmodel.Builder, vm *variables.Model) {
}
