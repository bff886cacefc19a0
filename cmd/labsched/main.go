package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/oradea-labs/labsched/internal/domain"
	"github.com/oradea-labs/labsched/internal/schedulererr"
	"github.com/oradea-labs/labsched/internal/search"
	"github.com/oradea-labs/labsched/pkg/scheduler"
)

func main() {
	filePathPtr := flag.String("file", "", "Path to the input file")
	outFilePathPtr := flag.String("out", "", "Path to the file where the output will be written; if empty, it'll be written into the Standard Output")
	timeLimitPtr := flag.Duration("time-limit", 300*time.Second, "Solver wall-clock limit")
	workersPtr := flag.Int("workers", 0, "Number of search workers; 0 uses the default (min(CPUs, 12))")
	seedPtr := flag.Int("seed", 1, "Deterministic solver seed")
	weightsFilePtr := flag.String("weights", "", "Path to a JSON file overriding the default soft-objective weights")
	flag.Parse()

	if *filePathPtr == "" {
		log.Fatal("an input file must be specified")
	}

	input, err := domain.InputFromJSON(*filePathPtr)
	if err != nil {
		log.Printf("cannot parse input file: %v", err)
		os.Exit(12)
	}

	if *weightsFilePtr != "" {
		weights, err := weightsFromJSON(*weightsFilePtr)
		if err != nil {
			log.Printf("cannot parse weights file: %v", err)
			os.Exit(12)
		}
		input.Weights = weights
	}

	cfg := search.DefaultConfig()
	cfg.TimeLimit = *timeLimitPtr
	cfg.Seed = int32(*seedPtr)
	if *workersPtr > 0 {
		cfg.NumWorkers = *workersPtr
	}

	result, err := scheduler.Schedule(input, cfg)
	if err != nil {
		log.Printf("scheduling failed: %v", err)
		os.Exit(exitCodeFor(err))
	}

	output, err := json.Marshal(result.Calendar)
	if err != nil {
		log.Fatalf("cannot marshal output: %v", err)
	}

	if *outFilePathPtr == "" {
		fmt.Println(string(output))
	} else if err := os.WriteFile(*outFilePathPtr, output, 0666); err != nil {
		log.Fatalf("cannot write output file: %v", err)
	}
}

// weightNames is the fixed set spec.md §9 enumerates for the
// weight-override file; any other name is a configuration error.
var weightNames = map[string]bool{
	"Group": true, "Continuity": true, "PrefGroup": true, "Year5Early": true,
	"SeqPref": true, "BandVar": true, "LoadBal": true, "WeeklyHrs": true,
	"TimePref": true, "LateMay": true,
}

func weightsFromJSON(path string) (domain.Weights, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return domain.Weights{}, err
	}

	var overrides map[string]int64
	if err := json.Unmarshal(bytes, &overrides); err != nil {
		return domain.Weights{}, err
	}

	weights := domain.DefaultWeights()
	for name, value := range overrides {
		if !weightNames[name] {
			return domain.Weights{}, fmt.Errorf("unknown weight name %q", name)
		}
		switch name {
		case "Group":
			weights.Group = value
		case "Continuity":
			weights.Continuity = value
		case "PrefGroup":
			weights.PrefGroup = value
		case "Year5Early":
			weights.Year5Early = value
		case "SeqPref":
			weights.SeqPref = value
		case "BandVar":
			weights.BandVar = value
		case "LoadBal":
			weights.LoadBal = value
		case "WeeklyHrs":
			weights.WeeklyHrs = value
		case "TimePref":
			weights.TimePref = value
		case "LateMay":
			weights.LateMay = value
		}
	}
	return weights, nil
}

// exitCodeFor mirrors the solver outcome states onto distinct exit codes,
// in the same spirit as the teacher's DIMACS-derived 10/15/20.
func exitCodeFor(err error) int {
	switch err.(type) {
	case *schedulererr.SolverInfeasibleError:
		return 10
	case *schedulererr.SolverTimeoutNoFeasibleError:
		return 11
	default:
		return 12
	}
}
