// Package solution reads the solver's response back into a calendar of
// concrete meeting placements plus a summary report, the way the teacher's
// timetabler_utils.go decodes solver output into typed attributes and
// accumulates per-entity summaries (roomAssignment/verify).
package solution

import (
	"sort"

	cpmodel "github.com/google/or-tools/ortools/sat/go/cpmodel"
	cmpb "github.com/google/or-tools/ortools/sat/proto/cpmodel"

	"github.com/oradea-labs/labsched/internal/calendar"
	"github.com/oradea-labs/labsched/internal/domain"
	"github.com/oradea-labs/labsched/internal/variables"
)

// Meeting is one concretely placed meeting instance.
type Meeting struct {
	ClassID    uint64
	WorkshopID uint64
	Ordinal    int
	Week       int
	Weekday    calendar.Weekday
	Band       calendar.Band
	TrainerID  uint64
	// GroupedWith lists the other class ids co-taught in this exact slot
	// alongside ClassID, resolved from realized grouping booleans.
	GroupedWith []uint64
}

// TrainerReport summarizes one trainer's realized load.
type TrainerReport struct {
	TrainerID     uint64
	HoursUsed     float64
	HoursBudget   float64
	HoursRemaining float64
	MeetingCount  int
}

// EnrollmentReport summarizes one (class, workshop) enrollment's completion.
type EnrollmentReport struct {
	ClassID         uint64
	WorkshopID      uint64
	RequiredCount   int
	CompletedCount  int
}

// Report bundles the summaries spec.md §4.5/§6 requires alongside the bare
// calendar.
type Report struct {
	Trainers        []TrainerReport
	Enrollments     []EnrollmentReport
	GroupingCount   int
}

// Calendar is the fully decoded outcome of one solved model.
type Calendar struct {
	Meetings []Meeting
	Report   Report
}

// Extract reads every assignment and grouping boolean off the solver
// response and builds the calendar + report. The response must come from a
// solve over the exact vm the caller built (spec.md §4.5).
func Extract(response *cmpb.CpSolverResponse, input domain.ModelInput, vm *variables.Model) Calendar {
	meetings := make(map[variables.MeetingID]*Meeting, len(vm.Order))

	for _, id := range vm.Order {
		mv := vm.Meetings[id]
		for i, bv := range mv.Vars {
			if !cpmodel.SolutionBooleanValue(response, bv) {
				continue
			}
			a := mv.Assignments[i]
			meetings[id] = &Meeting{
				ClassID:    id.ClassID,
				WorkshopID: id.WorkshopID,
				Ordinal:    id.Ordinal,
				Week:       a.Slot.Week,
				Weekday:    a.Slot.Weekday,
				Band:       a.Slot.Band,
				TrainerID:  a.TrainerID,
			}
			break
		}
	}

	groupingCount := 0
	for key, bv := range vm.Groups {
		if !cpmodel.SolutionBooleanValue(response, bv) {
			continue
		}
		groupingCount++
		if m1, ok := meetings[key.A]; ok {
			m1.GroupedWith = append(m1.GroupedWith, key.B.ClassID)
		}
		if m2, ok := meetings[key.B]; ok {
			m2.GroupedWith = append(m2.GroupedWith, key.A.ClassID)
		}
	}

	result := make([]Meeting, 0, len(meetings))
	for _, id := range vm.Order {
		if m, ok := meetings[id]; ok {
			sort.Slice(m.GroupedWith, func(i, j int) bool { return m.GroupedWith[i] < m.GroupedWith[j] })
			result = append(result, *m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		di := calendar.SlotIndex(result[i].Week, result[i].Weekday, result[i].Band)
		dj := calendar.SlotIndex(result[j].Week, result[j].Weekday, result[j].Band)
		if di != dj {
			return di < dj
		}
		if result[i].ClassID != result[j].ClassID {
			return result[i].ClassID < result[j].ClassID
		}
		return result[i].WorkshopID < result[j].WorkshopID
	})

	return Calendar{
		Meetings: result,
		Report:   buildReport(input, result, groupingCount),
	}
}

func buildReport(input domain.ModelInput, meetings []Meeting, groupingCount int) Report {
	hoursUsed := make(map[uint64]float64)
	completions := make(map[domain.EnrollmentKey]int)
	trainerMeetingCount := make(map[uint64]int)

	// GroupedWith is populated symmetrically on both sides of a realized
	// pair, so halving avoids double-charging a shared session's hours to
	// the trainer twice.
	for _, m := range meetings {
		workshop := input.Workshops[m.WorkshopID]
		hours := workshop.HoursPerMeeting
		if len(m.GroupedWith) > 0 {
			hours /= 2
		}
		hoursUsed[m.TrainerID] += hours
		trainerMeetingCount[m.TrainerID]++
		completions[domain.EnrollmentKey{ClassID: m.ClassID, WorkshopID: m.WorkshopID}]++
	}

	trainerIDs := make([]uint64, 0, len(input.Trainers))
	for id := range input.Trainers {
		trainerIDs = append(trainerIDs, id)
	}
	sort.Slice(trainerIDs, func(i, j int) bool { return trainerIDs[i] < trainerIDs[j] })

	trainers := make([]TrainerReport, 0, len(trainerIDs))
	for _, id := range trainerIDs {
		t := input.Trainers[id]
		used := hoursUsed[id]
		trainers = append(trainers, TrainerReport{
			TrainerID:      id,
			HoursUsed:      used,
			HoursBudget:    t.TotalHourBudget,
			HoursRemaining: t.TotalHourBudget - used,
			MeetingCount:   trainerMeetingCount[id],
		})
	}

	enrollmentKeys := make([]domain.EnrollmentKey, 0, len(input.Enrollments))
	for key := range input.Enrollments {
		enrollmentKeys = append(enrollmentKeys, key)
	}
	sort.Slice(enrollmentKeys, func(i, j int) bool {
		if enrollmentKeys[i].ClassID != enrollmentKeys[j].ClassID {
			return enrollmentKeys[i].ClassID < enrollmentKeys[j].ClassID
		}
		return enrollmentKeys[i].WorkshopID < enrollmentKeys[j].WorkshopID
	})

	enrollments := make([]EnrollmentReport, 0, len(enrollmentKeys))
	for _, key := range enrollmentKeys {
		e := input.Enrollments[key]
		enrollments = append(enrollments, EnrollmentReport{
			ClassID:        key.ClassID,
			WorkshopID:     key.WorkshopID,
			RequiredCount:  e.RequiredCount,
			CompletedCount: completions[key],
		})
	}

	return Report{
		Trainers:      trainers,
		Enrollments:   enrollments,
		GroupingCount: groupingCount,
	}
}
