package constraints

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	cpmodel "github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/oradea-labs/labsched/internal/calendar"
	"github.com/oradea-labs/labsched/internal/domain"
	"github.com/oradea-labs/labsched/internal/objective"
	"github.com/oradea-labs/labsched/internal/preprocessor"
	"github.com/oradea-labs/labsched/internal/search"
	"github.com/oradea-labs/labsched/internal/solution"
	"github.com/oradea-labs/labsched/internal/variables"
)

func budgetForcingInput(t *testing.T) domain.ModelInput {
	t.Helper()
	raw := domain.RawModelInput{
		Schools: []domain.School{{ID: 1, Name: "North"}},
		Classes: []domain.Class{
			{ID: 1, Name: "3A", SchoolID: 1},
			{ID: 2, Name: "3B", SchoolID: 1},
		},
		Trainers: []domain.Trainer{{
			ID:              1,
			TotalHourBudget: 8,
			MorningDays:     map[calendar.Weekday]bool{calendar.Mon: true, calendar.Tue: true, calendar.Wed: true, calendar.Thu: true},
			AfternoonDays:   map[calendar.Weekday]bool{calendar.Mon: true, calendar.Tue: true, calendar.Wed: true, calendar.Thu: true},
		}},
		Workshops: []domain.Workshop{{ID: 1, Name: "Robotics", DefaultMeetingCount: 2, HoursPerMeeting: 2}},
		Enrollments: []domain.Enrollment{
			{ClassID: 1, WorkshopID: 1},
			{ClassID: 2, WorkshopID: 1},
		},
		Horizon: domain.HorizonSpec{Weeks: 4},
	}
	input, err := domain.ProcessRawInput(raw)
	assert.NoError(t, err)
	return input
}

func TestCompile(t *testing.T) {
	t.Run("Compile runs without panicking over a small grouping-eligible model", func(t *testing.T) {
		//**Arrange
		input := budgetForcingInput(t)
		pre, err := preprocessor.New(input)
		assert.NoError(t, err)
		cp := cpmodel.NewCpModelBuilder()
		vm, err := variables.Build(cp, input, pre)
		assert.NoError(t, err)

		//**Act + Assert
		assert.NotPanics(t, func() { Compile(cp, input, vm) })
	})

	t.Run("Every meeting has at most two candidate grouping edges after compilation", func(t *testing.T) {
		//**Arrange
		input := budgetForcingInput(t)
		pre, err := preprocessor.New(input)
		assert.NoError(t, err)
		cp := cpmodel.NewCpModelBuilder()
		vm, err := variables.Build(cp, input, pre)
		assert.NoError(t, err)
		Compile(cp, input, vm)

		//**Act
		counts := make(map[variables.MeetingID]int)
		for key := range vm.Groups {
			counts[key.A]++
			counts[key.B]++
		}

		//**Assert
		for _, n := range counts {
			assert.LessOrEqual(t, n, 2) // cap enforced by the solver, not by construction; sanity bound on candidate edges
		}
	})
}

func afternoonCountInput(t *testing.T) domain.ModelInput {
	t.Helper()
	fullWeek := map[calendar.Weekday]bool{
		calendar.Mon: true, calendar.Tue: true, calendar.Wed: true,
		calendar.Thu: true, calendar.Fri: true,
	}
	raw := domain.RawModelInput{
		Schools: []domain.School{{ID: 1, Name: "North"}},
		Classes: []domain.Class{{ID: 1, Name: "3A", SchoolID: 1}},
		Trainers: []domain.Trainer{{
			ID:              1,
			TotalHourBudget: 40,
			MorningDays:     fullWeek,
			AfternoonDays:   fullWeek,
		}},
		Workshops: []domain.Workshop{{ID: 1, Name: "Robotics", DefaultMeetingCount: 3, HoursPerMeeting: 2}},
		Enrollments: []domain.Enrollment{{
			ClassID: 1, WorkshopID: 1,
			Detail: domain.Detail{Kind: domain.DetailAfternoonCount, AfternoonCount: 2, NonConsecutive: true},
		}},
		Horizon: domain.HorizonSpec{Weeks: 8},
	}
	input, err := domain.ProcessRawInput(raw)
	assert.NoError(t, err)
	return input
}

func TestAfternoonCount(t *testing.T) {
	t.Run("Exactly the configured count of meetings land in the afternoon band, never in consecutive weeks", func(t *testing.T) {
		//**Arrange
		input := afternoonCountInput(t)
		pre, err := preprocessor.New(input)
		assert.NoError(t, err)
		cp := cpmodel.NewCpModelBuilder()
		vm, err := variables.Build(cp, input, pre)
		assert.NoError(t, err)
		Compile(cp, input, vm)
		objective.Build(cp, input, vm, input.Weights)

		//**Act
		result, err := search.Run(cp, vm, search.Config{TimeLimit: 10 * time.Second, NumWorkers: 1, Seed: 1})
		assert.NoError(t, err)
		assert.Contains(t, []search.Status{search.StatusOptimal, search.StatusFeasible}, result.Status)
		cal := solution.Extract(result.Response, input, vm)

		//**Assert
		afternoonWeeks := make([]int, 0)
		for _, m := range cal.Meetings {
			if !m.Band.IsMorning() {
				afternoonWeeks = append(afternoonWeeks, m.Week)
			}
		}
		assert.Len(t, afternoonWeeks, 2)
		assert.GreaterOrEqual(t, abs(afternoonWeeks[1]-afternoonWeeks[0]), 2)
	})
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
