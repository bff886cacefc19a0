package scheduler

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/oradea-labs/labsched/internal/calendar"
	"github.com/oradea-labs/labsched/internal/domain"
	"github.com/oradea-labs/labsched/internal/search"
	"github.com/oradea-labs/labsched/internal/solution"
)

func fullWeek() map[calendar.Weekday]bool {
	return map[calendar.Weekday]bool{
		calendar.Mon: true, calendar.Tue: true, calendar.Wed: true,
		calendar.Thu: true, calendar.Fri: true,
	}
}

// weeksByWorkshop buckets a solved calendar's meeting weeks by workshop id,
// in ordinal order, for the ordering/gap assertions below.
func weeksByWorkshop(meetings []solution.Meeting) map[uint64][]int {
	byOrdinal := make(map[uint64]map[int]int)
	for _, m := range meetings {
		if byOrdinal[m.WorkshopID] == nil {
			byOrdinal[m.WorkshopID] = make(map[int]int)
		}
		byOrdinal[m.WorkshopID][m.Ordinal] = m.Week
	}
	out := make(map[uint64][]int, len(byOrdinal))
	for workshopID, ordinals := range byOrdinal {
		ords := make([]int, 0, len(ordinals))
		for o := range ordinals {
			ords = append(ords, o)
		}
		sort.Ints(ords)
		weeks := make([]int, len(ords))
		for i, o := range ords {
			weeks[i] = ordinals[o]
		}
		out[workshopID] = weeks
	}
	return out
}

func feasibleInput(t *testing.T) domain.ModelInput {
	t.Helper()
	raw := domain.RawModelInput{
		Schools: []domain.School{{ID: 1, Name: "North"}},
		Classes: []domain.Class{{ID: 1, Name: "3A", SchoolID: 1}},
		Trainers: []domain.Trainer{{
			ID:              1,
			TotalHourBudget: 40,
			MorningDays:     map[calendar.Weekday]bool{calendar.Mon: true, calendar.Tue: true, calendar.Wed: true},
			AfternoonDays:   map[calendar.Weekday]bool{calendar.Mon: true, calendar.Tue: true, calendar.Wed: true},
		}},
		Workshops:   []domain.Workshop{{ID: 1, Name: "Robotics", DefaultMeetingCount: 1, HoursPerMeeting: 2}},
		Enrollments: []domain.Enrollment{{ClassID: 1, WorkshopID: 1}},
		Horizon:     domain.HorizonSpec{Weeks: 2},
	}
	input, err := domain.ProcessRawInput(raw)
	assert.NoError(t, err)
	return input
}

func TestSchedule(t *testing.T) {
	t.Run("Schedule solves a tiny feasible instance end to end", func(t *testing.T) {
		//**Arrange
		input := feasibleInput(t)
		cfg := search.Config{TimeLimit: 5 * time.Second, NumWorkers: 1, Seed: 1}

		//**Act
		result, err := Schedule(input, cfg)

		//**Assert
		assert.NoError(t, err)
		assert.Contains(t, []search.Status{search.StatusOptimal, search.StatusFeasible}, result.Status)
		assert.Len(t, result.Calendar.Meetings, 1)
	})

	t.Run("Schedule orders a must-be-last workshop after every other covered workshop for the same class", func(t *testing.T) {
		//**Arrange
		raw := domain.RawModelInput{
			Schools: []domain.School{{ID: 1, Name: "North"}},
			Classes: []domain.Class{{ID: 1, Name: "3A", SchoolID: 1}},
			Trainers: []domain.Trainer{{
				ID:              1,
				TotalHourBudget: 40,
				MorningDays:     fullWeek(),
				AfternoonDays:   fullWeek(),
			}},
			Workshops: []domain.Workshop{
				{ID: 1, Name: "Robotics", DefaultMeetingCount: 1, HoursPerMeeting: 2},
				{ID: 2, Name: "Presentation", DefaultMeetingCount: 1, HoursPerMeeting: 2, MustBeLast: true},
			},
			Enrollments: []domain.Enrollment{
				{ClassID: 1, WorkshopID: 1},
				{ClassID: 1, WorkshopID: 2},
			},
			Horizon: domain.HorizonSpec{Weeks: 8},
		}
		input, err := domain.ProcessRawInput(raw)
		assert.NoError(t, err)

		//**Act
		result, err := Schedule(input, search.Config{TimeLimit: 10 * time.Second, NumWorkers: 1, Seed: 1})

		//**Assert
		assert.NoError(t, err)
		weeks := weeksByWorkshop(result.Calendar.Meetings)
		assert.Greater(t, weeks[2][0], weeks[1][0])
	})

	t.Run("Schedule orders a precedence pair's after-workshop strictly after its before-workshop", func(t *testing.T) {
		//**Arrange
		raw := domain.RawModelInput{
			Schools: []domain.School{{ID: 1, Name: "North"}},
			Classes: []domain.Class{{ID: 1, Name: "3A", SchoolID: 1}},
			Trainers: []domain.Trainer{{
				ID:              1,
				TotalHourBudget: 40,
				MorningDays:     fullWeek(),
				AfternoonDays:   fullWeek(),
			}},
			Workshops: []domain.Workshop{
				{ID: 1, Name: "Intro", DefaultMeetingCount: 1, HoursPerMeeting: 2},
				{ID: 2, Name: "Advanced", DefaultMeetingCount: 1, HoursPerMeeting: 2},
			},
			Enrollments: []domain.Enrollment{
				{ClassID: 1, WorkshopID: 1},
				{ClassID: 1, WorkshopID: 2},
			},
			PrecedenceRules: []domain.PrecedenceRule{{BeforeWorkshopID: 1, AfterWorkshopID: 2}},
			Horizon:         domain.HorizonSpec{Weeks: 8},
		}
		input, err := domain.ProcessRawInput(raw)
		assert.NoError(t, err)

		//**Act
		result, err := Schedule(input, search.Config{TimeLimit: 10 * time.Second, NumWorkers: 1, Seed: 1})

		//**Assert
		assert.NoError(t, err)
		weeks := weeksByWorkshop(result.Calendar.Meetings)
		assert.Greater(t, weeks[2][0], weeks[1][0])
	})

	t.Run("Schedule leaves a two-week gap around an autonomous-gap workshop's third meeting", func(t *testing.T) {
		//**Arrange
		raw := domain.RawModelInput{
			Schools: []domain.School{{ID: 1, Name: "North"}},
			Classes: []domain.Class{{ID: 1, Name: "3A", SchoolID: 1}},
			Trainers: []domain.Trainer{{
				ID:              1,
				TotalHourBudget: 40,
				MorningDays:     fullWeek(),
				AfternoonDays:   fullWeek(),
			}},
			Workshops: []domain.Workshop{
				{ID: 1, Name: "Citizen Science", DefaultMeetingCount: 4, HoursPerMeeting: 2, AutonomousGap: true},
			},
			Enrollments: []domain.Enrollment{{ClassID: 1, WorkshopID: 1}},
			Horizon:     domain.HorizonSpec{Weeks: 10},
		}
		input, err := domain.ProcessRawInput(raw)
		assert.NoError(t, err)

		//**Act
		result, err := Schedule(input, search.Config{TimeLimit: 10 * time.Second, NumWorkers: 1, Seed: 1})

		//**Assert
		assert.NoError(t, err)
		weeks := weeksByWorkshop(result.Calendar.Meetings)
		assert.Len(t, weeks[1], 3)
		assert.GreaterOrEqual(t, weeks[1][2], weeks[1][1]+2)
	})

	t.Run("Schedule rejects a trainer whose exclusive workload overruns their budget before solving", func(t *testing.T) {
		//**Arrange
		trainerID := uint64(1)
		raw := domain.RawModelInput{
			Schools: []domain.School{{ID: 1, Name: "North"}},
			Classes: []domain.Class{{ID: 1, Name: "3A", SchoolID: 1}},
			Trainers: []domain.Trainer{{
				ID:              trainerID,
				TotalHourBudget: 1,
				MorningDays:     map[calendar.Weekday]bool{calendar.Mon: true},
				AfternoonDays:   map[calendar.Weekday]bool{calendar.Mon: true},
			}},
			Workshops:   []domain.Workshop{{ID: 1, Name: "Robotics", DefaultMeetingCount: 4, HoursPerMeeting: 2}},
			Enrollments: []domain.Enrollment{{ClassID: 1, WorkshopID: 1, FixedTrainerID: &trainerID}},
			Horizon:     domain.HorizonSpec{Weeks: 4},
		}
		input, err := domain.ProcessRawInput(raw)
		assert.NoError(t, err)

		//**Act
		_, err = Schedule(input, search.Config{TimeLimit: 5 * time.Second, NumWorkers: 1, Seed: 1})

		//**Assert
		assert.Error(t, err)
	})
}
