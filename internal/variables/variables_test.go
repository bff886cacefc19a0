package variables

import (
	"testing"

	"github.com/stretchr/testify/assert"

	cpmodel "github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/oradea-labs/labsched/internal/calendar"
	"github.com/oradea-labs/labsched/internal/domain"
	"github.com/oradea-labs/labsched/internal/preprocessor"
)

func twoClassInput(t *testing.T) domain.ModelInput {
	t.Helper()
	raw := domain.RawModelInput{
		Schools: []domain.School{{ID: 1, Name: "North"}},
		Classes: []domain.Class{
			{ID: 1, Name: "3A", SchoolID: 1},
			{ID: 2, Name: "3B", SchoolID: 1},
		},
		Trainers: []domain.Trainer{{
			ID:              1,
			TotalHourBudget: 80,
			MorningDays:     map[calendar.Weekday]bool{calendar.Mon: true, calendar.Tue: true, calendar.Wed: true},
			AfternoonDays:   map[calendar.Weekday]bool{calendar.Mon: true, calendar.Tue: true, calendar.Wed: true},
		}},
		Workshops: []domain.Workshop{{ID: 1, Name: "Robotics", DefaultMeetingCount: 1, HoursPerMeeting: 2}},
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

func TestBuild(t *testing.T) {
	t.Run("Every meeting gets at least one admissible assignment boolean", func(t *testing.T) {
		//**Arrange
		input := twoClassInput(t)
		pre, err := preprocessor.New(input)
		assert.NoError(t, err)
		cp := cpmodel.NewCpModelBuilder()

		//**Act
		m, err := Build(cp, input, pre)

		//**Assert
		assert.NoError(t, err)
		assert.Len(t, m.Order, 2)
		for _, id := range m.Order {
			mv := m.Meetings[id]
			assert.NotEmpty(t, mv.Assignments)
			assert.Len(t, mv.Vars, len(mv.Assignments))
		}
	})

	t.Run("A grouping boolean is created for the cross-class candidate pair", func(t *testing.T) {
		//**Arrange
		input := twoClassInput(t)
		pre, err := preprocessor.New(input)
		assert.NoError(t, err)
		cp := cpmodel.NewCpModelBuilder()

		//**Act
		m, err := Build(cp, input, pre)

		//**Assert
		assert.NoError(t, err)
		id1 := MeetingID{ClassID: 1, WorkshopID: 1, Ordinal: 1}
		id2 := MeetingID{ClassID: 2, WorkshopID: 1, Ordinal: 1}
		_, ok := m.PairVar(id1, id2)
		assert.True(t, ok)
	})

	t.Run("A pinned meeting collapses to a single assignment", func(t *testing.T) {
		//**Arrange
		input := twoClassInput(t)
		enrollment := input.Enrollments[domain.EnrollmentKey{ClassID: 1, WorkshopID: 1}]
		trainerID := uint64(1)
		enrollment.PinnedMeetings = []domain.Pin{{Ordinal: 1, Week: 1, Weekday: calendar.Mon, Band: calendar.M1, TrainerID: &trainerID}}
		input.Enrollments[domain.EnrollmentKey{ClassID: 1, WorkshopID: 1}] = enrollment
		pre, err := preprocessor.New(input)
		assert.NoError(t, err)
		cp := cpmodel.NewCpModelBuilder()

		//**Act
		m, err := Build(cp, input, pre)

		//**Assert
		assert.NoError(t, err)
		mv := m.Meetings[MeetingID{ClassID: 1, WorkshopID: 1, Ordinal: 1}]
		assert.True(t, mv.Pinned)
		assert.Len(t, mv.Assignments, 1)
		assert.Equal(t, trainerID, mv.Assignments[0].TrainerID)
	})
}
