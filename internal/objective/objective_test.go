package objective

import (
	"testing"

	"github.com/stretchr/testify/assert"

	cpmodel "github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/oradea-labs/labsched/internal/calendar"
	"github.com/oradea-labs/labsched/internal/domain"
	"github.com/oradea-labs/labsched/internal/preprocessor"
	"github.com/oradea-labs/labsched/internal/variables"
)

func smallInput(t *testing.T) domain.ModelInput {
	t.Helper()
	raw := domain.RawModelInput{
		Schools: []domain.School{{ID: 1, Name: "North"}},
		Classes: []domain.Class{
			{ID: 1, Name: "3A", SchoolID: 1, Year: 5},
			{ID: 2, Name: "3B", SchoolID: 1},
		},
		Trainers: []domain.Trainer{{
			ID:                 1,
			TotalHourBudget:    40,
			AverageWeeklyHours: 4,
			MorningDays:        map[calendar.Weekday]bool{calendar.Mon: true, calendar.Tue: true, calendar.Wed: true},
			AfternoonDays:      map[calendar.Weekday]bool{calendar.Mon: true, calendar.Tue: true, calendar.Wed: true},
			HalfDayPreference:  domain.PreferMorning,
		}},
		Workshops: []domain.Workshop{{ID: 1, Name: "Robotics", DefaultMeetingCount: 2, HoursPerMeeting: 2}},
		Enrollments: []domain.Enrollment{
			{ClassID: 1, WorkshopID: 1},
			{ClassID: 2, WorkshopID: 1},
		},
		GroupingPreferences: []domain.GroupingPreference{{ClassA: 1, ClassB: 2}},
		Horizon:             domain.HorizonSpec{Weeks: 4},
	}
	input, err := domain.ProcessRawInput(raw)
	assert.NoError(t, err)
	return input
}

func TestBuild(t *testing.T) {
	t.Run("Build emits an objective without panicking", func(t *testing.T) {
		//**Arrange
		input := smallInput(t)
		pre, err := preprocessor.New(input)
		assert.NoError(t, err)
		cp := cpmodel.NewCpModelBuilder()
		vm, err := variables.Build(cp, input, pre)
		assert.NoError(t, err)

		//**Act + Assert
		assert.NotPanics(t, func() { Build(cp, input, vm, input.Weights) })
	})

	t.Run("Build with zeroed weights still returns an objective expression", func(t *testing.T) {
		//**Arrange
		input := smallInput(t)
		pre, err := preprocessor.New(input)
		assert.NoError(t, err)
		cp := cpmodel.NewCpModelBuilder()
		vm, err := variables.Build(cp, input, pre)
		assert.NoError(t, err)

		//**Act
		expr := Build(cp, input, vm, input.Weights.Zeroed())

		//**Assert
		assert.NotNil(t, expr)
	})
}
