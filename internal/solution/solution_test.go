package solution

import (
	"testing"
	"time"

	. "github.com/onsi/gomega"

	cpmodel "github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/oradea-labs/labsched/internal/calendar"
	"github.com/oradea-labs/labsched/internal/constraints"
	"github.com/oradea-labs/labsched/internal/domain"
	"github.com/oradea-labs/labsched/internal/objective"
	"github.com/oradea-labs/labsched/internal/preprocessor"
	"github.com/oradea-labs/labsched/internal/search"
	"github.com/oradea-labs/labsched/internal/variables"
)

func groupableInput(t *testing.T) domain.ModelInput {
	t.Helper()
	raw := domain.RawModelInput{
		Schools: []domain.School{{ID: 1, Name: "North"}},
		Classes: []domain.Class{
			{ID: 1, Name: "3A", SchoolID: 1},
			{ID: 2, Name: "3B", SchoolID: 1},
		},
		Trainers: []domain.Trainer{{
			ID:              1,
			TotalHourBudget: 40,
			MorningDays:     map[calendar.Weekday]bool{calendar.Mon: true, calendar.Tue: true, calendar.Wed: true},
			AfternoonDays:   map[calendar.Weekday]bool{calendar.Mon: true, calendar.Tue: true, calendar.Wed: true},
		}},
		Workshops: []domain.Workshop{{ID: 1, Name: "Robotics", DefaultMeetingCount: 1, HoursPerMeeting: 2}},
		Enrollments: []domain.Enrollment{
			{ClassID: 1, WorkshopID: 1},
			{ClassID: 2, WorkshopID: 1},
		},
		Horizon: domain.HorizonSpec{Weeks: 2},
	}
	input, err := domain.ProcessRawInput(raw)
	Expect(err).NotTo(HaveOccurred())
	return input
}

func TestExtract(t *testing.T) {
	RegisterTestingT(t)

	//**Arrange
	input := groupableInput(t)
	pre, err := preprocessor.New(input)
	Expect(err).NotTo(HaveOccurred())
	cp := cpmodel.NewCpModelBuilder()
	vm, err := variables.Build(cp, input, pre)
	Expect(err).NotTo(HaveOccurred())
	constraints.Compile(cp, input, vm)
	objective.Build(cp, input, vm, input.Weights)

	result, err := search.Run(cp, vm, search.Config{TimeLimit: 5 * time.Second, NumWorkers: 1, Seed: 1})
	Expect(err).NotTo(HaveOccurred())
	Expect(result.Status).To(Or(Equal(search.StatusOptimal), Equal(search.StatusFeasible)))

	//**Act
	calendarOut := Extract(result.Response, input, vm)

	//**Assert
	Expect(calendarOut.Meetings).To(HaveLen(2))
	Expect(calendarOut.Report.Trainers).To(HaveLen(1))
	Expect(calendarOut.Report.Enrollments).To(HaveLen(2))
	for _, e := range calendarOut.Report.Enrollments {
		Expect(e.CompletedCount).To(Equal(e.RequiredCount))
	}
}
