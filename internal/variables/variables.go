// Package variables builds the CP-SAT decision variables for every
// meeting instance and every candidate grouping pair (spec.md §4.2).
//
// The teacher gives every admissible (period,day,lesson,subjectProfessor,
// group,room) tuple its own boolean SAT variable and lets the constraint
// compiler forbid or require combinations of those booleans (pkg/model/
// constraints.go). This package keeps that HOW: every meeting instance
// gets one boolean CP-SAT variable per admissible (slot, trainer)
// assignment, "exactly one of which is true" (H-COUNT folds into
// AddExactlyOne); week/weekday/band/trainer/date/slot are never
// represented as separate integer variables, they are *linear
// expressions* over those same booleans (Σ assign(m,a)·attribute(a)),
// which collapses to the single chosen attribute value once exactly one
// assignment boolean is true. This is the CP-SAT-native generalization of
// the teacher's per-tuple boolean, swapped in because this spec's
// objective (spec.md §4.3) needs native optimization support the
// teacher's plain-SAT backend does not have (see DESIGN.md).
package variables

import (
	"fmt"
	"sort"

	cpmodel "github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/oradea-labs/labsched/internal/calendar"
	"github.com/oradea-labs/labsched/internal/domain"
	"github.com/oradea-labs/labsched/internal/preprocessor"
	"github.com/oradea-labs/labsched/internal/schedulererr"
)

// MeetingID identifies one meeting instance: the k-th occurrence (1-based)
// of a (class, workshop) enrollment.
type MeetingID struct {
	ClassID    uint64
	WorkshopID uint64
	Ordinal    int
}

func (id MeetingID) String() string {
	return fmt.Sprintf("class=%d/workshop=%d#%d", id.ClassID, id.WorkshopID, id.Ordinal)
}

// Assignment is one admissible (slot, trainer) combination for a meeting.
type Assignment struct {
	Slot      preprocessor.Slot
	TrainerID uint64
}

// MeetingVars is the set of CP-SAT booleans backing one meeting instance,
// one per admissible assignment, plus the workshop it belongs to (needed
// by the objective and constraint compilers without a second lookup).
type MeetingVars struct {
	ID          MeetingID
	WorkshopID  uint64
	SchoolID    uint64
	Assignments []Assignment
	Vars        []cpmodel.BoolVar
	Pinned      bool
}

// WeekExpr returns Σ assign(m,a)·week(a): the chosen week, once solved.
func (mv *MeetingVars) WeekExpr() *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for i, a := range mv.Assignments {
		expr.AddTerm(mv.Vars[i], int64(a.Slot.Week))
	}
	return expr
}

// DateExpr returns Σ assign(m,a)·calendar.DateIndex(a).
func (mv *MeetingVars) DateExpr() *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for i, a := range mv.Assignments {
		expr.AddTerm(mv.Vars[i], int64(calendar.DateIndex(a.Slot.Week, a.Slot.Weekday)))
	}
	return expr
}

// SlotExpr returns Σ assign(m,a)·calendar.SlotIndex(a).
func (mv *MeetingVars) SlotExpr() *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for i, a := range mv.Assignments {
		expr.AddTerm(mv.Vars[i], int64(calendar.SlotIndex(a.Slot.Week, a.Slot.Weekday, a.Slot.Band)))
	}
	return expr
}

// WdayExpr returns Σ assign(m,a)·weekday(a), weekday encoded as its ordinal.
func (mv *MeetingVars) WdayExpr() *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for i, a := range mv.Assignments {
		expr.AddTerm(mv.Vars[i], int64(a.Slot.Weekday))
	}
	return expr
}

// BandExpr returns Σ assign(m,a)·band(a), band encoded as its ordinal.
func (mv *MeetingVars) BandExpr() *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for i, a := range mv.Assignments {
		expr.AddTerm(mv.Vars[i], int64(a.Slot.Band))
	}
	return expr
}

// TrainerExpr returns Σ assign(m,a)·trainerID(a).
func (mv *MeetingVars) TrainerExpr() *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for i, a := range mv.Assignments {
		expr.AddTerm(mv.Vars[i], int64(a.TrainerID))
	}
	return expr
}

// VarsForTrainer returns the assignment booleans of this meeting that use
// the given trainer, alongside the matching assignment.
func (mv *MeetingVars) VarsForTrainer(trainerID uint64) []cpmodel.BoolVar {
	var vars []cpmodel.BoolVar
	for i, a := range mv.Assignments {
		if a.TrainerID == trainerID {
			vars = append(vars, mv.Vars[i])
		}
	}
	return vars
}

// VarsForWeek returns the assignment booleans that land in the given week.
func (mv *MeetingVars) VarsForWeek(week int) []cpmodel.BoolVar {
	var vars []cpmodel.BoolVar
	for i, a := range mv.Assignments {
		if a.Slot.Week == week {
			vars = append(vars, mv.Vars[i])
		}
	}
	return vars
}

// VarsForTrainerSlot returns the assignment booleans that use the given
// trainer in the given physical slot.
func (mv *MeetingVars) VarsForTrainerSlot(trainerID uint64, slot preprocessor.Slot) []cpmodel.BoolVar {
	var vars []cpmodel.BoolVar
	for i, a := range mv.Assignments {
		if a.TrainerID == trainerID && a.Slot == slot {
			vars = append(vars, mv.Vars[i])
		}
	}
	return vars
}

// GroupKey identifies a candidate grouping pair, stored with the smaller
// MeetingID first so each pair is represented once.
type GroupKey struct {
	A, B MeetingID
}

func groupKey(m1, m2 MeetingID) GroupKey {
	if less(m2, m1) {
		m1, m2 = m2, m1
	}
	return GroupKey{A: m1, B: m2}
}

func less(a, b MeetingID) bool {
	if a.ClassID != b.ClassID {
		return a.ClassID < b.ClassID
	}
	if a.WorkshopID != b.WorkshopID {
		return a.WorkshopID < b.WorkshopID
	}
	return a.Ordinal < b.Ordinal
}

// Model is every CP-SAT variable this package builds, handed to the
// constraint and objective compilers.
type Model struct {
	CP       *cpmodel.Builder
	Input    domain.ModelInput
	Meetings map[MeetingID]*MeetingVars
	Order    []MeetingID // stable, sorted iteration order
	Groups   map[GroupKey]cpmodel.BoolVar
}

// Build constructs every meeting's assignment booleans and every eligible
// grouping pair's boolean (spec.md §4.2).
func Build(cp *cpmodel.Builder, input domain.ModelInput, pre *preprocessor.Preprocessor) (*Model, error) {
	m := &Model{
		CP:       cp,
		Input:    input,
		Meetings: make(map[MeetingID]*MeetingVars),
		Groups:   make(map[GroupKey]cpmodel.BoolVar),
	}

	keys := sortedEnrollmentKeys(input)
	for _, key := range keys {
		enrollment := input.Enrollments[key]
		for ordinal := 1; ordinal <= enrollment.RequiredCount; ordinal++ {
			mv, err := buildMeetingVars(cp, input, pre, key, enrollment, ordinal)
			if err != nil {
				return nil, err
			}
			m.Meetings[mv.ID] = mv
			m.Order = append(m.Order, mv.ID)
		}
	}

	buildGroupVars(cp, input, m)

	return m, nil
}

func sortedEnrollmentKeys(input domain.ModelInput) []domain.EnrollmentKey {
	keys := make([]domain.EnrollmentKey, 0, len(input.Enrollments))
	for k := range input.Enrollments {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ClassID != keys[j].ClassID {
			return keys[i].ClassID < keys[j].ClassID
		}
		return keys[i].WorkshopID < keys[j].WorkshopID
	})
	return keys
}

func pinFor(e domain.Enrollment, ordinal int) *domain.Pin {
	for i := range e.PinnedMeetings {
		if e.PinnedMeetings[i].Ordinal == ordinal {
			return &e.PinnedMeetings[i]
		}
	}
	return nil
}

func buildMeetingVars(
	cp *cpmodel.Builder,
	input domain.ModelInput,
	pre *preprocessor.Preprocessor,
	key domain.EnrollmentKey,
	enrollment domain.Enrollment,
	ordinal int,
) (*MeetingVars, error) {
	id := MeetingID{ClassID: key.ClassID, WorkshopID: key.WorkshopID, Ordinal: ordinal}
	class := input.Classes[key.ClassID]

	pin := pinFor(enrollment, ordinal)

	var assignments []Assignment
	if pin != nil {
		// H-PIN: the pin wins regardless of trainer-mask availability.
		slot := preprocessor.Slot{Week: pin.Week, Weekday: pin.Weekday, Band: pin.Band}
		if pin.TrainerID != nil {
			assignments = []Assignment{{Slot: slot, TrainerID: *pin.TrainerID}}
		} else {
			for _, trainerID := range input.EligibleTrainers(enrollment) {
				if pre.TrainerMask(trainerID)(slot) {
					assignments = append(assignments, Assignment{Slot: slot, TrainerID: trainerID})
				}
			}
		}
	} else {
		slots := pre.EnrollmentDomain(key)
		trainerIDs := input.EligibleTrainers(enrollment)
		for _, slot := range slots {
			for _, trainerID := range trainerIDs {
				if pre.TrainerMask(trainerID)(slot) {
					assignments = append(assignments, Assignment{Slot: slot, TrainerID: trainerID})
				}
			}
		}
	}

	if len(assignments) == 0 {
		return nil, &schedulererr.DomainEmptyError{
			ClassID:    key.ClassID,
			WorkshopID: key.WorkshopID,
			Ordinal:    ordinal,
			Reason:     "no (slot, trainer) combination survives trainer-availability intersection",
		}
	}

	bvs := make([]cpmodel.BoolVar, len(assignments))
	for i, a := range assignments {
		bvs[i] = cp.NewBoolVar().WithName(fmt.Sprintf("assign[%v|w%d_%v_%v|t%d]", id, a.Slot.Week, a.Slot.Weekday, a.Slot.Band, a.TrainerID))
	}
	cp.AddExactlyOne(bvs...) // H-COUNT, folded per-meeting

	return &MeetingVars{
		ID:          id,
		WorkshopID:  key.WorkshopID,
		SchoolID:    class.SchoolID,
		Assignments: assignments,
		Vars:        bvs,
		Pinned:      pin != nil,
	}, nil
}

// buildGroupVars creates group(m1, m2) for every eligible candidate pair:
// same school, same workshop, same ordinal, compatible fixed trainers, and
// a non-empty slot intersection (spec.md §4.2).
func buildGroupVars(cp *cpmodel.Builder, input domain.ModelInput, m *Model) {
	type bucketKey struct {
		Workshop uint64
		Ordinal  int
	}
	buckets := make(map[bucketKey][]MeetingID)
	for _, id := range m.Order {
		key := bucketKey{Workshop: id.WorkshopID, Ordinal: id.Ordinal}
		buckets[key] = append(buckets[key], id)
	}

	for _, ids := range buckets {
		for i := 0; i < len(ids)-1; i++ {
			for j := i + 1; j < len(ids); j++ {
				id1, id2 := ids[i], ids[j]
				if id1.ClassID == id2.ClassID {
					continue
				}
				mv1, mv2 := m.Meetings[id1], m.Meetings[id2]
				if mv1.SchoolID != mv2.SchoolID {
					continue
				}
				if !slotsIntersect(mv1, mv2) {
					continue
				}

				key := groupKey(id1, id2)
				if _, ok := m.Groups[key]; ok {
					continue
				}
				bv := cp.NewBoolVar().WithName(fmt.Sprintf("group[%v~%v]", key.A, key.B))
				m.Groups[key] = bv
			}
		}
	}
}

func slotsIntersect(a, b *MeetingVars) bool {
	slotsA := make(map[preprocessor.Slot]bool, len(a.Assignments))
	for _, asg := range a.Assignments {
		slotsA[asg.Slot] = true
	}
	for _, asg := range b.Assignments {
		if slotsA[asg.Slot] {
			return true
		}
	}
	return false
}

// PairVar looks up the group boolean for an unordered meeting pair, if one
// was built.
func (m *Model) PairVar(a, b MeetingID) (cpmodel.BoolVar, bool) {
	key := GroupKey{A: a, B: b}
	if less(b, a) {
		key = GroupKey{A: b, B: a}
	}
	bv, ok := m.Groups[key]
	return bv, ok
}
