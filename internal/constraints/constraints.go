// Package constraints compiles the hard-constraint catalogue (spec.md
// §4.3) into a cpmodel.Builder already populated by internal/variables.
//
// Several catalogue entries never need a constraint emitted here at all:
// H-COUNT, H-PIN, H-WINDOW, H-BAND-ALLOWED, H-WEEKDAY-ALLOWED, H-BLACKOUT,
// H-TRAINER-AVAIL, H-SATURDAY and H-EXTERNAL-BLOCK are folded into the
// admissible-assignment enumeration the preprocessor and variable builder
// already perform: an assignment boolean simply does not exist for a
// (meeting, slot, trainer) combination that would violate one of them. This
// mirrors the teacher's own domain-pruning approach in
// permutations_generator_implementation.go, applied one level earlier than
// the teacher applies it. The remaining entries are relations *between*
// meetings and are emitted below, one function per catalogue id, fanned
// out over goroutines into the shared builder the way the teacher's
// buildSat in timetabler_utils.go fans constraint functions out over a
// channel — cpmodel.Builder is not internally synchronized the way the
// teacher's clause slice append was, so a mutex replaces the channel
// collection step.
package constraints

import (
	"sort"
	"sync"

	cpmodel "github.com/google/or-tools/ortools/sat/go/cpmodel"
	"github.com/samber/lo"

	"github.com/oradea-labs/labsched/internal/domain"
	"github.com/oradea-labs/labsched/internal/variables"
)

// state bundles everything a catalogue function needs, the way the
// teacher's constraintState bundles modelInput/indexer/evaluator for its
// constraint functions.
type state struct {
	cp    *cpmodel.Builder
	mu    *sync.Mutex
	input domain.ModelInput
	vars  *variables.Model
}

// Compile emits every relational hard constraint in the catalogue.
func Compile(cp *cpmodel.Builder, input domain.ModelInput, vm *variables.Model) {
	st := state{cp: cp, mu: &sync.Mutex{}, input: input, vars: vm}

	fns := []func(state){
		classUniqueness,  // H-CLASS-UNIQ
		noOverlap,        // H-NO-OVERLAP
		budget,           // H-BUDGET
		mustBeLast,       // H-LAST
		precedence,       // H-PRECEDE
		sequence,         // H-SEQUENCE
		autonomousGap,    // H-GAP-AUTONOMOUS
		afternoonCount,   // H-AFTERNOON-COUNT
		groupCap,         // H-GROUP-CAP
		groupCoupling,    // H-GROUP-COUPLING
	}

	var wg sync.WaitGroup
	wg.Add(len(fns))
	for _, fn := range fns {
		go func(fn func(state)) {
			defer wg.Done()
			fn(st)
		}(fn)
	}
	wg.Wait()
}

// classUniqueness implements H-CLASS-UNIQ: for each (class, week), at most
// one of that class's own meetings may land there. Grouping never creates
// a second meeting within the *same* class's own week count, since a
// candidate grouping pair is always between meetings of two different
// classes (internal/variables.buildGroupVars skips same-class pairs), so a
// plain at-most-one over the class's own meeting-assignment booleans
// sharing a week is sufficient.
func classUniqueness(st state) {
	type bucket struct {
		ClassID uint64
		Week    int
	}
	buckets := make(map[bucket][]cpmodel.BoolVar)
	for _, id := range st.vars.Order {
		mv := st.vars.Meetings[id]
		weeks := lo.Uniq(lo.Map(mv.Assignments, func(a variables.Assignment, _ int) int { return a.Slot.Week }))
		for _, week := range weeks {
			key := bucket{ClassID: id.ClassID, Week: week}
			buckets[key] = append(buckets[key], mv.VarsForWeek(week)...)
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, bvs := range buckets {
		if len(bvs) > 1 {
			st.cp.AddAtMostOne(bvs...)
		}
	}
}

// noOverlap implements H-NO-OVERLAP: for each (trainer, physical slot), at
// most one meeting occupies it, unless the two meetings occupying it are
// linked by a realized group(.,.). Bucketing by (trainer, slot) first
// applies the optimization the teacher's own uniquenessConstraints TODO
// suggests instead of an exhaustive cross product over every meeting pair.
func noOverlap(st state) {
	type bucket struct {
		TrainerID uint64
		Slot      int // slotOrdinal
	}
	type entry struct {
		id variables.MeetingID
		bv cpmodel.BoolVar
	}
	buckets := make(map[bucket][]entry)
	for _, id := range st.vars.Order {
		mv := st.vars.Meetings[id]
		for i, a := range mv.Assignments {
			key := bucket{TrainerID: a.TrainerID, Slot: slotOrdinal(a)}
			buckets[key] = append(buckets[key], entry{id: id, bv: mv.Vars[i]})
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, entries := range buckets {
		for i := 0; i < len(entries)-1; i++ {
			for j := i + 1; j < len(entries); j++ {
				e1, e2 := entries[i], entries[j]
				if groupVar, ok := st.vars.PairVar(e1.id, e2.id); ok {
					st.cp.AddBoolOr(e1.bv.Not(), e2.bv.Not()).OnlyEnforceIf(groupVar.Not())
				} else {
					st.cp.AddBoolOr(e1.bv.Not(), e2.bv.Not())
				}
			}
		}
	}
}

func slotOrdinal(a variables.Assignment) int {
	return a.Slot.Week*100 + int(a.Slot.Weekday)*10 + int(a.Slot.Band)
}

// budget implements H-BUDGET: Σ hours over a trainer's assignments, minus
// one meeting's hours per realized group pair sharing that trainer, ≤
// total-hour-budget. Workshops in a grouping pair are always the same
// workshop (internal/variables.buildGroupVars buckets by workshop and
// ordinal), so their hours-per-meeting are identical and either side can be
// subtracted.
func budget(st state) {
	byTrainer := make(map[uint64]*cpmodel.LinearExpr)
	trainerOf := func(id uint64) *cpmodel.LinearExpr {
		if e, ok := byTrainer[id]; ok {
			return e
		}
		e := cpmodel.NewLinearExpr()
		byTrainer[id] = e
		return e
	}

	scale := func(hours float64) int64 { return int64(hours * 10) } // tenths of an hour

	for _, id := range st.vars.Order {
		mv := st.vars.Meetings[id]
		hours := st.input.Workshops[id.WorkshopID].HoursPerMeeting
		for i, a := range mv.Assignments {
			trainerOf(a.TrainerID).AddTerm(mv.Vars[i], scale(hours))
		}
	}

	for key, groupVar := range st.vars.Groups {
		mv1 := st.vars.Meetings[key.A]
		hours := st.input.Workshops[key.A.WorkshopID].HoursPerMeeting
		// The trainer is whichever one the realized assignment picks, so
		// for every trainer either meeting could use, a "shared" boolean
		// can only be true when the pair is realized and meeting A uses
		// that trainer (H-GROUP-COUPLING then puts meeting B on it too);
		// only that trainer's double count is cancelled.
		trainers := lo.Uniq(append(
			lo.Map(mv1.Assignments, func(a variables.Assignment, _ int) uint64 { return a.TrainerID }),
			lo.Map(st.vars.Meetings[key.B].Assignments, func(a variables.Assignment, _ int) uint64 { return a.TrainerID })...,
		))
		for _, t := range trainers {
			st.mu.Lock()
			shared := st.cp.NewBoolVar()
			st.cp.AddImplication(shared, groupVar)
			st.cp.AddBoolOr(mv1.VarsForTrainer(t)...).OnlyEnforceIf(shared)
			st.mu.Unlock()
			trainerOf(t).AddTerm(shared, -scale(hours))
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for trainerID, expr := range byTrainer {
		budget := st.input.Trainers[trainerID].TotalHourBudget
		st.cp.AddLessOrEqual(expr, cpmodel.NewConstant(scale(budget)))
	}
}

// mustBeLast implements H-LAST: the flagged workshop's meeting lands
// strictly after every other covered workshop's meetings, for the same
// class.
func mustBeLast(st state) {
	byClass := make(map[uint64][]variables.MeetingID)
	for _, id := range st.vars.Order {
		byClass[id.ClassID] = append(byClass[id.ClassID], id)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for classID, ids := range byClass {
		lastIDs := lo.Filter(ids, func(id variables.MeetingID, _ int) bool {
			return st.input.Workshops[id.WorkshopID].MustBeLast
		})
		if len(lastIDs) == 0 {
			continue
		}
		others := lo.Filter(ids, func(id variables.MeetingID, _ int) bool {
			return !st.input.Workshops[id.WorkshopID].MustBeLast
		})
		for _, lastID := range lastIDs {
			lastWeek := st.vars.Meetings[lastID].WeekExpr()
			for _, otherID := range others {
				if otherID.ClassID != classID {
					continue
				}
				otherWeek := st.vars.Meetings[otherID].WeekExpr()
				st.cp.AddGreaterThan(lastWeek, otherWeek)
			}
		}
	}
}

// precedence implements H-PRECEDE: for every configured (before, after)
// workshop pair, and every class enrolled in both, the before-workshop's
// last meeting precedes the after-workshop's first.
func precedence(st state) {
	byClassWorkshop := make(map[domain.EnrollmentKey][]variables.MeetingID)
	for _, id := range st.vars.Order {
		key := domain.EnrollmentKey{ClassID: id.ClassID, WorkshopID: id.WorkshopID}
		byClassWorkshop[key] = append(byClassWorkshop[key], id)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, rule := range st.input.PrecedenceRules {
		for key, class := range st.input.Classes {
			beforeIDs := byClassWorkshop[domain.EnrollmentKey{ClassID: key, WorkshopID: rule.BeforeWorkshopID}]
			afterIDs := byClassWorkshop[domain.EnrollmentKey{ClassID: key, WorkshopID: rule.AfterWorkshopID}]
			if len(beforeIDs) == 0 || len(afterIDs) == 0 {
				continue
			}
			_ = class
			lastBefore := maxOrdinal(beforeIDs)
			firstAfter := minOrdinal(afterIDs)
			st.cp.AddLessThan(st.vars.Meetings[lastBefore].WeekExpr(), st.vars.Meetings[firstAfter].WeekExpr())
		}
	}
}

func maxOrdinal(ids []variables.MeetingID) variables.MeetingID {
	best := ids[0]
	for _, id := range ids[1:] {
		if id.Ordinal > best.Ordinal {
			best = id
		}
	}
	return best
}

func minOrdinal(ids []variables.MeetingID) variables.MeetingID {
	best := ids[0]
	for _, id := range ids[1:] {
		if id.Ordinal < best.Ordinal {
			best = id
		}
	}
	return best
}

// sequence implements H-SEQUENCE: within an enrollment, meeting ordinals
// are strictly date-ordered.
func sequence(st state) {
	byEnrollment := make(map[domain.EnrollmentKey][]variables.MeetingID)
	for _, id := range st.vars.Order {
		key := domain.EnrollmentKey{ClassID: id.ClassID, WorkshopID: id.WorkshopID}
		byEnrollment[key] = append(byEnrollment[key], id)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, ids := range byEnrollment {
		sort.Slice(ids, func(i, j int) bool { return ids[i].Ordinal < ids[j].Ordinal })
		for k := 0; k < len(ids)-1; k++ {
			st.cp.AddLessThan(st.vars.Meetings[ids[k]].DateExpr(), st.vars.Meetings[ids[k+1]].DateExpr())
		}
	}
}

// autonomousGap implements H-GAP-AUTONOMOUS: for the flagged workshop in
// the flagged schools, week(meeting 3) ≥ week(meeting 2) + 2, matching
// domain.ProcessRawInput's reduction of the emitted meeting count by one
// for the same enrollments.
func autonomousGap(st state) {
	byEnrollment := make(map[domain.EnrollmentKey][]variables.MeetingID)
	for _, id := range st.vars.Order {
		key := domain.EnrollmentKey{ClassID: id.ClassID, WorkshopID: id.WorkshopID}
		byEnrollment[key] = append(byEnrollment[key], id)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for key, ids := range byEnrollment {
		workshop := st.input.Workshops[key.WorkshopID]
		if !workshop.AutonomousGap {
			continue
		}
		class := st.input.Classes[key.ClassID]
		if len(workshop.AutonomousGapSchools) > 0 && !lo.Contains(workshop.AutonomousGapSchools, class.SchoolID) {
			continue
		}
		if len(ids) < 3 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].Ordinal < ids[j].Ordinal })
		second := st.vars.Meetings[ids[1]].WeekExpr()
		third := st.vars.Meetings[ids[2]].WeekExpr()
		threshold := cpmodel.NewLinearExpr().Add(second).AddConstant(2)
		st.cp.AddGreaterOrEqual(third, threshold)
	}
}

// afternoonCount implements H-AFTERNOON-COUNT (domain.DetailAfternoonCount):
// exactly Detail.AfternoonCount of an enrollment's meetings must land in the
// afternoon band, and when Detail.NonConsecutive is set no two of those
// afternoon meetings may fall in consecutive weeks (original_source's
// special_rules.py SP03). Unlike DetailHalfDay this never restricts the
// preprocessor's per-meeting domain: which specific meetings end up
// afternoon is the solver's choice, so every meeting keeps its full
// (week, weekday, band) domain and only the aggregate count and spacing are
// constrained here.
func afternoonCount(st state) {
	byEnrollment := make(map[domain.EnrollmentKey][]variables.MeetingID)
	for _, id := range st.vars.Order {
		key := domain.EnrollmentKey{ClassID: id.ClassID, WorkshopID: id.WorkshopID}
		byEnrollment[key] = append(byEnrollment[key], id)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for key, ids := range byEnrollment {
		enrollment := st.input.Enrollments[key]
		if enrollment.Detail.Kind != domain.DetailAfternoonCount {
			continue
		}

		afternoonVars := make([]cpmodel.BoolVar, len(ids))
		sumExpr := cpmodel.NewLinearExpr()
		for i, id := range ids {
			mv := st.vars.Meetings[id]
			afternoonExpr := cpmodel.NewLinearExpr()
			for j, a := range mv.Assignments {
				if !a.Slot.Band.IsMorning() {
					afternoonExpr.AddTerm(mv.Vars[j], 1)
				}
			}
			afternoonVar := st.cp.NewBoolVar()
			st.cp.AddEquality(afternoonExpr, cpmodel.NewConstant(1)).OnlyEnforceIf(afternoonVar)
			st.cp.AddEquality(afternoonExpr, cpmodel.NewConstant(0)).OnlyEnforceIf(afternoonVar.Not())
			afternoonVars[i] = afternoonVar
			sumExpr.AddTerm(afternoonVar, 1)
		}

		st.cp.AddEquality(sumExpr, cpmodel.NewConstant(int64(enrollment.Detail.AfternoonCount)))

		if !enrollment.Detail.NonConsecutive {
			continue
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				weekI := st.vars.Meetings[ids[i]].WeekExpr()
				weekJ := st.vars.Meetings[ids[j]].WeekExpr()
				before := st.cp.NewBoolVar() // weekJ >= weekI + 2
				after := st.cp.NewBoolVar()  // weekI >= weekJ + 2
				st.cp.AddGreaterOrEqual(weekJ, cpmodel.NewLinearExpr().Add(weekI).AddConstant(2)).OnlyEnforceIf(before)
				st.cp.AddGreaterOrEqual(weekI, cpmodel.NewLinearExpr().Add(weekJ).AddConstant(2)).OnlyEnforceIf(after)
				// before ∨ after ∨ ¬afternoon(i) ∨ ¬afternoon(j): only binds
				// the spacing requirement once both meetings are afternoon.
				st.cp.AddBoolOr(before, after, afternoonVars[i].Not(), afternoonVars[j].Not())
			}
		}
	}
}

// groupCap implements H-GROUP-CAP: every meeting has at most one realized
// grouping partner.
func groupCap(st state) {
	byMeeting := make(map[variables.MeetingID][]cpmodel.BoolVar)
	for key, groupVar := range st.vars.Groups {
		byMeeting[key.A] = append(byMeeting[key.A], groupVar)
		byMeeting[key.B] = append(byMeeting[key.B], groupVar)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for _, bvs := range byMeeting {
		if len(bvs) > 1 {
			st.cp.AddAtMostOne(bvs...)
		}
	}
}

// groupCoupling implements H-GROUP-COUPLING: group(m1,m2)=1 implies the
// two meetings share week, weekday, band and trainer. Implemented as a
// reified implication (not equality elimination) so the solver can still
// choose group=0 (spec.md "Tie-breaks and edge cases").
func groupCoupling(st state) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for key, groupVar := range st.vars.Groups {
		mv1, mv2 := st.vars.Meetings[key.A], st.vars.Meetings[key.B]
		st.cp.AddEquality(mv1.WeekExpr(), mv2.WeekExpr()).OnlyEnforceIf(groupVar)
		st.cp.AddEquality(mv1.WdayExpr(), mv2.WdayExpr()).OnlyEnforceIf(groupVar)
		st.cp.AddEquality(mv1.BandExpr(), mv2.BandExpr()).OnlyEnforceIf(groupVar)
		st.cp.AddEquality(mv1.TrainerExpr(), mv2.TrainerExpr()).OnlyEnforceIf(groupVar)
	}
}
