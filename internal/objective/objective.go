// Package objective builds the weighted soft-objective sum (spec.md §4.3
// "Soft constraints") and hands it to cpmodel.Builder.Minimize.
//
// Objective terms fall into two shapes. Ground-truth terms are already a
// property of a single assignment boolean — band, week and trainer are
// baked into the assignment itself, so the term is just a weighted sum
// over the existing assign-vars, no new variable needed. Relational terms
// compare two or more meetings (same class, same trainer, same week) and
// need a fresh indicator boolean, reified one-directionally in whichever
// direction prevents the solver from gaming the objective: a bonus
// indicator is pinned true-implies-condition (can't claim a bonus it
// didn't earn), a penalty indicator is pinned condition-implies-true (can't
// dodge a penalty it owes). This is the standard indicator relaxation for
// linear objectives. O-BAND-VAR's indicator is additionally pinned in the
// other direction, so it is true exactly when its condition holds.
package objective

import (
	"sort"

	cpmodel "github.com/google/or-tools/ortools/sat/go/cpmodel"

	"github.com/oradea-labs/labsched/internal/domain"
	"github.com/oradea-labs/labsched/internal/variables"
)

// symmetryScale dwarfs the largest plausible weighted-sum swing so the
// tie-break term added in Build can never outweigh a real cost difference
// between two solutions — it only distinguishes among solutions the named
// weights already judge equal (spec.md §4.4 symmetry-breaking rule).
const symmetryScale = 1 << 16

// Build emits every O-* term into the builder's objective, adds the §4.4
// grouping symmetry-break beneath it, and returns the combined expression
// (exposed for tests and for the diagnostic zero-weight retry, which
// rebuilds it with domain.Weights.Zeroed()).
func Build(cp *cpmodel.Builder, input domain.ModelInput, vm *variables.Model, weights domain.Weights) *cpmodel.LinearExpr {
	total := cpmodel.NewLinearExpr()

	total.Add(group(cp, vm, weights.Group))
	total.Add(continuity(cp, input, vm, weights.Continuity))
	total.Add(prefGroup(cp, input, vm, weights.PrefGroup))
	total.Add(year5Early(input, vm, weights.Year5Early))
	total.Add(seqPref(cp, input, vm, weights.SeqPref))
	total.Add(bandVar(cp, vm, weights.BandVar))
	total.Add(loadBalance(cp, input, vm, weights.LoadBal))
	total.Add(weeklyHours(cp, input, vm, weights.WeeklyHrs))
	total.Add(timePref(input, vm, weights.TimePref))
	total.Add(lateMay(input, vm, weights.LateMay))

	scaled := cpmodel.NewLinearExpr().AddTerm(total, symmetryScale)
	scaled.Add(groupSymmetryBreak(vm))

	cp.Minimize(scaled)
	return scaled
}

// groupSymmetryBreak is the §4.4 tie-break: among grouping solutions of
// equal weighted cost, prefer the one using the lexicographically smaller
// (class-id-1, class-id-2) tuple among realized group(.,.) pairs. Ranked by
// sorted tuple order rather than the raw class ids themselves, so the
// epsilon stays small and bounded regardless of how large ids get.
func groupSymmetryBreak(vm *variables.Model) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	keys := make([]variables.GroupKey, 0, len(vm.Groups))
	for key := range vm.Groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].A.ClassID != keys[j].A.ClassID {
			return keys[i].A.ClassID < keys[j].A.ClassID
		}
		return keys[i].B.ClassID < keys[j].B.ClassID
	})
	for rank, key := range keys {
		expr.AddTerm(vm.Groups[key], int64(rank))
	}
	return expr
}

// group is O-GROUP: −weight · Σ all group(⋅,⋅) variables.
func group(cp *cpmodel.Builder, vm *variables.Model, weight int64) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for _, bv := range vm.Groups {
		expr.AddTerm(bv, -weight)
	}
	return expr
}

// continuity is O-CONTINUITY: weight · Σ_class (distinct trainers used − 1).
// usesVar(class, trainer) is forced true whenever any assignment of that
// class with that trainer is chosen (penalty-style: condition ⟹ var=1).
func continuity(cp *cpmodel.Builder, input domain.ModelInput, vm *variables.Model, weight int64) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	type key struct {
		ClassID   uint64
		TrainerID uint64
	}
	uses := make(map[key]cpmodel.BoolVar)
	classesWithMeetings := make(map[uint64]bool)

	for _, id := range vm.Order {
		classesWithMeetings[id.ClassID] = true
		mv := vm.Meetings[id]
		for i, a := range mv.Assignments {
			k := key{ClassID: id.ClassID, TrainerID: a.TrainerID}
			usesVar, ok := uses[k]
			if !ok {
				usesVar = cp.NewBoolVar()
				uses[k] = usesVar
			}
			cp.AddImplication(mv.Vars[i], usesVar)
		}
	}

	perClass := make(map[uint64]*cpmodel.LinearExpr)
	for k, usesVar := range uses {
		e, ok := perClass[k.ClassID]
		if !ok {
			e = cpmodel.NewLinearExpr()
			perClass[k.ClassID] = e
		}
		e.Add(usesVar)
	}
	for classID := range classesWithMeetings {
		e, ok := perClass[classID]
		if !ok {
			continue
		}
		expr.Add(e)
		expr.AddConstant(-1)
	}
	return cpmodel.NewLinearExpr().AddTerm(expr, weight)
}

// prefGroup is O-PREF-GROUP: −weight · Σ group(m1,m2) over preferred pairs.
func prefGroup(cp *cpmodel.Builder, input domain.ModelInput, vm *variables.Model, weight int64) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	preferred := make(map[[2]uint64]bool)
	for _, gp := range input.GroupingPreferences {
		preferred[[2]uint64{gp.ClassA, gp.ClassB}] = true
		preferred[[2]uint64{gp.ClassB, gp.ClassA}] = true
	}
	for key, bv := range vm.Groups {
		if preferred[[2]uint64{key.A.ClassID, key.B.ClassID}] {
			expr.AddTerm(bv, -weight)
		}
	}
	return expr
}

// year5Early is O-YEAR5-EARLY: weight · Σ week(m) for year-5 classes'
// meetings. Ground truth: WeekExpr already resolves to the chosen week.
func year5Early(input domain.ModelInput, vm *variables.Model, weight int64) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for _, id := range vm.Order {
		if input.Classes[id.ClassID].Year != 5 {
			continue
		}
		expr.AddTerm(vm.Meetings[id].WeekExpr(), weight)
	}
	return expr
}

// seqPref is O-SEQ-PREF: −weight · number of classes whose per-workshop
// last-meeting weeks are strictly increasing in the configured preferred
// sequence order, restricted to the workshops the class is actually
// enrolled in.
func seqPref(cp *cpmodel.Builder, input domain.ModelInput, vm *variables.Model, weight int64) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	if len(input.PreferredSequence) < 2 {
		return expr
	}

	lastMeetingWeek := make(map[domain.EnrollmentKey]*cpmodel.LinearExpr)
	byEnrollment := make(map[domain.EnrollmentKey][]variables.MeetingID)
	for _, id := range vm.Order {
		key := domain.EnrollmentKey{ClassID: id.ClassID, WorkshopID: id.WorkshopID}
		byEnrollment[key] = append(byEnrollment[key], id)
	}
	for key, ids := range byEnrollment {
		best := ids[0]
		for _, id := range ids[1:] {
			if id.Ordinal > best.Ordinal {
				best = id
			}
		}
		lastMeetingWeek[key] = vm.Meetings[best].WeekExpr()
	}

	for classID := range input.Classes {
		var enrolledWeeks []*cpmodel.LinearExpr
		for _, workshopID := range input.PreferredSequence {
			if w, ok := lastMeetingWeek[domain.EnrollmentKey{ClassID: classID, WorkshopID: workshopID}]; ok {
				enrolledWeeks = append(enrolledWeeks, w)
			}
		}
		var pairOKs []cpmodel.BoolVar
		for i := 0; i < len(enrolledWeeks)-1; i++ {
			pairOK := cp.NewBoolVar()
			cp.AddLessThan(enrolledWeeks[i], enrolledWeeks[i+1]).OnlyEnforceIf(pairOK)
			pairOKs = append(pairOKs, pairOK)
		}
		if len(pairOKs) == 0 {
			continue
		}
		seqMatch := cp.NewBoolVar()
		for _, pairOK := range pairOKs {
			cp.AddImplication(seqMatch, pairOK)
		}
		expr.AddTerm(seqMatch, -weight)
	}
	return expr
}

// bandVar is O-BAND-VAR: weight · number of (class, consecutive-week-pair)
// where both meetings share the same band. The indicator is pinned both
// ways: true ⟹ both sub-conditions hold, and every pair of assignments that
// puts the two meetings in consecutive weeks on the same band forces it
// true, so the penalty cannot be dodged.
func bandVar(cp *cpmodel.Builder, vm *variables.Model, weight int64) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	byClass := make(map[uint64][]variables.MeetingID)
	for _, id := range vm.Order {
		byClass[id.ClassID] = append(byClass[id.ClassID], id)
	}
	for _, ids := range byClass {
		for i := 0; i < len(ids); i++ {
			for j := 0; j < len(ids); j++ {
				if i == j {
					continue
				}
				mv1, mv2 := vm.Meetings[ids[i]], vm.Meetings[ids[j]]
				indicator := cp.NewBoolVar()
				weekDiff := cpmodel.NewLinearExpr().Add(mv2.WeekExpr()).AddTerm(mv1.WeekExpr(), -1)
				cp.AddEquality(weekDiff, cpmodel.NewConstant(1)).OnlyEnforceIf(indicator)
				cp.AddEquality(mv1.BandExpr(), mv2.BandExpr()).OnlyEnforceIf(indicator)
				for a, x := range mv1.Assignments {
					for b, y := range mv2.Assignments {
						if y.Slot.Week == x.Slot.Week+1 && y.Slot.Band == x.Slot.Band {
							cp.AddBoolOr(mv1.Vars[a].Not(), mv2.Vars[b].Not(), indicator)
						}
					}
				}
				expr.AddTerm(indicator, weight)
			}
		}
	}
	return expr
}

// loadBalance is O-LOAD-BAL: weight · Σ over trainers of Σ over adjacent
// week pairs |hours(t,w+1) − hours(t,w)|, a bounded proxy for variance
// across the horizon's weeks.
func loadBalance(cp *cpmodel.Builder, input domain.ModelInput, vm *variables.Model, weight int64) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	weeklyHoursByTrainer := make(map[uint64]map[int]*cpmodel.LinearExpr)

	for _, id := range vm.Order {
		mv := vm.Meetings[id]
		hours := input.Workshops[id.WorkshopID].HoursPerMeeting
		for i, a := range mv.Assignments {
			byWeek, ok := weeklyHoursByTrainer[a.TrainerID]
			if !ok {
				byWeek = make(map[int]*cpmodel.LinearExpr)
				weeklyHoursByTrainer[a.TrainerID] = byWeek
			}
			e, ok := byWeek[a.Slot.Week]
			if !ok {
				e = cpmodel.NewLinearExpr()
				byWeek[a.Slot.Week] = e
			}
			e.AddTerm(mv.Vars[i], int64(hours*10))
		}
	}

	weeks := input.Horizon.Weeks
	for trainerID, byWeek := range weeklyHoursByTrainer {
		_ = trainerID
		for w := 0; w < weeks-1; w++ {
			e1, ok1 := byWeek[w]
			e2, ok2 := byWeek[w+1]
			if !ok1 && !ok2 {
				continue
			}
			if !ok1 {
				e1 = cpmodel.NewLinearExpr()
			}
			if !ok2 {
				e2 = cpmodel.NewLinearExpr()
			}
			diff := cpmodel.NewLinearExpr().Add(e2).AddTerm(e1, -1)
			absDiff := cp.NewIntVar(0, 1<<20)
			cp.AddAbsEquality(absDiff, diff)
			expr.AddTerm(absDiff, weight)
		}
	}
	return expr
}

// weeklyHours is O-WKLY-HRS: weight · Σ_t |totalHours(t) − target(t)·W|,
// scaled by the horizon length instead of dividing (CP-SAT integer
// division would need an auxiliary variable for no added precision here).
func weeklyHours(cp *cpmodel.Builder, input domain.ModelInput, vm *variables.Model, weight int64) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	total := make(map[uint64]*cpmodel.LinearExpr)
	for _, id := range vm.Order {
		mv := vm.Meetings[id]
		hours := input.Workshops[id.WorkshopID].HoursPerMeeting
		for i, a := range mv.Assignments {
			e, ok := total[a.TrainerID]
			if !ok {
				e = cpmodel.NewLinearExpr()
				total[a.TrainerID] = e
			}
			e.AddTerm(mv.Vars[i], int64(hours*10))
		}
	}

	trainerIDs := make([]uint64, 0, len(input.Trainers))
	for id := range input.Trainers {
		trainerIDs = append(trainerIDs, id)
	}
	sort.Slice(trainerIDs, func(i, j int) bool { return trainerIDs[i] < trainerIDs[j] })

	for _, trainerID := range trainerIDs {
		e, ok := total[trainerID]
		if !ok {
			continue
		}
		target := int64(input.Trainers[trainerID].AverageWeeklyHours * float64(input.Horizon.Weeks) * 10)
		diff := cpmodel.NewLinearExpr().Add(e).AddConstant(-target)
		absDiff := cp.NewIntVar(0, 1<<24)
		cp.AddAbsEquality(absDiff, diff)
		expr.AddTerm(absDiff, weight)
	}
	return expr
}

// timePref is O-TIME-PREF: weight · count of meetings whose band disagrees
// with the assigned trainer's half-day preference. Ground truth: each
// assignment boolean already fixes (trainer, band), so a mismatching
// assignment is weighted directly, no indicator needed.
func timePref(input domain.ModelInput, vm *variables.Model, weight int64) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	for _, id := range vm.Order {
		mv := vm.Meetings[id]
		for i, a := range mv.Assignments {
			pref := input.Trainers[a.TrainerID].HalfDayPreference
			mismatch := (pref == domain.PreferMorning && !a.Slot.Band.IsMorning()) ||
				(pref == domain.PreferAfternoon && a.Slot.Band.IsMorning())
			if mismatch {
				expr.AddTerm(mv.Vars[i], weight)
			}
		}
	}
	return expr
}

// lateMay is O-LATE-MAY: weight · Σ week(m) restricted to the horizon's
// last two weeks. Ground truth: only assignments landing there contribute.
func lateMay(input domain.ModelInput, vm *variables.Model, weight int64) *cpmodel.LinearExpr {
	expr := cpmodel.NewLinearExpr()
	threshold := input.Horizon.Weeks - 2
	for _, id := range vm.Order {
		mv := vm.Meetings[id]
		for i, a := range mv.Assignments {
			if a.Slot.Week >= threshold {
				expr.AddTerm(mv.Vars[i], weight*int64(a.Slot.Week))
			}
		}
	}
	return expr
}
