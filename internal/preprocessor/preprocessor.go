// Package preprocessor converts raw domain input into the internal
// reduced domain every meeting instance will be built against: for every
// (class, workshop) enrollment, the admissible (week, weekday, band) set,
// and for every trainer, the slot mask their availability induces. It is a
// pure transformation: no solver variable or constraint is created here
// (spec.md §4.1).
package preprocessor

import (
	"slices"

	"github.com/oradea-labs/labsched/internal/calendar"
	"github.com/oradea-labs/labsched/internal/domain"
	"github.com/oradea-labs/labsched/internal/schedulererr"
)

// Slot is one candidate (week, weekday, band) triple.
type Slot struct {
	Week    int
	Weekday calendar.Weekday
	Band    calendar.Band
}

// TrainerMask is a predicate over a candidate slot, true iff the trainer
// may be booked there.
type TrainerMask func(slot Slot) bool

// Preprocessor holds the reduced domain derived from one ModelInput.
type Preprocessor struct {
	input ModelInput

	classSlots    map[uint64][]Slot     // build_admissible_slots(class)
	consumedWeeks map[uint64]map[int]bool // weeks already claimed by pins or external occupations, per class
	trainerMasks  map[uint64]TrainerMask  // build_trainer_slot_mask(trainer)
}

// ModelInput is an alias kept local so this package only ever needs one
// import path for it; defined here instead of re-exported to keep the
// dependency direction obvious (preprocessor depends on domain, not vice
// versa).
type ModelInput = domain.ModelInput

// New runs every preprocessing operation in spec.md §4.1 eagerly: pin
// conflict detection, external reservation, and per-class/per-trainer
// domain construction. It returns a structured error the moment any
// pre-solve infeasibility is detected.
func New(input ModelInput) (*Preprocessor, error) {
	p := &Preprocessor{
		input:         input,
		classSlots:    make(map[uint64][]Slot),
		consumedWeeks: make(map[uint64]map[int]bool),
		trainerMasks:  make(map[uint64]TrainerMask),
	}

	if err := p.checkPinConflicts(); err != nil {
		return nil, err
	}
	p.reserveExternal()
	p.reservePins()

	for classID := range input.Classes {
		p.classSlots[classID] = p.buildAdmissibleSlots(classID)
	}
	for trainerID, trainer := range input.Trainers {
		p.trainerMasks[trainerID] = buildTrainerSlotMask(trainer)
	}

	if err := p.checkEmptyDomains(); err != nil {
		return nil, err
	}

	return p, nil
}

// checkPinConflicts detects two pinned meetings of the same class landing
// in the same week (spec.md scenario 3: PinConflict).
func (p *Preprocessor) checkPinConflicts() error {
	seen := make(map[uint64]map[int]bool)
	for key, enrollment := range p.input.Enrollments {
		for _, pin := range enrollment.PinnedMeetings {
			if seen[key.ClassID] == nil {
				seen[key.ClassID] = make(map[int]bool)
			}
			if seen[key.ClassID][pin.Week] {
				return &schedulererr.PinConflictError{ClassID: key.ClassID, Week: pin.Week}
			}
			seen[key.ClassID][pin.Week] = true
		}
	}
	return nil
}

// reserveExternal consumes the weeks external (non-covered) workshops
// occupy for each class, so covered meetings never collide with them
// (spec.md H-EXTERNAL-BLOCK).
func (p *Preprocessor) reserveExternal() {
	for classID, weeks := range p.input.ExternalOccupations {
		if p.consumedWeeks[classID] == nil {
			p.consumedWeeks[classID] = make(map[int]bool)
		}
		for _, week := range weeks {
			p.consumedWeeks[classID][week] = true
		}
	}
}

// reservePins marks the week of every pinned meeting as consumed for its
// class, so other enrollments of the same class cannot also land there
// (spec.md §4.1 bind_pins).
func (p *Preprocessor) reservePins() {
	for key, enrollment := range p.input.Enrollments {
		for _, pin := range enrollment.PinnedMeetings {
			if p.consumedWeeks[key.ClassID] == nil {
				p.consumedWeeks[key.ClassID] = make(map[int]bool)
			}
			p.consumedWeeks[key.ClassID][pin.Week] = true
		}
	}
}

// buildAdmissibleSlots computes build_admissible_slots(class): the full
// horizon, minus boundary-week truncation (already folded into
// calendar.Horizon), minus blackout dates, restricted to the class's
// permitted bands and weekdays. Uses the same predicate-gated backtracking
// technique as the teacher's permutation generator, generalized from six
// attributes down to three.
func (p *Preprocessor) buildAdmissibleSlots(classID uint64) []Slot {
	policy, hasPolicy := p.input.TimeSlotPolicies[classID]
	blackouts := p.input.Blackouts[classID]

	generator := newConstrainedPermutationGenerator(p.input.Horizon.Weeks, len(calendar.Weekdays), len(calendar.Bands))

	tuples := generator.constrainedPermutations([]func(tuple []int) bool{
		// week must be in horizon for the (as-yet-unknown) weekday; deferred to the weekday check
		func(tuple []int) bool { return true },
		// weekday must be allowed by the horizon and, if present, by the class policy
		func(tuple []int) bool {
			week, wdayInt := tuple[0], tuple[1]
			if wdayInt == unset {
				return true
			}
			wday := calendar.Weekday(wdayInt)
			if !p.input.Horizon.Allowed(week, wday) {
				return false
			}
			if hasPolicy && len(policy.AllowedWeekdays) > 0 && !slices.Contains(policy.AllowedWeekdays, wday) {
				return false
			}
			return true
		},
		// band must be allowed by the class policy and not forbidden for this weekday, and the slot must not be blacked out
		func(tuple []int) bool {
			week, wdayInt, bandInt := tuple[0], tuple[1], tuple[2]
			if bandInt == unset {
				return true
			}
			wday := calendar.Weekday(wdayInt)
			band := calendar.Band(bandInt)

			if hasPolicy {
				if len(policy.AllowedBands) > 0 && !slices.Contains(policy.AllowedBands, band) {
					return false
				}
				if slices.Contains(policy.ForbiddenPairs, domain.WeekdayBand{Weekday: wday, Band: band}) {
					return false
				}
			}

			if isBlackedOut(blackouts, week, wday, band) {
				return false
			}

			return true
		},
	})

	slots := make([]Slot, 0, len(tuples))
	consumed := p.consumedWeeks[classID]
	for _, tuple := range tuples {
		week := tuple[0]
		if consumed != nil && consumed[week] {
			continue
		}
		slots = append(slots, Slot{Week: week, Weekday: calendar.Weekday(tuple[1]), Band: calendar.Band(tuple[2])})
	}
	return slots
}

func isBlackedOut(blackouts []domain.Blackout, week int, wday calendar.Weekday, band calendar.Band) bool {
	for _, b := range blackouts {
		if b.Date.Week != week || b.Date.Weekday != wday {
			continue
		}
		if b.Band == nil || *b.Band == band {
			return true
		}
	}
	return false
}

// buildTrainerSlotMask computes build_trainer_slot_mask(trainer): if a
// specific-slot whitelist is present it supersedes weekday availability;
// otherwise a weekday is allowed in m1/m2 iff it's a morning-available day
// and in p iff it's an afternoon-available day. Saturdays require the
// trainer's saturday-allowed flag; excluded absolute dates are removed.
func buildTrainerSlotMask(trainer domain.Trainer) TrainerMask {
	return func(slot Slot) bool {
		if slot.Weekday == calendar.Sat && !trainer.SaturdayAllowed {
			return false
		}

		dateIndex := calendar.DateIndex(slot.Week, slot.Weekday)
		if trainer.ExcludedDates[dateIndex] {
			return false
		}

		if len(trainer.SpecificSlots) > 0 {
			return slices.Contains(trainer.SpecificSlots, domain.WeekdayBand{Weekday: slot.Weekday, Band: slot.Band})
		}

		if slot.Band.IsMorning() {
			return trainer.MorningDays[slot.Weekday]
		}
		return trainer.AfternoonDays[slot.Weekday]
	}
}

// checkEmptyDomains raises DomainEmpty for every unpinned meeting instance
// whose admissible slot set is empty once class, workshop and enrollment
// restrictions are intersected (spec.md §4.1 contract).
func (p *Preprocessor) checkEmptyDomains() error {
	for key, enrollment := range p.input.Enrollments {
		for ordinal := 1; ordinal <= enrollment.RequiredCount; ordinal++ {
			if pinFor(enrollment, ordinal) != nil {
				continue
			}
			domainSlots := p.EnrollmentDomain(key)
			if len(domainSlots) == 0 {
				return &schedulererr.DomainEmptyError{
					ClassID:    key.ClassID,
					WorkshopID: key.WorkshopID,
					Ordinal:    ordinal,
					Reason:     "no (week, weekday, band) triple survives class, blackout and workshop restrictions",
				}
			}
		}
	}
	return nil
}

func pinFor(e domain.Enrollment, ordinal int) *domain.Pin {
	for i := range e.PinnedMeetings {
		if e.PinnedMeetings[i].Ordinal == ordinal {
			return &e.PinnedMeetings[i]
		}
	}
	return nil
}

// ClassSlots returns the admissible (week, weekday, band) set for a class,
// independent of workshop.
func (p *Preprocessor) ClassSlots(classID uint64) []Slot {
	return p.classSlots[classID]
}

// EnrollmentDomain intersects a class's admissible slots with the
// enrollment's half-day requirement (spec.md Detail.Kind == DetailHalfDay).
func (p *Preprocessor) EnrollmentDomain(key domain.EnrollmentKey) []Slot {
	enrollment := p.input.Enrollments[key]
	classSlots := p.classSlots[key.ClassID]

	if enrollment.Detail.Kind != domain.DetailHalfDay {
		return classSlots
	}

	filtered := make([]Slot, 0, len(classSlots))
	for _, s := range classSlots {
		if enrollment.Detail.Morning && !s.Band.IsMorning() {
			continue
		}
		if !enrollment.Detail.Morning && s.Band.IsMorning() {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}

// TrainerMask returns the slot predicate for a trainer.
func (p *Preprocessor) TrainerMask(trainerID uint64) TrainerMask {
	return p.trainerMasks[trainerID]
}

// ConsumedWeeks returns the weeks a class cannot use for a new covered
// meeting: weeks already pinned or reserved by an external workshop.
func (p *Preprocessor) ConsumedWeeks(classID uint64) map[int]bool {
	return p.consumedWeeks[classID]
}

// Input returns the normalized model input the preprocessor was built
// from, for components downstream that need the raw entities too.
func (p *Preprocessor) Input() ModelInput {
	return p.input
}
