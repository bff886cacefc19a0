package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"

	"github.com/oradea-labs/labsched/internal/calendar"
)

// RawModelInput is the loosely-structured shape the external input layer
// hands to the core: flat slices cross-referencing each other by id,
// exactly as the teacher's RawModelInput references subjects/professors/
// classes by index (pkg/model/input.go).
type RawModelInput struct {
	Schools             []School
	Classes             []Class
	Trainers            []Trainer
	Workshops           []Workshop
	Enrollments         []Enrollment
	TimeSlotPolicies    []TimeSlotPolicy
	Blackouts           []Blackout
	Preferences         []TrainerClassPreference
	GroupingPreferences []GroupingPreference
	ExternalOccupations []ExternalOccupation
	PrecedenceRules     []PrecedenceRule
	PreferredSequence   PreferredWorkshopSequence
	Horizon             HorizonSpec
	Weights             *Weights // nil means DefaultWeights()
}

// HorizonSpec describes the two-window calendar (spec.md §6).
type HorizonSpec struct {
	Weeks        int
	Truncations  []calendar.WeekTruncation
}

// ModelInput is the normalized, cross-reference-resolved input the rest of
// the core consumes.
type ModelInput struct {
	Schools             map[uint64]School
	Classes             map[uint64]Class
	Trainers            map[uint64]Trainer
	Workshops           map[uint64]Workshop
	Enrollments         map[EnrollmentKey]Enrollment
	TimeSlotPolicies    map[uint64]TimeSlotPolicy // by ClassID
	Blackouts           map[uint64][]Blackout     // by ClassID
	Preferences         []TrainerClassPreference
	GroupingPreferences []GroupingPreference
	ExternalOccupations map[uint64][]int // by ClassID, week indices
	PrecedenceRules     []PrecedenceRule
	PreferredSequence   PreferredWorkshopSequence
	Horizon             calendar.Horizon
	Weights             Weights

	// ClassEnrollments indexes enrollments by class for quick lookup, the
	// way the teacher indexes curriculum rows by group.
	ClassEnrollments map[uint64][]EnrollmentKey
}

// InputFromJSON decodes a JSON file into a RawModelInput via mapstructure,
// the way the teacher's InputFromJson does (pkg/model/input.go), then
// normalizes it.
func InputFromJSON(file string) (ModelInput, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return ModelInput{}, fmt.Errorf("cannot read input file: %w", err)
	}

	var asMap map[string]any
	if err := json.Unmarshal(bytes, &asMap); err != nil {
		return ModelInput{}, fmt.Errorf("cannot parse input json: %w", err)
	}

	var raw RawModelInput
	if err := mapstructure.Decode(asMap, &raw); err != nil {
		return ModelInput{}, fmt.Errorf("cannot decode input: %w", err)
	}

	return ProcessRawInput(raw)
}

// ProcessRawInput resolves cross-references, builds lookup indices and
// validates the raw input, the way the teacher's ProcessRawInput builds
// subject-professors, groups, entries and the curriculum matrix.
func ProcessRawInput(raw RawModelInput) (ModelInput, error) {
	input := ModelInput{
		Schools:             lo.SliceToMap(raw.Schools, func(s School) (uint64, School) { return s.ID, s }),
		Classes:             lo.SliceToMap(raw.Classes, func(c Class) (uint64, Class) { return c.ID, c }),
		Trainers:            lo.SliceToMap(raw.Trainers, func(t Trainer) (uint64, Trainer) { return t.ID, t }),
		Workshops:           lo.SliceToMap(raw.Workshops, func(w Workshop) (uint64, Workshop) { return w.ID, w }),
		Enrollments:         make(map[EnrollmentKey]Enrollment, len(raw.Enrollments)),
		TimeSlotPolicies:    lo.SliceToMap(raw.TimeSlotPolicies, func(p TimeSlotPolicy) (uint64, TimeSlotPolicy) { return p.ClassID, p }),
		Blackouts:           make(map[uint64][]Blackout),
		Preferences:         raw.Preferences,
		GroupingPreferences: raw.GroupingPreferences,
		ExternalOccupations: make(map[uint64][]int),
		ClassEnrollments:    make(map[uint64][]EnrollmentKey),
		PrecedenceRules:     raw.PrecedenceRules,
		PreferredSequence:   raw.PreferredSequence,
	}

	weeks := raw.Horizon.Weeks
	if weeks == 0 {
		input.Horizon = calendar.DefaultHorizon()
	} else {
		input.Horizon = calendar.NewHorizon(weeks, raw.Horizon.Truncations)
	}

	if raw.Weights != nil {
		input.Weights = *raw.Weights
	} else {
		input.Weights = DefaultWeights()
	}

	for _, b := range raw.Blackouts {
		input.Blackouts[b.ClassID] = append(input.Blackouts[b.ClassID], b)
	}
	for _, eo := range raw.ExternalOccupations {
		input.ExternalOccupations[eo.ClassID] = append(input.ExternalOccupations[eo.ClassID], eo.Week)
	}

	for _, e := range raw.Enrollments {
		key := EnrollmentKey{ClassID: e.ClassID, WorkshopID: e.WorkshopID}
		if _, ok := input.Enrollments[key]; ok {
			return ModelInput{}, fmt.Errorf("duplicate enrollment for class %d and workshop %d", e.ClassID, e.WorkshopID)
		}

		if _, ok := input.Classes[e.ClassID]; !ok {
			return ModelInput{}, fmt.Errorf("enrollment references unknown class %d", e.ClassID)
		}
		workshop, ok := input.Workshops[e.WorkshopID]
		if !ok {
			return ModelInput{}, fmt.Errorf("enrollment references unknown workshop %d", e.WorkshopID)
		}

		if e.RequiredCount == 0 {
			e.RequiredCount = workshop.DefaultMeetingCount
		}
		if e.Detail.Kind == DetailOnlyN && e.Detail.OnlyN > 0 {
			e.RequiredCount = e.Detail.OnlyN
		}
		// H-GAP-AUTONOMOUS: one of the meetings is the class's autonomous
		// week and is not scheduled here.
		if workshop.AutonomousGap && e.RequiredCount > 1 {
			schoolID := input.Classes[e.ClassID].SchoolID
			if len(workshop.AutonomousGapSchools) == 0 || slices.Contains(workshop.AutonomousGapSchools, schoolID) {
				e.RequiredCount--
			}
		}

		if len(e.PinnedMeetings) > e.RequiredCount {
			return ModelInput{}, fmt.Errorf("class %d workshop %d has more pins (%d) than required meetings (%d)", e.ClassID, e.WorkshopID, len(e.PinnedMeetings), e.RequiredCount)
		}

		input.Enrollments[key] = e
		input.ClassEnrollments[e.ClassID] = append(input.ClassEnrollments[e.ClassID], key)
	}

	if err := validate(&input); err != nil {
		return ModelInput{}, err
	}

	return input, nil
}

func validate(input *ModelInput) error {
	for _, c := range input.Classes {
		if _, ok := input.Schools[c.SchoolID]; !ok {
			return fmt.Errorf("class %d references unknown school %d", c.ID, c.SchoolID)
		}
		if c.PreferredPartnerID != nil {
			partner, ok := input.Classes[*c.PreferredPartnerID]
			if !ok {
				return fmt.Errorf("class %d references unknown preferred partner %d", c.ID, *c.PreferredPartnerID)
			}
			if partner.SchoolID != c.SchoolID {
				return fmt.Errorf("class %d's preferred partner %d is not in the same school", c.ID, *c.PreferredPartnerID)
			}
		}
	}

	for _, gp := range input.GroupingPreferences {
		classA, ok := input.Classes[gp.ClassA]
		if !ok {
			return fmt.Errorf("grouping preference references unknown class %d", gp.ClassA)
		}
		classB, ok := input.Classes[gp.ClassB]
		if !ok {
			return fmt.Errorf("grouping preference references unknown class %d", gp.ClassB)
		}
		if classA.SchoolID != classB.SchoolID {
			return fmt.Errorf("grouping preference between classes %d and %d must share a school", gp.ClassA, gp.ClassB)
		}
	}

	for _, pr := range input.PrecedenceRules {
		if _, ok := input.Workshops[pr.BeforeWorkshopID]; !ok {
			return fmt.Errorf("precedence rule references unknown workshop %d", pr.BeforeWorkshopID)
		}
		if _, ok := input.Workshops[pr.AfterWorkshopID]; !ok {
			return fmt.Errorf("precedence rule references unknown workshop %d", pr.AfterWorkshopID)
		}
	}

	for _, p := range input.Preferences {
		if _, ok := input.Trainers[p.TrainerID]; !ok {
			return fmt.Errorf("trainer-class preference references unknown trainer %d", p.TrainerID)
		}
		if _, ok := input.Classes[p.ClassID]; !ok {
			return fmt.Errorf("trainer-class preference references unknown class %d", p.ClassID)
		}
	}

	for key, e := range input.Enrollments {
		seenOrdinals := make(map[int]bool)
		for _, pin := range e.PinnedMeetings {
			if pin.Ordinal < 1 || pin.Ordinal > e.RequiredCount {
				return fmt.Errorf("class %d workshop %d has a pin with out-of-range ordinal %d", key.ClassID, key.WorkshopID, pin.Ordinal)
			}
			if seenOrdinals[pin.Ordinal] {
				return fmt.Errorf("class %d workshop %d has duplicate pin ordinal %d", key.ClassID, key.WorkshopID, pin.Ordinal)
			}
			seenOrdinals[pin.Ordinal] = true
			if !input.Horizon.Allowed(pin.Week, pin.Weekday) {
				return fmt.Errorf("class %d workshop %d pin %d falls outside the horizon", key.ClassID, key.WorkshopID, pin.Ordinal)
			}
			if pin.TrainerID != nil {
				if _, ok := input.Trainers[*pin.TrainerID]; !ok {
					return fmt.Errorf("class %d workshop %d pin %d references unknown trainer %d", key.ClassID, key.WorkshopID, pin.Ordinal, *pin.TrainerID)
				}
			}
		}
	}

	return nil
}

// EligibleTrainers returns the set of trainer ids an enrollment may use: a
// singleton if the enrollment hard-assigns a trainer, otherwise every
// trainer in the input (spec.md §4.2).
func (m ModelInput) EligibleTrainers(e Enrollment) []uint64 {
	if e.FixedTrainerID != nil {
		return []uint64{*e.FixedTrainerID}
	}
	ids := make([]uint64, 0, len(m.Trainers))
	for id := range m.Trainers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
