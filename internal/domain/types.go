// Package domain holds the value types for schools, classes, trainers,
// workshops, enrollments and the various constraint-bearing records that
// together describe one scheduling run. Types here are pure data: no
// solver-facing behavior lives in this package beyond input normalization
// and validation.
package domain

import "github.com/oradea-labs/labsched/internal/calendar"

// Priority is a class's scheduling priority.
type Priority uint8

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// HalfDayPreference is a trainer's preferred half of the day.
type HalfDayPreference uint8

const (
	PreferEither HalfDayPreference = iota
	PreferMorning
	PreferAfternoon
)

// PolicyMode controls whether a class time-slot policy prunes the domain
// (Hard) or only contributes an objective penalty when violated (Soft).
// Production data marks every policy Hard (spec.md §9 open question); Soft
// is accepted but currently enforced identically to Hard (DESIGN.md).
type PolicyMode uint8

const (
	ModeHard PolicyMode = iota
	ModeSoft
)

// School is immutable for the run.
type School struct {
	ID             uint64
	Name           string
	MaySaturday    bool
}

// Class is immutable for the run.
type Class struct {
	ID                    uint64
	Name                  string
	SchoolID              uint64
	Year                  int
	Priority              Priority
	PreferredPartnerID    *uint64 // another class id, same school
}

// WeekdayBand pairs a weekday with a half-day band; used both for a
// trainer's specific-slot whitelist and for a class policy's forbidden
// weekday×band pairs.
type WeekdayBand struct {
	Weekday calendar.Weekday
	Band    calendar.Band
}

// Trainer is immutable for the run.
type Trainer struct {
	ID                uint64
	Name              string
	TotalHourBudget    float64
	AverageWeeklyHours float64 // advisory target, spec.md §9: treated as a mean
	MorningDays        map[calendar.Weekday]bool
	AfternoonDays      map[calendar.Weekday]bool
	SpecificSlots      []WeekdayBand // if non-empty, supersedes Morning/AfternoonDays
	ExcludedDates      map[int]bool  // absolute date indices (calendar.DateIndex)
	SaturdayAllowed    bool
	HalfDayPreference  HalfDayPreference
}

// Workshop is immutable for the run.
type Workshop struct {
	ID                  uint64
	Name                string
	DefaultMeetingCount int
	HoursPerMeeting     float64
	DefaultOrderingRank int
	External            bool // excluded from this scheduler; reserved via ExternalOccupations
	MustBeLast          bool // H-LAST: "presentation"-style workshop
	AutonomousGap       bool // H-GAP-AUTONOMOUS: e.g. "Citizen Science"

	// AutonomousGapSchools restricts H-GAP-AUTONOMOUS to classes whose
	// school is listed here; empty means the rule applies to classes of
	// every school (spec.md §4.3 H-GAP-AUTONOMOUS).
	AutonomousGapSchools []uint64
}

// PrecedenceRule is an ordered-before pair between two workshops (spec.md
// H-PRECEDE): for every class enrolled in both, the before-workshop's last
// meeting must precede the after-workshop's first.
type PrecedenceRule struct {
	BeforeWorkshopID uint64
	AfterWorkshopID  uint64
}

// DetailKind tags the variant carried by an enrollment's parsed detail
// note (spec.md §9).
type DetailKind uint8

const (
	DetailNone DetailKind = iota
	DetailHalfDay
	DetailAfternoonCount
	DetailOnlyN
)

// Detail is the typed variant the core consumes; free-text parsing is an
// external input-layer concern (spec.md §6/§9).
type Detail struct {
	Kind            DetailKind
	Morning         bool // DetailHalfDay: true=morning, false=afternoon
	AfternoonCount  int  // DetailAfternoonCount
	NonConsecutive  bool // DetailAfternoonCount
	OnlyN           int  // DetailOnlyN
}

// Pin is a pre-assigned meeting, fully or partially fixed externally.
type Pin struct {
	Ordinal   int // 1-based meeting ordinal within the enrollment
	Week      int
	Weekday   calendar.Weekday
	Band      calendar.Band
	TrainerID *uint64 // nil if the pin does not fix the trainer
}

// EnrollmentKey identifies a (class, workshop) enrollment.
type EnrollmentKey struct {
	ClassID    uint64
	WorkshopID uint64
}

// Enrollment is a (class, workshop) pair with its required meeting count
// and any overrides.
type Enrollment struct {
	ClassID           uint64
	WorkshopID        uint64
	RequiredCount     int
	Detail            Detail
	PinnedMeetings    []Pin
	FixedTrainerID    *uint64 // hard-assigned trainer, if any
}

// TimeSlotPolicy controls a class's admissible bands and weekdays.
type TimeSlotPolicy struct {
	ClassID         uint64
	AllowedBands    []calendar.Band
	AllowedWeekdays []calendar.Weekday
	Mode            PolicyMode
	ForbiddenPairs  []WeekdayBand // e.g. "Wednesday afternoon only" restrictions
}

// DateRef is an absolute (week, weekday) reference.
type DateRef struct {
	Week    int
	Weekday calendar.Weekday
}

// Blackout marks a class as unavailable on a date, optionally restricted to
// one band.
type Blackout struct {
	ClassID uint64
	Date    DateRef
	Band    *calendar.Band // nil means the whole day
}

// TrainerClassPreference is a soft continuity bonus source.
type TrainerClassPreference struct {
	TrainerID uint64
	ClassID   uint64
}

// GroupingPreference is a symmetric preferred co-teaching pairing, same
// school.
type GroupingPreference struct {
	ClassA uint64
	ClassB uint64
}

// ExternalOccupation reserves a class's week against an external
// (non-covered) workshop.
type ExternalOccupation struct {
	ClassID uint64
	Week    int
}

// Weights names every recognized soft-objective weight (spec.md §9): any
// other name is a configuration error.
type Weights struct {
	Group       int64
	Continuity  int64
	PrefGroup   int64
	Year5Early  int64
	SeqPref     int64
	BandVar     int64
	LoadBal     int64
	WeeklyHrs   int64
	TimePref    int64
	LateMay     int64
}

// DefaultWeights returns the weights fixed by spec.md §4.3.
func DefaultWeights() Weights {
	return Weights{
		Group:      20,
		Continuity: 10,
		PrefGroup:  5,
		Year5Early: 3,
		SeqPref:    2,
		BandVar:    2,
		LoadBal:    2,
		WeeklyHrs:  3,
		TimePref:   1,
		LateMay:    1,
	}
}

// Zeroed returns a copy with every weight set to 0, used by
// pkg/scheduler's diagnostic infeasibility retry (spec.md §7 item 3).
func (w Weights) Zeroed() Weights {
	return Weights{}
}

// PreferredWorkshopSequence is the ordering-rank sequence O-SEQ-PREF
// rewards a class for matching (spec.md "preferred sequence {7,9,4,5}").
type PreferredWorkshopSequence []uint64
