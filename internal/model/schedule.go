package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	apperrors "github.com/jwalitptl/care-api/pkg/errors"
	"github.com/jwalitptl/care-api/pkg/jsdate"
	"github.com/jwalitptl/care-api/pkg/validator"
)

// EndDateLayout is the stored form of a schedule end date.
const EndDateLayout = "2006-01-02"

// Period is a time-of-day dosing slot.
type Period string

const (
	PeriodMorning Period = "morning"
	PeriodNoon    Period = "noon"
	PeriodEvening Period = "evening"
)

// Periods lists every period in day order.
var Periods = []Period{PeriodMorning, PeriodNoon, PeriodEvening}

func (p Period) Valid() bool {
	switch p {
	case PeriodMorning, PeriodNoon, PeriodEvening:
		return true
	}
	return false
}

// PeriodSet flags the periods a medicine is taken in.
type PeriodSet struct {
	Morning bool `json:"morning"`
	Noon    bool `json:"noon"`
	Evening bool `json:"evening"`
}

func (s PeriodSet) Has(p Period) bool {
	switch p {
	case PeriodMorning:
		return s.Morning
	case PeriodNoon:
		return s.Noon
	case PeriodEvening:
		return s.Evening
	}
	return false
}

func (s PeriodSet) Any() bool {
	return s.Morning || s.Noon || s.Evening
}

// Fullness says whether a dose is taken before or after a meal.
type Fullness string

const (
	FullnessUnspecified Fullness = "unspecified"
	FullnessBeforeMeal  Fullness = "before_meal"
	FullnessAfterMeal   Fullness = "after_meal"
)

// Older clients send the labels shown in the Turkish UI.
var fullnessAliases = map[string]Fullness{
	"":             FullnessUnspecified,
	"unspecified":  FullnessUnspecified,
	"before_meal":  FullnessBeforeMeal,
	"after_meal":   FullnessAfterMeal,
	"Aç İçilecek":  FullnessBeforeMeal,
	"Tok İçilecek": FullnessAfterMeal,
}

func (f *Fullness) UnmarshalText(text []byte) error {
	v, err := parseFullness(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func parseFullness(s string) (Fullness, error) {
	v, ok := fullnessAliases[strings.TrimSpace(s)]
	if !ok {
		return "", fmt.Errorf("unknown fullness option %q", s)
	}
	return v, nil
}

var weekdayOrder = map[string]int{
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3,
	"friday": 4, "saturday": 5, "sunday": 6,
	"pazartesi": 0, "salı": 1, "çarşamba": 2, "perşembe": 3,
	"cuma": 4, "cumartesi": 5, "pazar": 6,
}

// ScheduleDefinition is the caller-supplied description of a medicine
// assignment. Its canonical JSON form is hashed into the schedule id.
type ScheduleDefinition struct {
	Name     string              `json:"name" validate:"required"`
	Category string              `json:"category" validate:"required"`
	Periods  PeriodSet           `json:"selected_periods"`
	Days     map[Period][]string `json:"selected_days"`
	Fullness map[Period]Fullness `json:"fullness_options"`
	Dosage   map[Period]int      `json:"medicine_dosage"`
	EndDate  string              `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// Normalize validates d and fills it into its canonical shape: at least
// one period selected, every period present in each map, unselected
// periods zeroed, and weekday lists deduplicated in week order.
func (d *ScheduleDefinition) Normalize() error {
	d.Name = strings.TrimSpace(d.Name)
	d.Category = strings.TrimSpace(d.Category)
	endDate, err := normalizeEndDate(d.EndDate)
	if err != nil {
		return err
	}
	d.EndDate = endDate

	if err := validator.Validate(d); err != nil {
		return apperrors.BadRequest(err.Error(), nil)
	}
	if err := checkPeriodKeys(d.Days, d.Fullness, d.Dosage); err != nil {
		return err
	}

	if !d.Periods.Any() {
		d.Periods.Morning = true
	}

	days := make(map[Period][]string, len(Periods))
	fullness := make(map[Period]Fullness, len(Periods))
	dosage := make(map[Period]int, len(Periods))

	for _, p := range Periods {
		if !d.Periods.Has(p) {
			days[p] = []string{}
			fullness[p] = FullnessUnspecified
			dosage[p] = 0
			continue
		}

		ordered, err := orderWeekdays(d.Days[p])
		if err != nil {
			return err
		}
		days[p] = ordered

		f, err := parseFullness(string(d.Fullness[p]))
		if err != nil {
			return apperrors.Validation("fullness_options.%s: %v", p, err)
		}
		fullness[p] = f

		n := d.Dosage[p]
		if n < 0 {
			return apperrors.Validation("medicine_dosage.%s must not be negative", p)
		}
		if n == 0 {
			n = 1
		}
		dosage[p] = n
	}

	d.Days = days
	d.Fullness = fullness
	d.Dosage = dosage
	return nil
}

func checkPeriodKeys(days map[Period][]string, fullness map[Period]Fullness, dosage map[Period]int) error {
	for p := range days {
		if !p.Valid() {
			return apperrors.Validation("selected_days has unknown period %q", p)
		}
	}
	for p := range fullness {
		if !p.Valid() {
			return apperrors.Validation("fullness_options has unknown period %q", p)
		}
	}
	for p := range dosage {
		if !p.Valid() {
			return apperrors.Validation("medicine_dosage has unknown period %q", p)
		}
	}
	return nil
}

// normalizeEndDate accepts a YYYY-MM-DD date or a JavaScript Date.toString
// timestamp and returns the YYYY-MM-DD form. "" stays "".
func normalizeEndDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if _, err := time.Parse(EndDateLayout, s); err == nil {
		return s, nil
	}
	t, err := jsdate.Parse(s)
	if err != nil {
		return "", apperrors.Validation("end_date %q is neither a %s date nor a JavaScript date", s, EndDateLayout)
	}
	return t.Format(EndDateLayout), nil
}

// weekdayIndex looks day up case-insensitively. Turkish capitals such as
// "SALI" only fold correctly under Turkish casing rules.
func weekdayIndex(day string) (int, bool) {
	if idx, ok := weekdayOrder[strings.ToLower(day)]; ok {
		return idx, true
	}
	idx, ok := weekdayOrder[cases.Lower(language.Turkish).String(day)]
	return idx, ok
}

func orderWeekdays(in []string) ([]string, error) {
	type weekday struct {
		name string
		idx  int
	}
	seen := make(map[int]bool, len(in))
	days := make([]weekday, 0, len(in))
	for _, day := range in {
		day = strings.TrimSpace(day)
		idx, ok := weekdayIndex(day)
		if !ok {
			return nil, apperrors.Validation("unknown weekday %q", day)
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		days = append(days, weekday{name: day, idx: idx})
	}
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].idx < days[j].idx
	})
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.name
	}
	return out, nil
}

// ScheduleUpdate carries a partial replacement for a schedule entry.
// Nil fields are left untouched. An EndDate pointing at "" clears it.
type ScheduleUpdate struct {
	Name          *string             `json:"name"`
	Category      *string             `json:"category"`
	Periods       *PeriodSet          `json:"selected_periods"`
	Days          map[Period][]string `json:"selected_days"`
	Fullness      map[Period]Fullness `json:"fullness_options"`
	Dosage        map[Period]int      `json:"medicine_dosage"`
	EndDate       *string             `json:"end_date"`
	PreparedDates map[string]bool     `json:"prepared_dates"`
	GivenDates    GivenDates          `json:"given_dates"`
}

// ScheduleData is the stored body of a schedule entry: its definition
// plus the administration ledger, flattened into one JSON object.
type ScheduleData struct {
	ScheduleDefinition
	AdministrationLedger
}

// ScheduleEntry is one medicine assigned to a patient.
type ScheduleEntry struct {
	ID   string       `json:"medicine_id"`
	Data ScheduleData `json:"medicine_data"`
}

// apply returns a copy of e with u merged in. The ledger is carried
// forward unless u supplies one.
func (e *ScheduleEntry) apply(u ScheduleUpdate) (*ScheduleEntry, error) {
	def := e.Data.ScheduleDefinition.clone()
	if u.Name != nil {
		def.Name = *u.Name
	}
	if u.Category != nil {
		def.Category = *u.Category
	}
	if u.Periods != nil {
		def.Periods = *u.Periods
	}
	if u.Days != nil {
		def.Days = u.Days
	}
	if u.Fullness != nil {
		def.Fullness = u.Fullness
	}
	if u.Dosage != nil {
		def.Dosage = u.Dosage
	}
	if u.EndDate != nil {
		def.EndDate = *u.EndDate
	}
	if err := def.Normalize(); err != nil {
		return nil, err
	}

	ledger := e.Data.AdministrationLedger.clone()
	if u.PreparedDates != nil {
		ledger.PreparedDates = u.PreparedDates
	}
	if u.GivenDates != nil {
		ledger.GivenDates = u.GivenDates
	}
	if err := ledger.normalize(); err != nil {
		return nil, err
	}

	return &ScheduleEntry{
		ID:   e.ID,
		Data: ScheduleData{ScheduleDefinition: def, AdministrationLedger: ledger},
	}, nil
}

func (d ScheduleDefinition) clone() ScheduleDefinition {
	out := d
	out.Days = make(map[Period][]string, len(d.Days))
	for p, days := range d.Days {
		out.Days[p] = append([]string(nil), days...)
	}
	out.Fullness = make(map[Period]Fullness, len(d.Fullness))
	for p, f := range d.Fullness {
		out.Fullness[p] = f
	}
	out.Dosage = make(map[Period]int, len(d.Dosage))
	for p, n := range d.Dosage {
		out.Dosage[p] = n
	}
	return out
}

// ScheduleMap holds a patient's schedule entries keyed by schedule id.
type ScheduleMap map[string]*ScheduleEntry

// Get reports whether id is present.
func (m ScheduleMap) Get(id string) (*ScheduleEntry, bool) {
	e, ok := m[id]
	return e, ok && e != nil
}
