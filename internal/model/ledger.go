package model

import (
	"encoding/json"

	apperrors "github.com/jwalitptl/care-api/pkg/errors"
)

// GivenRecord marks a dose as administered in a period on a date.
type GivenRecord struct {
	Timestamp string `json:"timestamp"`
	Given     bool   `json:"given"`
}

// UnmarshalJSON also accepts the bare boolean stored by older clients.
func (r *GivenRecord) UnmarshalJSON(data []byte) error {
	var flag bool
	if err := json.Unmarshal(data, &flag); err == nil {
		*r = GivenRecord{Given: flag}
		return nil
	}
	type plain GivenRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = GivenRecord(p)
	return nil
}

// GivenDates maps period -> DD-MM-YY date -> record.
type GivenDates map[Period]map[string]GivenRecord

// AdministrationLedger records when doses were prepared and given.
// Entries are keyed by date, so recording the same key twice overwrites.
type AdministrationLedger struct {
	PreparedDates map[string]bool `json:"prepared_dates"`
	GivenDates    GivenDates      `json:"given_dates"`
}

// NewAdministrationLedger returns an empty ledger with every period present.
func NewAdministrationLedger() AdministrationLedger {
	l := AdministrationLedger{}
	_ = l.normalize()
	return l
}

// MarkGiven records a dose given in period on date.
func (l *AdministrationLedger) MarkGiven(period Period, date, timestamp string) {
	if l.GivenDates == nil {
		l.GivenDates = GivenDates{}
	}
	if l.GivenDates[period] == nil {
		l.GivenDates[period] = map[string]GivenRecord{}
	}
	l.GivenDates[period][date] = GivenRecord{Timestamp: timestamp, Given: true}
}

// MarkPrepared records that the day's doses were prepared on date.
func (l *AdministrationLedger) MarkPrepared(date string) {
	if l.PreparedDates == nil {
		l.PreparedDates = map[string]bool{}
	}
	l.PreparedDates[date] = true
}

func (l *AdministrationLedger) normalize() error {
	if l.PreparedDates == nil {
		l.PreparedDates = map[string]bool{}
	}
	if l.GivenDates == nil {
		l.GivenDates = GivenDates{}
	}
	for p := range l.GivenDates {
		if !p.Valid() {
			return apperrors.Validation("given_dates has unknown period %q", p)
		}
	}
	for _, p := range Periods {
		if l.GivenDates[p] == nil {
			l.GivenDates[p] = map[string]GivenRecord{}
		}
	}
	return nil
}

func (l AdministrationLedger) clone() AdministrationLedger {
	out := AdministrationLedger{
		PreparedDates: make(map[string]bool, len(l.PreparedDates)),
		GivenDates:    make(GivenDates, len(l.GivenDates)),
	}
	for d, v := range l.PreparedDates {
		out.PreparedDates[d] = v
	}
	for p, dates := range l.GivenDates {
		m := make(map[string]GivenRecord, len(dates))
		for d, r := range dates {
			m[d] = r
		}
		out.GivenDates[p] = m
	}
	return out
}
