// Package jsdate parses timestamps produced by JavaScript's Date.toString,
// e.g. "Tue Apr 23 2024 01:53:24 GMT+0300 (GMT+03:00)".
package jsdate

import (
	"fmt"
	"strings"
	"time"
)

const (
	// Layout matches the portion of Date.toString before the zone suffix.
	Layout = "Mon Jan _2 2006 15:04:05"

	// DateKey is the DD-MM-YY form used to key ledgers and vitals.
	DateKey = "02-01-06"

	// NoteStamp is the DD-MM-YY HH:MM:SS form shown on notes.
	NoteStamp = "02-01-06 15:04:05"
)

// Parse strips everything from " GMT" onward and parses the rest as local
// wall-clock time. The zone suffix is discarded, so the calendar date is
// the one the client saw.
func Parse(ts string) (time.Time, error) {
	head, _, _ := strings.Cut(ts, " GMT")
	head = strings.TrimSpace(head)
	if head == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	t, err := time.Parse(Layout, head)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q does not match %q: %w", ts, Layout, err)
	}
	return t, nil
}

// DateOf parses ts and returns its DD-MM-YY date key.
func DateOf(ts string) (string, error) {
	t, err := Parse(ts)
	if err != nil {
		return "", err
	}
	return t.Format(DateKey), nil
}
