package domain

import "time"

// LogFileStatus tracks the parse lifecycle of one registered raw log file.
// A file's status is mutated exactly once per parse attempt.
type LogFileStatus int

const (
	LogFileQueue       LogFileStatus = 0
	LogFilePartial     LogFileStatus = 1
	LogFileLoaded      LogFileStatus = 2
	LogFileInvalidated LogFileStatus = -9
)

// DateStatus tracks per-(collection, date) pipeline progress. Dates advance
// monotonically through the ordered stages; ExtractingPretable is an
// out-of-band "currently merging" marker.
type DateStatus int

const (
	DateQueue              DateStatus = 0
	DatePartial            DateStatus = 1
	DateLoaded             DateStatus = 2
	DatePretable           DateStatus = 3
	DateComputed           DateStatus = 4
	DateCompleted          DateStatus = 5
	DateExtractingPretable DateStatus = -3
)

// LogFile is a raw access log registered for ingestion.
type LogFile struct {
	ID         string
	Collection string
	Path       string
	CreatedAt  time.Time
	Size       int64
	Server     string
	Date       time.Time // calendar date the file covers
	Status     LogFileStatus
}

// DateState is the persisted status row for one (collection, date) pair.
type DateState struct {
	Collection string
	Date       time.Time
	Status     DateStatus
	UpdatedAt  time.Time
}

// DayFormat is the canonical calendar-day layout used in pretable file
// names and state-store keys.
const DayFormat = "2006-01-02"

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
