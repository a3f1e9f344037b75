package domain

import (
	"testing"
	"time"
)

func TestStatusValues(t *testing.T) {
	if LogFileQueue != 0 || LogFilePartial != 1 || LogFileLoaded != 2 || LogFileInvalidated != -9 {
		t.Error("log file status codes drifted from the persisted contract")
	}
	if DateQueue != 0 || DatePartial != 1 || DateLoaded != 2 || DatePretable != 3 ||
		DateComputed != 4 || DateCompleted != 5 || DateExtractingPretable != -3 {
		t.Error("date status codes drifted from the persisted contract")
	}
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	in := time.Date(2021, 5, 21, 23, 30, 0, 0, loc)

	got := Day(in)
	if got.Format(DayFormat) != "2021-05-21" {
		t.Errorf("Day() = %s, want the wall-clock calendar day 2021-05-21", got.Format(DayFormat))
	}
	if got.Location() != time.UTC {
		t.Errorf("Day() location = %v, want UTC", got.Location())
	}
	if !got.Equal(got.Truncate(24 * time.Hour)) {
		t.Error("Day() is not midnight-aligned")
	}
}
