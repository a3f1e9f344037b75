package pipeline

import (
	"sort"
	"time"

	"github.com/pitangainnovare/scielo-usage-counter/internal/domain"
)

// windowRadius is the number of calendar days on each side of a
// candidate date that must be ingested before the date may advance.
const windowRadius = 2

// EligibleDates computes which dates may advance to the next pipeline
// stage. A candidate is eligible only when every date in its 5-day
// window (itself plus windowRadius on each side) appears in statuses at
// a stage >= minStage, or at the out-of-band EXTRACTING_PRETABLE
// marker. Boundary dates of a contiguous run are therefore never
// eligible until their neighbors arrive.
//
// The evaluation is pure: it reads only the supplied map.
func EligibleDates(statuses map[time.Time]domain.DateStatus, minStage domain.DateStatus) []time.Time {
	var eligible []time.Time

	for day, status := range statuses {
		if status != minStage {
			continue
		}
		if windowSatisfied(statuses, day, minStage) {
			eligible = append(eligible, day)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].Before(eligible[j])
	})

	return eligible
}

func windowSatisfied(statuses map[time.Time]domain.DateStatus, day time.Time, minStage domain.DateStatus) bool {
	for offset := -windowRadius; offset <= windowRadius; offset++ {
		neighbor := domain.Day(day.AddDate(0, 0, offset))

		status, ok := statuses[neighbor]
		if !ok {
			return false
		}
		if status < minStage && status != domain.DateExtractingPretable {
			return false
		}
	}
	return true
}
