package pipeline

import (
	"testing"
	"time"

	"github.com/pitangainnovare/scielo-usage-counter/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse(domain.DayFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestEligibleDates(t *testing.T) {
	tests := []struct {
		name     string
		statuses map[time.Time]domain.DateStatus
		minStage domain.DateStatus
		want     []string
	}{
		{
			name: "Six consecutive loaded dates expose the two interior ones",
			statuses: map[time.Time]domain.DateStatus{
				day("2021-01-01"): domain.DateLoaded,
				day("2021-01-02"): domain.DateLoaded,
				day("2021-01-03"): domain.DateLoaded,
				day("2021-01-04"): domain.DateLoaded,
				day("2021-01-05"): domain.DateLoaded,
				day("2021-01-06"): domain.DateLoaded,
			},
			minStage: domain.DateLoaded,
			want:     []string{"2021-01-03", "2021-01-04"},
		},
		{
			name: "A gap in the run blocks its neighborhood",
			statuses: map[time.Time]domain.DateStatus{
				day("2021-01-01"): domain.DateLoaded,
				day("2021-01-02"): domain.DateLoaded,
				day("2021-01-03"): domain.DateLoaded,
				// 2021-01-04 missing
				day("2021-01-05"): domain.DateLoaded,
				day("2021-01-06"): domain.DateLoaded,
				day("2021-01-07"): domain.DateLoaded,
			},
			minStage: domain.DateLoaded,
			want:     nil,
		},
		{
			name: "Neighbors beyond the target stage still satisfy the window",
			statuses: map[time.Time]domain.DateStatus{
				day("2021-01-01"): domain.DatePretable,
				day("2021-01-02"): domain.DateCompleted,
				day("2021-01-03"): domain.DateLoaded,
				day("2021-01-04"): domain.DatePretable,
				day("2021-01-05"): domain.DatePretable,
			},
			minStage: domain.DateLoaded,
			want:     []string{"2021-01-03"},
		},
		{
			name: "The extracting marker counts as a satisfied neighbor",
			statuses: map[time.Time]domain.DateStatus{
				day("2021-01-01"): domain.DateExtractingPretable,
				day("2021-01-02"): domain.DateLoaded,
				day("2021-01-03"): domain.DateLoaded,
				day("2021-01-04"): domain.DateLoaded,
				day("2021-01-05"): domain.DateExtractingPretable,
			},
			minStage: domain.DateLoaded,
			want:     []string{"2021-01-03"},
		},
		{
			name: "A lagging neighbor blocks the window",
			statuses: map[time.Time]domain.DateStatus{
				day("2021-01-01"): domain.DateLoaded,
				day("2021-01-02"): domain.DatePartial,
				day("2021-01-03"): domain.DateLoaded,
				day("2021-01-04"): domain.DateLoaded,
				day("2021-01-05"): domain.DateLoaded,
			},
			minStage: domain.DateLoaded,
			want:     nil,
		},
		{
			name: "Fewer than five dates can never qualify",
			statuses: map[time.Time]domain.DateStatus{
				day("2021-01-01"): domain.DateLoaded,
				day("2021-01-02"): domain.DateLoaded,
				day("2021-01-03"): domain.DateLoaded,
				day("2021-01-04"): domain.DateLoaded,
			},
			minStage: domain.DateLoaded,
			want:     nil,
		},
		{
			name:     "Empty map",
			statuses: map[time.Time]domain.DateStatus{},
			minStage: domain.DateLoaded,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EligibleDates(tt.statuses, tt.minStage)

			if len(got) != len(tt.want) {
				t.Fatalf("EligibleDates() = %v, want %v", got, tt.want)
			}
			for i, want := range tt.want {
				if formatted := got[i].Format(domain.DayFormat); formatted != want {
					t.Errorf("EligibleDates()[%d] = %s, want %s", i, formatted, want)
				}
			}
		})
	}
}
