package occurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rrulego "github.com/teambition/rrule-go"

	"calrecur/internal/moment"
	"calrecur/internal/rrule"
)

// Rules whose stepping agrees with RFC 5545 expansion are cross-checked
// against rrule-go.
func TestMatchesRRuleGo(t *testing.T) {
	tests := []struct {
		rule  string
		start time.Time
	}{
		{"FREQ=DAILY;COUNT=20", time.Date(2022, 2, 1, 9, 0, 0, 0, time.UTC)},
		{"FREQ=DAILY;INTERVAL=3;UNTIL=20220401T090000Z", time.Date(2022, 2, 1, 9, 0, 0, 0, time.UTC)},
		{"FREQ=WEEKLY;COUNT=10", time.Date(2022, 2, 7, 18, 0, 0, 0, time.UTC)},
		{"FREQ=WEEKLY;INTERVAL=2;COUNT=10", time.Date(2022, 2, 7, 18, 0, 0, 0, time.UTC)},
		{"FREQ=WEEKLY;BYDAY=MO,WE;COUNT=12", time.Date(2022, 2, 7, 7, 30, 0, 0, time.UTC)},
		{"FREQ=WEEKLY;BYDAY=TU,TH,SA;UNTIL=20220331T235959Z", time.Date(2022, 2, 1, 12, 0, 0, 0, time.UTC)},
		{"FREQ=MONTHLY;BYMONTHDAY=31;COUNT=12", time.Date(2022, 1, 31, 8, 0, 0, 0, time.UTC)},
		{"FREQ=MONTHLY;BYMONTHDAY=15;COUNT=12", time.Date(2022, 1, 15, 8, 0, 0, 0, time.UTC)},
		{"FREQ=MONTHLY;BYDAY=-1SU;COUNT=12", time.Date(2022, 1, 30, 10, 0, 0, 0, time.UTC)},
		{"FREQ=MONTHLY;BYDAY=2TU;COUNT=12", time.Date(2022, 1, 11, 18, 30, 0, 0, time.UTC)},
		{"FREQ=MONTHLY;BYDAY=5MO;COUNT=6", time.Date(2022, 1, 31, 18, 30, 0, 0, time.UTC)},
		{"FREQ=YEARLY;COUNT=5", time.Date(2022, 7, 4, 0, 0, 0, 0, time.UTC)},
		{"FREQ=YEARLY;BYMONTH=12;BYMONTHDAY=25;COUNT=5", time.Date(2021, 12, 25, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			opt, err := rrulego.StrToROption(tt.rule)
			require.NoError(t, err)
			opt.Dtstart = tt.start
			oracle, err := rrulego.NewRRule(*opt)
			require.NoError(t, err)
			want := oracle.All()
			require.NotEmpty(t, want)

			ev := Event{
				Start: moment.NewTimed(tt.start),
				End:   moment.NewTimed(tt.start.Add(time.Hour)),
				Rule:  rrule.MustParse(tt.rule),
			}
			var got []time.Time
			for iv, err := range NewIterator(ev).All() {
				require.NoError(t, err)
				got = append(got, iv.Start.Instant())
				if len(got) > len(want) {
					break
				}
			}

			require.Len(t, got, len(want))
			for i := range want {
				assert.True(t, want[i].Equal(got[i]), "occurrence %d: want %s, got %s", i, want[i], got[i])
			}
		})
	}
}
