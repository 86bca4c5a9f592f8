package rrule

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calrecur/internal/moment"
)

func TestParseByDay(t *testing.T) {
	tests := []struct {
		in   string
		want ByDay
	}{
		{"MO,TU,FR", Every(time.Monday, time.Tuesday, time.Friday)},
		{"-1SU", Nth(-1, time.Sunday)},
		{"2FR", Nth(2, time.Friday)},
		{"+3WE", Nth(3, time.Wednesday)},
		{"SA", Every(time.Saturday)},
		{"MO,,WE,", Every(time.Monday, time.Wednesday)},
		{"MO,MO", Every(time.Monday)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseByDay(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseByDayErrors(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"MO,XX", ErrInvalidWeekday},
		{"mo", ErrInvalidWeekday},
		{"", ErrInvalidWeekday},
		{",", ErrInvalidWeekday},
		{"-1XX", ErrInvalidWeekday},
		{"ASU", ErrInvalidOrdinal},
		{"0SU", ErrInvalidOrdinal},
		{"1MO,2TU", ErrInvalidOrdinal},
	}
	for _, tt := range tests {
		_, err := ParseByDay(tt.in)
		assert.ErrorIs(t, err, tt.want, tt.in)
	}
}

func TestByDayString(t *testing.T) {
	assert.Equal(t, "MO,TU,FR", Every(time.Monday, time.Tuesday, time.Friday).String())
	assert.Equal(t, "-1SU", Nth(-1, time.Sunday).String())
	assert.Equal(t, "2FR", Nth(2, time.Friday).String())
}

func TestParseShapes(t *testing.T) {
	tests := []struct {
		in   string
		want Rule
	}{
		{"FREQ=YEARLY", Yearly{}},
		{"FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=14", YearlyByMonthAndMonthDay{Month: 2, MonthDay: 14}},
		{"FREQ=YEARLY;BYMONTH=5;BYDAY=-1MO", YearlyByMonthAndWeekday{Month: 5, ByDay: Nth(-1, time.Monday)}},
		{"FREQ=YEARLY;BYMONTHDAY=14", Yearly{}},
		{"FREQ=MONTHLY;BYMONTHDAY=31", MonthlyByMonthDay{MonthDay: 31}},
		{"FREQ=MONTHLY;BYDAY=2TU", MonthlyByWeekday{ByDay: Nth(2, time.Tuesday)}},
		{"FREQ=MONTHLY;BYMONTHDAY=3;BYDAY=2TU", MonthlyByMonthDay{MonthDay: 3}},
		{"FREQ=WEEKLY", Weekly{}},
		{"FREQ=WEEKLY;WKST=SU;BYDAY=MO,WE", WeeklyByWeekday{ByDay: Every(time.Monday, time.Wednesday)}},
		{"FREQ=DAILY", Daily{}},
		{"FREQ=DAILY;BYMONTH=3;BYMONTHDAY=1;BYDAY=MO", Daily{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
			assert.Equal(t, tt.in, got.Limits().Raw)

			switch want := tt.want.(type) {
			case YearlyByMonthAndMonthDay:
				assert.Equal(t, want.Month, got.(YearlyByMonthAndMonthDay).Month)
				assert.Equal(t, want.MonthDay, got.(YearlyByMonthAndMonthDay).MonthDay)
			case YearlyByMonthAndWeekday:
				assert.Equal(t, want.ByDay, got.(YearlyByMonthAndWeekday).ByDay)
			case MonthlyByMonthDay:
				assert.Equal(t, want.MonthDay, got.(MonthlyByMonthDay).MonthDay)
			case MonthlyByWeekday:
				assert.Equal(t, want.ByDay, got.(MonthlyByWeekday).ByDay)
			case WeeklyByWeekday:
				assert.Equal(t, want.ByDay, got.(WeeklyByWeekday).ByDay)
			}
		})
	}
}

func TestParseBounds(t *testing.T) {
	r, err := Parse("FREQ=WEEKLY;INTERVAL=2;BYDAY=TU;UNTIL=20220331T225959Z;COUNT=10")
	require.NoError(t, err)

	b := r.Limits()
	assert.Equal(t, mo.Some(2), b.Interval)
	assert.Equal(t, mo.Some(10), b.Count)
	assert.Equal(t, 2, b.IntervalOrDefault())

	until, ok := b.Until.Get()
	require.True(t, ok)
	assert.Equal(t, moment.NewTimed(time.Date(2022, 3, 31, 22, 59, 59, 0, time.UTC)), until)

	assert.False(t, b.IsExpired(until))
	assert.True(t, b.IsExpired(until.Add(time.Second)))
	assert.False(t, b.IsExhausted(9))
	assert.True(t, b.IsExhausted(10))

	daily := MustParse("FREQ=DAILY")
	assert.Equal(t, 1, daily.Limits().IntervalOrDefault())
	assert.False(t, daily.Limits().IsExhausted(1_000_000))
	assert.False(t, daily.Limits().IsExpired(moment.NewWholeDay(9999, time.December, 31)))
}

func TestParseWholeDayUntil(t *testing.T) {
	r := MustParse("FREQ=DAILY;UNTIL=20220210")
	b := r.Limits()

	assert.False(t, b.IsExpired(moment.NewWholeDay(2022, time.February, 10)))
	assert.True(t, b.IsExpired(moment.NewWholeDay(2022, time.February, 11)))
	// A timed moment later on the UNTIL date is after its midnight.
	assert.True(t, b.IsExpired(moment.NewTimed(time.Date(2022, 2, 10, 9, 0, 0, 0, time.UTC))))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"", ErrMissingFrequency},
		{"INTERVAL=2;FREQ=DAILY", ErrMissingFrequency},
		{"BYDAY=MO", ErrMissingFrequency},
		{"FREQ=HOURLY", ErrUnknownFrequency},
		{"FREQ=YEARLY;BYMONTH=3", ErrMissingCompanion},
		{"FREQ=MONTHLY", ErrMissingByDayOrMonthDay},
		{"FREQ=MONTHLY;BYMONTH=3", ErrMissingByDayOrMonthDay},
		{"FREQ=WEEKLY;BYDAY=XX", ErrInvalidWeekday},
		{"FREQ=WEEKLY;BYDAY=2MO", ErrInvalidOrdinal},
		{"FREQ=MONTHLY;BYDAY=0MO", ErrInvalidOrdinal},
		{"FREQ=DAILY;INTERVAL=0", ErrInvalidValue},
		{"FREQ=DAILY;INTERVAL=x", ErrInvalidValue},
		{"FREQ=DAILY;COUNT=-1", ErrInvalidValue},
		{"FREQ=YEARLY;BYMONTH=13;BYMONTHDAY=1", ErrInvalidValue},
		{"FREQ=MONTHLY;BYMONTHDAY=32", ErrInvalidValue},
		{"FREQ=DAILY;COUNT", ErrMalformedToken},
		{"FREQ=DAILY;COUNT=1;COUNT=2", ErrMalformedToken},
		{"FREQ=DAILY;BYSETPOS=1", ErrUnsupportedKey},
		{"FREQ=DAILY;UNTIL=tomorrow", moment.ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := Parse(tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseIsCaseInsensitive(t *testing.T) {
	r, err := Parse("freq=weekly;byday=mo,we")
	require.NoError(t, err)
	assert.Equal(t, Every(time.Monday, time.Wednesday), r.(WeeklyByWeekday).ByDay)
}

func TestRuleString(t *testing.T) {
	for _, in := range []string{
		"FREQ=YEARLY",
		"FREQ=YEARLY;BYMONTH=2;BYMONTHDAY=14",
		"FREQ=MONTHLY;INTERVAL=3;BYDAY=-1FR;COUNT=4",
		"FREQ=WEEKLY;BYDAY=MO,WE;UNTIL=20220331T225959Z",
		"FREQ=DAILY;UNTIL=20220210",
	} {
		assert.Equal(t, in, MustParse(in).String())
	}
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "once", Describe(nil))
	assert.Equal(t, "every week on MO,WE", Describe(MustParse("FREQ=WEEKLY;BYDAY=MO,WE")))
	assert.Equal(t, "every month on day 15 (interval 2), 6 times", Describe(MustParse("FREQ=MONTHLY;INTERVAL=2;BYMONTHDAY=15;COUNT=6")))
	assert.Equal(t, "every day until 2022-02-10", Describe(MustParse("FREQ=DAILY;UNTIL=20220210")))
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("FREQ=MONTHLY") })
}
