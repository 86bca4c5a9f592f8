package moment

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(y int, m time.Month, d, h, mi, s int) Moment {
	return NewTimed(time.Date(y, m, d, h, mi, s, 0, time.UTC))
}

func TestWholeDayHasNoTimeOfDay(t *testing.T) {
	days := []Moment{
		NewWholeDay(2022, time.February, 5),
		WholeDayOf(time.Date(2022, 2, 5, 23, 59, 59, 0, time.UTC)),
		NewWholeDay(2022, time.February, 5).Add(36 * time.Hour),
		NewWholeDay(2024, time.February, 29).IncrementYear(1),
	}
	for _, d := range days {
		assert.True(t, d.IsWholeDay(), d.String())
		assert.Zero(t, d.Hour())
		assert.Zero(t, d.Minute())
		assert.Zero(t, d.Second())
	}
}

func TestAddKeepsTag(t *testing.T) {
	day := NewWholeDay(2022, time.February, 5)

	next := day.Add(36 * time.Hour)
	assert.True(t, next.IsWholeDay())
	assert.Equal(t, NewWholeDay(2022, time.February, 6), next)

	prev := day.Add(-time.Second)
	assert.Equal(t, NewWholeDay(2022, time.February, 4), prev)

	timed := utc(2022, time.February, 5, 10, 30, 0)
	assert.Equal(t, utc(2022, time.February, 6, 22, 30, 0), timed.Add(36*time.Hour))
}

func TestOrderingProjectsWholeDayToMidnight(t *testing.T) {
	day := NewWholeDay(2022, time.February, 10)
	midnight := utc(2022, time.February, 10, 0, 0, 0)
	morning := utc(2022, time.February, 10, 8, 0, 0)

	assert.Equal(t, 0, day.Compare(midnight))
	assert.True(t, day.Equal(midnight))
	assert.True(t, day.Before(morning))
	assert.Equal(t, 8*time.Hour, morning.Sub(day))
	assert.True(t, day.IsWholeDay(), "comparison must not change the tag")
}

func TestSubstitute(t *testing.T) {
	timed := utc(2022, time.February, 5, 10, 30, 15)

	got, err := timed.Substitute(Fields{Day: mo.Some(1)})
	require.NoError(t, err)
	assert.Equal(t, utc(2022, time.February, 1, 10, 30, 15), got)

	got, err = timed.Substitute(Fields{Year: mo.Some(2023), Month: mo.Some(12), Hour: mo.Some(7)})
	require.NoError(t, err)
	assert.Equal(t, utc(2023, time.December, 5, 7, 30, 15), got)

	day := NewWholeDay(2022, time.February, 5)
	got, err = day.Substitute(Fields{Month: mo.Some(3), Day: mo.Some(31)})
	require.NoError(t, err)
	assert.Equal(t, NewWholeDay(2022, time.March, 31), got)

	_, err = day.Substitute(Fields{Hour: mo.Some(9)})
	require.ErrorIs(t, err, ErrConstructingTimedFromWholeDay)

	_, err = day.Substitute(Fields{Second: mo.Some(0)})
	require.ErrorIs(t, err, ErrConstructingTimedFromWholeDay)

	_, err = timed.Substitute(Fields{Day: mo.Some(30)})
	require.ErrorIs(t, err, ErrInvalidDate)

	_, err = timed.Substitute(Fields{Hour: mo.Some(24)})
	require.ErrorIs(t, err, ErrInvalidDate)
}

func TestSubstituteTimeWith(t *testing.T) {
	timed := utc(2022, time.February, 5, 10, 30, 0)
	other := utc(1999, time.July, 1, 18, 45, 5)

	assert.Equal(t, utc(2022, time.February, 5, 18, 45, 5), timed.SubstituteTimeWith(other))
	assert.Equal(t, timed, timed.SubstituteTimeWith(NewWholeDay(1999, time.July, 1)))

	day := NewWholeDay(2022, time.February, 5)
	assert.Equal(t, day, day.SubstituteTimeWith(NewWholeDay(2000, time.January, 1)))
}

func TestIncrementMonth(t *testing.T) {
	tests := []struct {
		name string
		from Moment
		n    int
		want Moment
	}{
		{"simple", NewWholeDay(2022, time.February, 5), 1, NewWholeDay(2022, time.March, 5)},
		{"twelve months", utc(2022, time.February, 5, 0, 0, 0), 12, utc(2023, time.February, 5, 0, 0, 0)},
		{"december wraps", NewWholeDay(2022, time.December, 15), 1, NewWholeDay(2023, time.January, 15)},
		{"november plus two", NewWholeDay(2022, time.November, 15), 2, NewWholeDay(2023, time.January, 15)},
		{"day 31 skips april", NewWholeDay(2022, time.March, 31), 1, NewWholeDay(2022, time.May, 31)},
		{"day 30 skips february", utc(2022, time.January, 30, 9, 0, 0), 1, utc(2022, time.March, 30, 9, 0, 0)},
		{"leap day", NewWholeDay(2024, time.January, 29), 1, NewWholeDay(2024, time.February, 29)},
		{"non leap day 29", NewWholeDay(2023, time.January, 29), 1, NewWholeDay(2023, time.March, 29)},
		{"negative", NewWholeDay(2022, time.January, 10), -1, NewWholeDay(2021, time.December, 10)},
		{"many years", NewWholeDay(2022, time.June, 1), 30, NewWholeDay(2024, time.December, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.from.IncrementMonth(tt.n)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.from.Kind(), got.Kind())
		})
	}
}

func TestIncrementMonthTwelveMatchesIncrementYear(t *testing.T) {
	start := time.Date(2019, 1, 1, 13, 15, 0, 0, time.UTC)
	for i := 0; i < 400; i++ {
		tm := start.AddDate(0, 0, i)
		if tm.Day() > 28 {
			continue
		}
		for _, m := range []Moment{WholeDayOf(tm), NewTimed(tm)} {
			byMonth := m.IncrementMonth(12)
			byYear := m.IncrementYear(1)
			assert.True(t, byMonth.SameDate(byYear), "%s: %s vs %s", m, byMonth, byYear)
		}
	}
}

func TestIncrementYear(t *testing.T) {
	assert.Equal(t, NewWholeDay(2023, time.February, 5), NewWholeDay(2022, time.February, 5).IncrementYear(1))
	assert.Equal(t, utc(2032, time.July, 4, 18, 0, 0), utc(2022, time.July, 4, 18, 0, 0).IncrementYear(10))

	// Feb 29 into a common year rolls over to Mar 1.
	assert.Equal(t, NewWholeDay(2025, time.March, 1), NewWholeDay(2024, time.February, 29).IncrementYear(1))
	assert.Equal(t, utc(2025, time.March, 1, 8, 0, 0), utc(2024, time.February, 29, 8, 0, 0).IncrementYear(1))
	assert.Equal(t, NewWholeDay(2028, time.February, 29), NewWholeDay(2024, time.February, 29).IncrementYear(4))
}

func TestNextWeekday(t *testing.T) {
	sat := NewWholeDay(2022, time.February, 5)

	tests := []struct {
		days []time.Weekday
		want Moment
	}{
		{[]time.Weekday{time.Friday}, sat.AddDays(6)},
		{[]time.Weekday{time.Sunday}, sat.AddDays(1)},
		{[]time.Weekday{time.Saturday}, sat.AddDays(7)},
		{[]time.Weekday{time.Friday, time.Sunday}, sat.AddDays(1)},
		{[]time.Weekday{time.Friday, time.Saturday}, sat.AddDays(6)},
		{[]time.Weekday{time.Monday, time.Friday}, sat.AddDays(2)},
	}
	for _, tt := range tests {
		got, ok := sat.NextWeekday(tt.days...)
		require.True(t, ok)
		assert.Equal(t, tt.want, got, "%v", tt.days)
	}

	_, ok := sat.NextWeekday()
	assert.False(t, ok)

	timed := utc(2022, time.February, 7, 9, 30, 0)
	got, ok := timed.NextWeekday(time.Wednesday)
	require.True(t, ok)
	assert.Equal(t, utc(2022, time.February, 9, 9, 30, 0), got)
}

func TestResolveOrdinal(t *testing.T) {
	feb := NewWholeDay(2022, time.February, 5)

	first, err := feb.ResolveOrdinal(1, time.Sunday)
	require.NoError(t, err)
	assert.Equal(t, NewWholeDay(2022, time.February, 6), first)

	last, err := feb.ResolveOrdinal(-1, time.Sunday)
	require.NoError(t, err)
	assert.Equal(t, NewWholeDay(2022, time.February, 27), last)

	second, err := feb.ResolveOrdinal(2, time.Friday)
	require.NoError(t, err)
	assert.Equal(t, NewWholeDay(2022, time.February, 11), second)

	firstTue, err := feb.ResolveOrdinal(1, time.Tuesday)
	require.NoError(t, err)
	assert.Equal(t, NewWholeDay(2022, time.February, 1), firstTue)

	lastMon, err := feb.ResolveOrdinal(-1, time.Monday)
	require.NoError(t, err)
	assert.Equal(t, NewWholeDay(2022, time.February, 28), lastMon)

	timed := utc(2022, time.March, 20, 17, 45, 0)
	got, err := timed.ResolveOrdinal(-2, time.Thursday)
	require.NoError(t, err)
	assert.Equal(t, utc(2022, time.March, 24, 17, 45, 0), got)

	_, err = feb.ResolveOrdinal(5, time.Monday)
	require.ErrorIs(t, err, ErrOrdinalNotInMonth)

	_, err = feb.ResolveOrdinal(-5, time.Monday)
	require.ErrorIs(t, err, ErrOrdinalNotInMonth)

	_, err = feb.ResolveOrdinal(0, time.Monday)
	require.ErrorIs(t, err, ErrInvalidOrdinal)
}

func TestFormatAndString(t *testing.T) {
	day := NewWholeDay(2022, time.February, 5)
	timed := utc(2022, time.February, 5, 10, 30, 0)

	assert.Equal(t, "2022-02-05", day.String())
	assert.Equal(t, "2022-02-05T10:30:00Z", timed.String())
	assert.Equal(t, "20220205", day.Format())
	assert.Equal(t, "20220205T103000Z", timed.Format())
	assert.Equal(t, "<invalid moment>", Moment{}.String())

	text, err := timed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2022-02-05T10:30:00Z", string(text))
}

func TestIn(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)

	day := NewWholeDay(2022, time.February, 5)
	assert.Equal(t, time.Date(2022, 2, 5, 0, 0, 0, 0, seoul), day.In(seoul))

	timed := utc(2022, time.February, 5, 20, 0, 0)
	got := timed.In(seoul)
	assert.Equal(t, 6, got.Day())
	assert.Equal(t, 5, got.Hour())
}
