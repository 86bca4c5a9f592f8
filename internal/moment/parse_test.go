package moment

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withLocalZone(t *testing.T, loc *time.Location) {
	t.Helper()
	prev := localZone
	localZone = func() *time.Location { return loc }
	t.Cleanup(func() { localZone = prev })
}

func TestParse(t *testing.T) {
	withLocalZone(t, time.FixedZone("CET", 3600))

	day, err := Parse("20220205")
	require.NoError(t, err)
	assert.Equal(t, NewWholeDay(2022, time.February, 5), day)

	z, err := Parse("20220205T103000Z")
	require.NoError(t, err)
	assert.True(t, z.IsTimed())
	assert.Equal(t, utc(2022, time.February, 5, 10, 30, 0), z)

	floating, err := Parse("20220205T103000")
	require.NoError(t, err)
	assert.Equal(t, utc(2022, time.February, 5, 9, 30, 0), floating)

	for _, bad := range []string{"", "2022020", "2022-02-05", "20221305", "20220205T25000", "20220205T103000X", "garbage!"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrMalformed, bad)
	}
}

func TestParseWholeDayIgnoresLocalOffset(t *testing.T) {
	withLocalZone(t, time.FixedZone("KST", 9*3600))

	day, err := Parse("20220101")
	require.NoError(t, err)
	assert.Equal(t, NewWholeDay(2022, time.January, 1), day)
}

func TestParseZoned(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)

	z, err := ParseZoned("TZID=Europe/Rome:20220106T154000")
	require.NoError(t, err)
	assert.Equal(t, rome.String(), z.Location.String())
	assert.Equal(t, utc(2022, time.January, 6, 14, 40, 0), z.Moment)

	z, err = ParseZoned("TZID=Europe/Rome:20211006T170000")
	require.NoError(t, err)
	assert.Equal(t, utc(2021, time.October, 6, 15, 0, 0), z.Moment)

	z, err = ParseZoned(`TZID="America/New_York":20220704T090000`)
	require.NoError(t, err)
	assert.Equal(t, utc(2022, time.July, 4, 13, 0, 0), z.Moment)

	z, err = ParseZoned("VALUE=DATE:20220207")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, z.Location)
	assert.Equal(t, NewWholeDay(2022, time.February, 7), z.Moment)

	z, err = ParseZoned("TZID=Europe/Rome:20220207")
	require.NoError(t, err)
	assert.Equal(t, NewWholeDay(2022, time.February, 7), z.Moment)
}

func TestParseZonedRejectsDSTTransitions(t *testing.T) {
	// Spring forward: 02:30 does not exist in Rome on 2022-03-27.
	_, err := ParseZoned("TZID=Europe/Rome:20220327T023000")
	require.ErrorIs(t, err, ErrAmbiguousTime)

	// Fall back: 02:30 happens twice in Rome on 2022-10-30.
	_, err = ParseZoned("TZID=Europe/Rome:20221030T023000")
	require.ErrorIs(t, err, ErrAmbiguousTime)

	// Around the transitions the mapping is unique.
	z, err := ParseZoned("TZID=Europe/Rome:20220327T033000")
	require.NoError(t, err)
	assert.Equal(t, utc(2022, time.March, 27, 1, 30, 0), z.Moment)

	z, err = ParseZoned("TZID=Europe/Rome:20221030T033000")
	require.NoError(t, err)
	assert.Equal(t, utc(2022, time.October, 30, 2, 30, 0), z.Moment)
}

func TestParseZonedErrors(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"20220106T154000", ErrMissingTZID},
		{"DATE:20220106", ErrMissingTZID},
		{"TZID=Europe/Rome", ErrMalformed},
		{"TZID=:20220106T154000", ErrMalformed},
		{"TZID=Not/AZone:20220106T154000", ErrUnknownZone},
		{"TZID=Europe/Rome:2022-01-06", ErrMalformed},
		{"VALUE=DATE:2022010", ErrMalformed},
	}
	for _, tt := range tests {
		_, err := ParseZoned(tt.in)
		assert.ErrorIs(t, err, tt.want, tt.in)
	}
}
