package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Listen   string  `yaml:"listen" validate:"hostname_port"`
	Refresh  string  `yaml:"refresh" validate:"cron"`
	Zone     string  `yaml:"timezone" validate:"omitempty,timezone"`
	Days     int     `query:"days" validate:"min=1,max=31"`
	Level    string  `json:"level" validate:"oneof=debug info"`
	Children []child `yaml:"children" validate:"dive"`
}

type child struct {
	URL string `yaml:"url" validate:"omitempty,url"`
}

func valid() sample {
	return sample{Listen: "127.0.0.1:8080", Refresh: "*/15 * * * *", Days: 3, Level: "info"}
}

func TestStructValid(t *testing.T) {
	assert.NoError(t, Struct(valid()))

	s := valid()
	s.Refresh = "@hourly"
	s.Zone = "Europe/Rome"
	s.Children = []child{{URL: "https://example.com/cal.ics"}, {}}
	assert.NoError(t, Struct(s))
}

func TestStructMessages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*sample)
		field  string
		want   string
	}{
		{"listen", func(s *sample) { s.Listen = "nowhere" }, "listen", "listen must be host:port"},
		{"cron", func(s *sample) { s.Refresh = "61 * * * *" }, "refresh", "refresh must be a 5-field cron spec or descriptor"},
		{"zone", func(s *sample) { s.Zone = "Mars/Olympus" }, "timezone", "timezone must be an IANA time zone name"},
		{"min", func(s *sample) { s.Days = 0 }, "days", "days must be at least 1"},
		{"max", func(s *sample) { s.Days = 32 }, "days", "days must be at most 31"},
		{"oneof", func(s *sample) { s.Level = "loud" }, "level", "level"},
		{"dive", func(s *sample) { s.Children = []child{{URL: "::"}} }, "children[0].url", "url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)
			err := Struct(s)
			require.Error(t, err)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
			assert.Contains(t, fe.Message, tt.want)
		})
	}
}

func TestStructJoinsAll(t *testing.T) {
	s := valid()
	s.Listen = ""
	s.Days = 0
	err := Struct(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen")
	assert.Contains(t, err.Error(), "days")
}
