package rrule

import "fmt"

// Frequency is the FREQ of a rule.
type Frequency int

const (
	FreqYearly Frequency = iota + 1
	FreqMonthly
	FreqWeekly
	FreqDaily
)

var frequencyNames = map[Frequency]string{
	FreqYearly:  "YEARLY",
	FreqMonthly: "MONTHLY",
	FreqWeekly:  "WEEKLY",
	FreqDaily:   "DAILY",
}

func (f Frequency) String() string {
	if name, ok := frequencyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("FREQ(%d)", int(f))
}

// ParseFrequency maps a FREQ keyword to its Frequency.
func ParseFrequency(s string) (Frequency, error) {
	for f, name := range frequencyNames {
		if name == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFrequency, s)
}
