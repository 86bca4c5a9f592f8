package moment

import "fmt"

// Overlap is the relation between a reference moment and an interval.
type Overlap int

const (
	FinishesPast Overlap = iota
	StartsPastEndsSameDay
	StartsPastEndsFuture
	StartSameDayEndsSameDay
	StartsSameDayEndsFuture
	StartsFuture
)

var overlapNames = map[Overlap]string{
	FinishesPast:            "finishes-past",
	StartsPastEndsSameDay:   "starts-past-ends-same-day",
	StartsPastEndsFuture:    "starts-past-ends-future",
	StartSameDayEndsSameDay: "start-same-day-ends-same-day",
	StartsSameDayEndsFuture: "starts-same-day-ends-future",
	StartsFuture:            "starts-future",
}

func (o Overlap) String() string {
	if name, ok := overlapNames[o]; ok {
		return name
	}
	return fmt.Sprintf("overlap(%d)", int(o))
}

// MarshalText implements encoding.TextMarshaler.
func (o Overlap) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Classify relates the interval [start, end] to reference. A whole-day
// reference compares calendar dates only; a timed reference compares instants,
// with whole-day endpoints taken at their midnight.
func Classify(reference, start, end Moment) (Overlap, error) {
	var cs, ce int
	if reference.IsWholeDay() {
		cs = compareDates(start, reference)
		ce = compareDates(end, reference)
	} else {
		cs = start.Compare(reference)
		ce = end.Compare(reference)
	}

	switch {
	case cs < 0 && ce < 0:
		return FinishesPast, nil
	case cs < 0 && ce == 0:
		return StartsPastEndsSameDay, nil
	case cs < 0:
		return StartsPastEndsFuture, nil
	case cs == 0 && ce < 0:
		return 0, fmt.Errorf("%w: start %s, end %s, reference %s", ErrIllegalInterval, start, end, reference)
	case cs == 0 && ce == 0:
		return StartSameDayEndsSameDay, nil
	case cs == 0:
		return StartsSameDayEndsFuture, nil
	default:
		return StartsFuture, nil
	}
}

// Classify is Classify with m as the reference.
func (m Moment) Classify(start, end Moment) (Overlap, error) {
	return Classify(m, start, end)
}

func compareDates(a, b Moment) int {
	return WholeDayOf(a.t).t.Compare(WholeDayOf(b.t).t)
}
