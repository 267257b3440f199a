package storage

import (
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/server/recurrence"
)

// Materialize expands a series master into its occurrences whose start
// falls on a civil day of [rangeStart, rangeEnd). Each occurrence copies the
// master's fields, keeps its duration and carries a derived id. Detached
// dates are not generated. Non-series events yield nil.
func Materialize(engine *recurrence.Engine, series Event, rangeStart, rangeEnd time.Time) []Event {
	master, ok := series.Kind.(SeriesMaster)
	if !ok {
		return nil
	}

	occurrences := engine.Occurrences(series.Start, series.End, master.Pattern, rangeStart, rangeEnd)
	if len(occurrences) == 0 {
		return nil
	}

	out := make([]Event, 0, len(occurrences))
	for _, o := range occurrences {
		out = append(out, occurrenceOf(series, o.Start, o.End))
	}
	return out
}

// SynthesizeOccurrence builds the transient occurrence of series generated
// on day, without checking that the pattern matches it.
func SynthesizeOccurrence(series Event, day time.Time) Event {
	loc := series.Start.Location()
	y, m, d := day.Date()
	h, mi, s := series.Start.Clock()
	start := time.Date(y, m, d, h, mi, s, series.Start.Nanosecond(), loc)
	return occurrenceOf(series, start, start.Add(series.Duration()))
}

func occurrenceOf(series Event, start, end time.Time) Event {
	occ := series
	occ.ID = OccurrenceID(series.ID, start)
	occ.Start = start
	occ.End = end
	occ.Kind = Occurrence{SeriesID: series.ID, OriginalStart: start}
	return occ
}
