package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PascalChui/ingenius-plan-sub000/server/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	formatJSON = "json"
	formatText = "text"
)

type eventView struct {
	ID          string    `json:"id"`
	CalendarID  string    `json:"calendarId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Category    string    `json:"category"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay"`
	Kind        string    `json:"kind"`
	SeriesID    string    `json:"seriesId,omitempty"`
	IsException bool      `json:"isException,omitempty"`
	RRule       string    `json:"rrule,omitempty"`
	CreatedBy   string    `json:"createdBy,omitempty"`
}

func viewOf(e storage.Event) eventView {
	v := eventView{
		ID:          e.ID,
		CalendarID:  e.CalendarID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Category:    string(e.Category),
		Start:       e.Start,
		End:         e.End,
		AllDay:      e.AllDay,
		Kind:        storage.KindName(e.Kind),
		CreatedBy:   e.CreatedBy,
	}
	switch k := e.Kind.(type) {
	case storage.Occurrence:
		v.SeriesID = k.SeriesID
		v.IsException = k.IsException
	case storage.SeriesMaster:
		// a pattern that can't be rendered is still listed
		v.RRule, _ = k.Pattern.RRule()
	}
	return v
}

func writeEvents(w io.Writer, format string, events []storage.Event) error {
	switch format {
	case formatJSON, "":
		views := make([]eventView, 0, len(events))
		for _, e := range events {
			views = append(views, viewOf(e))
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case formatText:
		title := cases.Title(language.English)
		for _, e := range events {
			when := e.Start.Format("Mon 02 Jan 15:04") + "-" + e.End.Format("15:04")
			if e.AllDay {
				when = e.Start.Format("Mon 02 Jan") + " all day"
			}
			if _, err := fmt.Fprintf(w, "%s  %s [%s] (%s)\n", when, e.Title, title.String(string(e.Category)), e.ID); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func writeLines(w io.Writer, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func writeMetrics(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
