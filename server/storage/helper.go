package storage

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-ical"
)

const productID = "-//ingenius-plan//Calendar Engine//EN"

// EventsToICS renders materialized events as a VCALENDAR document. Series
// masters are skipped: exported events are always single instances, so no
// recurrence rule leaks out.
func EventsToICS(events []Event) (string, error) {
	var buf bytes.Buffer
	if err := EncodeICS(&buf, events); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// EncodeICS writes events to w as a VCALENDAR document.
func EncodeICS(w io.Writer, events []Event) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for _, e := range events {
		if e.IsSeriesMaster() {
			continue
		}
		cal.Children = append(cal.Children, eventComponent(e).Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func eventComponent(e Event) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, e.ID)
	event.Props.SetText(ical.PropSummary, e.Title)
	if e.Description != "" {
		event.Props.SetText(ical.PropDescription, e.Description)
	}
	if e.Location != "" {
		event.Props.SetText(ical.PropLocation, e.Location)
	}
	if e.Category != "" {
		event.Props.SetText(ical.PropCategories, strings.ToUpper(string(e.Category)))
	}

	if e.AllDay {
		event.Props.SetDate(ical.PropDateTimeStart, e.Start)
		event.Props.SetDate(ical.PropDateTimeEnd, e.End)
	} else {
		event.Props.SetDateTime(ical.PropDateTimeStart, e.Start)
		event.Props.SetDateTime(ical.PropDateTimeEnd, e.End)
	}

	stamp := e.UpdatedAt.OrElse(e.CreatedAt)
	if !e.CreatedAt.IsZero() {
		event.Props.SetDateTime(ical.PropCreated, e.CreatedAt.UTC())
	}
	if !stamp.IsZero() {
		event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	}
	if updated, ok := e.UpdatedAt.Get(); ok {
		event.Props.SetDateTime(ical.PropLastModified, updated.UTC())
	}

	if seriesID, ok := e.RecurrenceID().Get(); ok {
		event.Props.SetText(ical.PropRelatedTo, seriesID)
	}
	return event
}
