package query

import (
	"github.com/PascalChui/ingenius-plan-sub000/server/storage"
)

// Filter restricts which events a query returns. A nil set means no
// restriction; an empty, non-nil set selects nothing.
type Filter struct {
	ActiveCalendars map[string]struct{}
	Categories      map[storage.Category]struct{}
}

// NewFilter builds a filter from id and category lists. A nil list leaves
// that dimension unrestricted.
func NewFilter(calendarIDs []string, categories []storage.Category) Filter {
	var f Filter
	if calendarIDs != nil {
		f.ActiveCalendars = make(map[string]struct{}, len(calendarIDs))
		for _, id := range calendarIDs {
			f.ActiveCalendars[id] = struct{}{}
		}
	}
	if categories != nil {
		f.Categories = make(map[storage.Category]struct{}, len(categories))
		for _, c := range categories {
			f.Categories[c] = struct{}{}
		}
	}
	return f
}

// FilterFromCalendars selects the active calendars among calendars and
// the given categories.
func FilterFromCalendars(calendars []storage.Calendar, categories []storage.Category) Filter {
	ids := make([]string, 0, len(calendars))
	for _, c := range calendars {
		if c.Active {
			ids = append(ids, c.ID)
		}
	}
	return NewFilter(ids, categories)
}

// Allows reports whether events of calendarID and category pass the filter
func (f Filter) Allows(calendarID string, category storage.Category) bool {
	if f.ActiveCalendars != nil {
		if _, ok := f.ActiveCalendars[calendarID]; !ok {
			return false
		}
	}
	if f.Categories != nil {
		if _, ok := f.Categories[category]; !ok {
			return false
		}
	}
	return true
}
