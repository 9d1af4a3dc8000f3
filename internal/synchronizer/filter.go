package synchronizer

import (
	"strings"
	"time"

	"rider-order-sync/internal/model"
)

// Filter selects orders for a view. Every non-zero field must match.
type Filter struct {
	// Status keeps orders with exactly this status.
	Status model.Status
	// Statuses keeps orders whose status is any of these.
	Statuses []model.Status
	// ExcludeStatuses drops orders whose status is any of these.
	ExcludeStatuses []model.Status
	// Search is a case-insensitive substring of the tracking id or customer phone.
	Search string
	// Date is matched against the order's assigned date as a calendar day.
	Date string
}

// Screen presets.
var (
	HomeFilter = Filter{
		ExcludeStatuses: []model.Status{model.StatusDelivered, model.StatusComplete},
	}
	PendingFilter = Filter{
		Statuses: []model.Status{model.StatusPending},
	}
	DeliveredFilter = Filter{
		Statuses: []model.Status{model.StatusDelivered, model.StatusComplete, model.StatusReturnReceive},
	}
)

// Merge returns f with the search-like fields of other layered on top.
// Presets use it to accept user-supplied search, date and status.
func (f Filter) Merge(other Filter) Filter {
	if other.Status != "" {
		f.Status = other.Status
	}
	if len(other.Statuses) > 0 {
		f.Statuses = other.Statuses
	}
	if len(other.ExcludeStatuses) > 0 {
		f.ExcludeStatuses = append(append([]model.Status{}, f.ExcludeStatuses...), other.ExcludeStatuses...)
	}
	if other.Search != "" {
		f.Search = other.Search
	}
	if other.Date != "" {
		f.Date = other.Date
	}
	return f
}

// dateLayouts are tried in order. The backend writes assigned dates in the
// en-PK locale form (dd/mm/yyyy); clients usually send ISO dates.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"2006/01/02",
}

func parseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type matcher struct {
	status   model.Status
	include  map[model.Status]bool
	exclude  map[model.Status]bool
	search   string
	date     string
	day      time.Time
	dayValid bool
}

func (f Filter) matcher() matcher {
	m := matcher{
		status: f.Status,
		search: strings.ToLower(strings.TrimSpace(f.Search)),
		date:   strings.TrimSpace(f.Date),
	}
	if len(f.Statuses) > 0 {
		m.include = make(map[model.Status]bool, len(f.Statuses))
		for _, st := range f.Statuses {
			m.include[st] = true
		}
	}
	if len(f.ExcludeStatuses) > 0 {
		m.exclude = make(map[model.Status]bool, len(f.ExcludeStatuses))
		for _, st := range f.ExcludeStatuses {
			m.exclude[st] = true
		}
	}
	if m.date != "" {
		m.day, m.dayValid = parseDay(m.date)
	}
	return m
}

func (m matcher) match(o *model.Order) bool {
	if m.status != "" && o.Status != m.status {
		return false
	}
	if m.include != nil && !m.include[o.Status] {
		return false
	}
	if m.exclude != nil && m.exclude[o.Status] {
		return false
	}
	if m.search != "" &&
		!strings.Contains(strings.ToLower(o.TrackingID), m.search) &&
		!strings.Contains(strings.ToLower(o.CustomerPhone), m.search) {
		return false
	}
	if m.date != "" && !m.matchDate(o.AssignedDate) {
		return false
	}
	return true
}

func (m matcher) matchDate(assigned string) bool {
	if m.dayValid {
		if day, ok := parseDay(assigned); ok {
			return day.Equal(m.day)
		}
	}
	return strings.TrimSpace(assigned) == m.date
}
