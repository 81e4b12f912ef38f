package views

import (
	"fmt"
	"strings"
	"time"

	"medflow-web/internal/models"
	"medflow-web/internal/workflow"
)

// Window restricts a list to patients created recently.
type Window string

const (
	WindowAll   Window = ""
	WindowToday Window = "today"
	WindowWeek  Window = "week"
	WindowMonth Window = "month"
)

// ParseWindow accepts "", "all", "today", "week" and "month".
func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case WindowAll, WindowToday, WindowWeek, WindowMonth:
		return w, nil
	case "all":
		return WindowAll, nil
	default:
		return "", fmt.Errorf("unknown date filter %q", s)
	}
}

// Filter narrows a cached list for display.
type Filter struct {
	Query  string
	Status models.PatientStatus // "" means all
	Since  Window
}

// ParseFilter builds a Filter from raw query values.
func ParseFilter(query, status, since string) (Filter, error) {
	f := Filter{Query: strings.TrimSpace(query)}
	if status != "" && status != "all" {
		s, err := workflow.ParseStatus(status)
		if err != nil {
			return Filter{}, err
		}
		f.Status = s
	}
	w, err := ParseWindow(since)
	if err != nil {
		return Filter{}, err
	}
	f.Since = w
	return f, nil
}

// Match reports whether p passes the filter at time now.
func (f Filter) Match(p *models.Patient, now time.Time) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if !f.matchesQuery(p) {
		return false
	}
	return f.matchesWindow(p, now)
}

func (f Filter) matchesQuery(p *models.Patient) bool {
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	return strings.Contains(strings.ToLower(p.FullName()), q) ||
		strings.Contains(p.PhoneNumber, f.Query) ||
		strings.Contains(strings.ToLower(p.Address), q)
}

func (f Filter) matchesWindow(p *models.Patient, now time.Time) bool {
	created := p.CreatedAt.In(now.Location())
	switch f.Since {
	case WindowToday:
		y1, m1, d1 := created.Date()
		y2, m2, d2 := now.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case WindowWeek:
		return !created.Before(now.AddDate(0, 0, -7))
	case WindowMonth:
		return !created.Before(now.AddDate(0, -1, 0))
	}
	return true
}

// Apply returns the patients that pass the filter, preserving order.
func (f Filter) Apply(patients []models.Patient, now time.Time) []models.Patient {
	out := make([]models.Patient, 0, len(patients))
	for i := range patients {
		if f.Match(&patients[i], now) {
			out = append(out, patients[i])
		}
	}
	return out
}

// Stats counts patients per pipeline stage.
type Stats struct {
	Total              int `json:"total"`
	Registered         int `json:"registered"`
	AwaitingDoctor     int `json:"awaitingDoctor"`
	AwaitingMedication int `json:"awaitingMedication"`
	Completed          int `json:"completed"`
}

// ComputeStats tallies patients by status.
func ComputeStats(patients []models.Patient) Stats {
	s := Stats{Total: len(patients)}
	for _, p := range patients {
		switch p.Status {
		case models.StatusRegistered:
			s.Registered++
		case models.StatusAwaitingDoctor:
			s.AwaitingDoctor++
		case models.StatusAwaitingMedication:
			s.AwaitingMedication++
		case models.StatusCompleted:
			s.Completed++
		}
	}
	return s
}
