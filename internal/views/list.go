package views

import (
	"sort"
	"sync"
	"time"

	"medflow-web/internal/models"
)

// PatientList is a view's local, perishable copy of the patients it shows.
//
// Every refresh and local mutation bumps a generation counter; a refresh
// only lands if nothing newer happened while it was in flight, so a slow
// response can never resurrect a patient that was already moved on.
type PatientList struct {
	mu         sync.Mutex
	patients   []models.Patient
	generation uint64
	loaded     bool
	closed     bool
	fetchedAt  time.Time
	inflight   map[string]struct{}
}

func newPatientList() *PatientList {
	return &PatientList{inflight: make(map[string]struct{})}
}

// beginRefresh returns the generation a refresh must still match to commit.
func (l *PatientList) beginRefresh() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.generation++
	return l.generation
}

// commit replaces the list if gen is still current.
func (l *PatientList) commit(gen uint64, patients []models.Patient, at time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || gen != l.generation {
		return false
	}
	sorted := make([]models.Patient, len(patients))
	copy(sorted, patients)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	l.patients = sorted
	l.loaded = true
	l.fetchedAt = at
	return true
}

// Snapshot returns a copy of the cached patients in display order.
func (l *PatientList) Snapshot() []models.Patient {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Patient, len(l.patients))
	copy(out, l.patients)
	return out
}

// Loaded reports whether at least one refresh has landed.
func (l *PatientList) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// FetchedAt returns when the current contents were fetched.
func (l *PatientList) FetchedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fetchedAt
}

// Find returns the cached patient with id.
func (l *PatientList) Find(id string) (models.Patient, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.patients {
		if p.ID == id {
			return p, true
		}
	}
	return models.Patient{}, false
}

// Remove drops the patient with id. It reports whether anything was removed.
func (l *PatientList) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	for i, p := range l.patients {
		if p.ID == id {
			l.patients = append(l.patients[:i:i], l.patients[i+1:]...)
			l.generation++
			return true
		}
	}
	return false
}

// Append adds a patient at the end of the list.
func (l *PatientList) Append(p models.Patient) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.patients = append(l.patients, p)
	l.generation++
}

// claim marks id as having a submission in flight. It fails if one already is.
func (l *PatientList) claim(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.inflight[id]; busy {
		return false
	}
	l.inflight[id] = struct{}{}
	return true
}

func (l *PatientList) release(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inflight, id)
}

// Close discards the contents; later refreshes and mutations are ignored.
func (l *PatientList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.patients = nil
}

// Closed reports whether Close has been called.
func (l *PatientList) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
