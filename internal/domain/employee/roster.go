package employee

import (
	"sort"
	"sync"
	"time"
)

type EventKind string

const (
	EventInserted EventKind = "INSERT"
	EventUpdated  EventKind = "UPDATE"
	EventDeleted  EventKind = "DELETE"
)

// Event is one row change on a company's employee list.
type Event struct {
	Kind     EventKind `json:"kind"`
	Employee Employee  `json:"employee"`
}

// Roster is a company's employee list keyed by id, maintained by applying
// change events in arrival order. The last event for an id wins.
type Roster struct {
	mu   sync.RWMutex
	byID map[string]Employee
}

func NewRoster(initial []Employee) *Roster {
	r := &Roster{byID: make(map[string]Employee, len(initial))}
	for _, emp := range initial {
		r.byID[emp.ID] = emp
	}
	return r
}

// Apply merges ev and reports whether the roster changed. Updates for an
// unseen id insert it; deletes for an unseen id are no-ops.
func (r *Roster) Apply(ev Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := ev.Employee.ID
	current, exists := r.byID[id]
	switch ev.Kind {
	case EventInserted, EventUpdated:
		if exists && sameEmployee(current, ev.Employee) {
			return false
		}
		r.byID[id] = ev.Employee
		return true
	case EventDeleted:
		if !exists {
			return false
		}
		delete(r.byID, id)
		return true
	}
	return false
}

func (r *Roster) Get(id string) (Employee, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	emp, ok := r.byID[id]
	return emp, ok
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// List returns employees newest first.
func (r *Roster) List() []Employee {
	r.mu.RLock()
	out := make([]Employee, 0, len(r.byID))
	for _, emp := range r.byID {
		out = append(out, emp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func sameEmployee(a, b Employee) bool {
	return a.ID == b.ID &&
		a.UserID == b.UserID &&
		a.CompanyID == b.CompanyID &&
		a.FirstName == b.FirstName &&
		a.LastName == b.LastName &&
		a.Email == b.Email &&
		a.Cedula == b.Cedula &&
		a.Phone == b.Phone &&
		a.MonthlySalary.Equal(b.MonthlySalary) &&
		a.IsActive == b.IsActive &&
		a.IsVerified == b.IsVerified &&
		a.IsApproved == b.IsApproved &&
		a.SelfRegistered == b.SelfRegistered &&
		a.MustUploadCedula == b.MustUploadCedula &&
		sameTime(a.KYCSubmittedAt, b.KYCSubmittedAt) &&
		a.BankCode == b.BankCode &&
		a.UpdatedAt.Equal(b.UpdatedAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
