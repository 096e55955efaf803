package advance

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
	StatusRejected   Status = "rejected"
)

// legacyRejected is the Spanish literal found on older rows.
const legacyRejected = "rechazada"

var Statuses = []Status{
	StatusPending,
	StatusApproved,
	StatusProcessing,
	StatusCompleted,
	StatusCancelled,
	StatusFailed,
	StatusRejected,
}

// ParseStatus maps a stored status literal onto the closed enum. The legacy
// "rechazada" literal is normalized to StatusRejected; anything else outside
// the enum is a data error.
func ParseStatus(raw string) (Status, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == legacyRejected {
		return StatusRejected, nil
	}
	status := Status(value)
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
	return status, nil
}

func (s Status) Valid() bool {
	for _, candidate := range Statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// CountsAgainstCap reports whether an advance in this status consumes part
// of the earned-wage ceiling.
func (s Status) CountsAgainstCap() bool {
	switch s {
	case StatusCancelled, StatusFailed, StatusRejected:
		return false
	}
	return true
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed, StatusRejected:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusPending:    {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:   {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
