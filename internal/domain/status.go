package domain

import "fmt"

// RollStatus is the lifecycle state of a roll. Exactly one holds at any time.
type RollStatus string

const (
	RollStatusUnmapped   RollStatus = "unmapped"
	RollStatusMapped     RollStatus = "mapped"
	RollStatusAllocated  RollStatus = "allocated"
	RollStatusDispatched RollStatus = "dispatched"
	RollStatusReturned   RollStatus = "returned"
	RollStatusScrap      RollStatus = "scrap"
)

// AllRollStatuses lists every status in lifecycle order
var AllRollStatuses = []RollStatus{
	RollStatusUnmapped,
	RollStatusMapped,
	RollStatusAllocated,
	RollStatusDispatched,
	RollStatusReturned,
	RollStatusScrap,
}

// IsValid reports whether s is one of the declared statuses
func (s RollStatus) IsValid() bool {
	for _, known := range AllRollStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no operation can leave s
func (s RollStatus) IsTerminal() bool {
	return s == RollStatusReturned || s == RollStatusScrap
}

// ParseRollStatus converts a stored or requested value into a RollStatus
func ParseRollStatus(s string) (RollStatus, error) {
	status := RollStatus(s)
	if !status.IsValid() {
		return "", NewValidationError("status", fmt.Sprintf("unknown roll status %q", s))
	}
	return status, nil
}

// Operation is an event that moves a roll between statuses
type Operation string

const (
	OpClassify   Operation = "classify"
	OpAllocate   Operation = "allocate"
	OpDeallocate Operation = "deallocate"
	OpDispatch   Operation = "dispatch"
	OpReturn     Operation = "return"
	OpScrap      Operation = "scrap"
)

type transition struct {
	from []RollStatus
	to   RollStatus
}

// transitions is the complete state machine. Receipt is not listed: it creates a
// roll directly in Unmapped or Mapped.
var transitions = map[Operation]transition{
	OpClassify:   {from: []RollStatus{RollStatusUnmapped}, to: RollStatusMapped},
	OpAllocate:   {from: []RollStatus{RollStatusMapped}, to: RollStatusAllocated},
	OpDeallocate: {from: []RollStatus{RollStatusAllocated}, to: RollStatusMapped},
	OpDispatch:   {from: []RollStatus{RollStatusAllocated}, to: RollStatusDispatched},
	OpReturn:     {from: []RollStatus{RollStatusDispatched}, to: RollStatusReturned},
	OpScrap:      {from: []RollStatus{RollStatusUnmapped, RollStatusMapped, RollStatusAllocated}, to: RollStatusScrap},
}

// Next returns the status op leads to from s, or false if op is illegal in s
func (s RollStatus) Next(op Operation) (RollStatus, bool) {
	t, ok := transitions[op]
	if !ok {
		return "", false
	}
	for _, from := range t.from {
		if from == s {
			return t.to, true
		}
	}
	return "", false
}

// AllowedFrom lists the statuses op may be applied to
func AllowedFrom(op Operation) []RollStatus {
	t := transitions[op]
	out := make([]RollStatus, len(t.from))
	copy(out, t.from)
	return out
}
