package domain

// Guard names who may perform a transition.
type Guard int

const (
	// GuardUnclaimed allows any operator while nobody holds the request.
	GuardUnclaimed Guard = iota
	// GuardHolder requires the operator currently holding the request.
	GuardHolder
	// GuardHolderOrSystem additionally admits the expiry sweep.
	GuardHolderOrSystem
	// GuardAny admits any actor, including the system.
	GuardAny
	// GuardSystem admits only the system.
	GuardSystem
)

// Transition is one edge of the request workflow.
type Transition struct {
	From  RequestStatus
	To    RequestStatus
	Guard Guard
}

var transitions = []Transition{
	{From: StatusPending, To: StatusAssigned, Guard: GuardUnclaimed},
	{From: StatusAssigned, To: StatusPending, Guard: GuardHolderOrSystem},
	{From: StatusAssigned, To: StatusProcessing, Guard: GuardHolder},
	{From: StatusProcessing, To: StatusCompleted, Guard: GuardHolder},
	{From: StatusProcessing, To: StatusRejected, Guard: GuardHolder},
	{From: StatusAssigned, To: StatusFailed, Guard: GuardAny},
	{From: StatusProcessing, To: StatusFailed, Guard: GuardAny},
	{From: StatusPending, To: StatusFailed, Guard: GuardSystem},
}

// LookupTransition returns the edge from -> to, if the workflow has one.
func LookupTransition(from, to RequestStatus) (Transition, bool) {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return t, true
		}
	}
	return Transition{}, false
}

// Transitions returns a copy of every legal edge.
func Transitions() []Transition {
	out := make([]Transition, len(transitions))
	copy(out, transitions)
	return out
}

// CheckTransition validates that actor may move req to the target status.
// Parameters:
//   - req: current request state.
//   - to: requested status.
//   - actor: operator id, or ActorSystem for the sweep.
// Returns:
//   - error: *InvalidTransitionError when no edge exists or the actor kind is
//     not admitted, *NotAuthorizedError when an operator does not hold the request.
func CheckTransition(req *AIRequest, to RequestStatus, actor string) error {
	t, ok := LookupTransition(req.Status, to)
	if !ok {
		reason := ""
		if req.Status.IsTerminal() {
			reason = "request is in a terminal state"
		} else if req.Status == to {
			reason = "request is already " + string(to)
		}
		return &InvalidTransitionError{RequestID: req.ID, From: req.Status, To: to, Reason: reason}
	}

	isSystem := actor == ActorSystem
	switch t.Guard {
	case GuardUnclaimed:
		if isSystem {
			return &InvalidTransitionError{RequestID: req.ID, From: req.Status, To: to, Reason: "only operators may claim requests"}
		}
		if req.AssignedAdminID != nil {
			return &InvalidTransitionError{RequestID: req.ID, From: req.Status, To: to, Reason: "request already claimed"}
		}
	case GuardHolder:
		if isSystem {
			return &InvalidTransitionError{RequestID: req.ID, From: req.Status, To: to, Reason: "requires the assigned operator"}
		}
		if req.HolderID() != actor {
			return &NotAuthorizedError{RequestID: req.ID, AdminID: actor, HolderID: req.HolderID()}
		}
	case GuardHolderOrSystem:
		if !isSystem && req.HolderID() != actor {
			return &NotAuthorizedError{RequestID: req.ID, AdminID: actor, HolderID: req.HolderID()}
		}
	case GuardSystem:
		if !isSystem {
			return &InvalidTransitionError{RequestID: req.ID, From: req.Status, To: to, Reason: "only the expiry sweep may fail unclaimed requests"}
		}
	case GuardAny:
	}
	return nil
}
