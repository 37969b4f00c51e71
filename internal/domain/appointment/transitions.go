package appointment

// Action is a lifecycle operation requested by a caller.
type Action string

const (
	ActionCreate     Action = "create"
	ActionConfirm    Action = "confirm"
	ActionCancel     Action = "cancel"
	ActionCheckIn    Action = "check_in"
	ActionComplete   Action = "complete"
	ActionMarkNoShow Action = "mark_no_show"
)

// TransitionActions lists every action that applies to an existing
// appointment.
var TransitionActions = []Action{
	ActionConfirm, ActionCancel, ActionCheckIn, ActionComplete, ActionMarkNoShow,
}

type edge struct {
	from   Status
	action Action
}

// transitions is the single source of truth for the appointment state machine.
// create is handled separately: it has no source status and always lands in
// pending.
var transitions = map[edge]Status{
	{StatusPending, ActionConfirm}:      StatusConfirmed,
	{StatusPending, ActionCancel}:       StatusCancelled,
	{StatusConfirmed, ActionCancel}:     StatusCancelled,
	{StatusConfirmed, ActionCheckIn}:    StatusInProgress,
	{StatusConfirmed, ActionMarkNoShow}: StatusNoShow,
	{StatusInProgress, ActionComplete}:  StatusCompleted,
}

// Next returns the target status of action from status from.
func Next(from Status, action Action) (Status, bool) {
	to, ok := transitions[edge{from, action}]
	return to, ok
}

// AllowedActions returns the actions defined from status s, in table order.
func AllowedActions(s Status) []Action {
	var out []Action
	for _, a := range TransitionActions {
		if _, ok := Next(s, a); ok {
			out = append(out, a)
		}
	}
	return out
}
