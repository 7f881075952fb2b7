package classify

import "github.com/vocalaid/vocalaid/pkg/intent"

// Follow-up actions a caller takes after a classification. These values
// are part of the wire contract with the care front-end.
const (
	ActionTriggerAlert   = "trigger_alert"
	ActionAwaitUser      = "await_user_confirmation"
	ActionResolveConfirm = "resolve_confirmation"
	ActionShowOptions    = "show_options"
	ActionAskRepeat      = "ask_repeat"
)

// NextAction maps a classification result to the follow-up the caller
// should take. An auto-triggered emergency alerts immediately; a
// confirmed YES or NO resolves a pending confirmation rather than opening
// a new one.
func NextAction(r intent.Result) string {
	switch r.Status {
	case intent.StatusAutoTriggered:
		return ActionTriggerAlert
	case intent.StatusConfirmed:
		if r.Intent == intent.Yes || r.Intent == intent.No {
			return ActionResolveConfirm
		}
		return ActionAwaitUser
	case intent.StatusNeedsConfirmation:
		return ActionShowOptions
	default:
		return ActionAskRepeat
	}
}

// UIOptions returns the confirmation buttons the care front-end renders
// for a result's intent.
func UIOptions(it intent.Intent) []string {
	switch it {
	case intent.Help:
		return []string{"Confirm Help", "Cancel"}
	case intent.Water:
		return []string{"Confirm Water", "Cancel"}
	case intent.Emergency:
		return []string{"Cancel Emergency"}
	case intent.Yes, intent.No:
		return []string{"OK"}
	case intent.Unknown:
		return []string{"Repeat", "Cancel"}
	default:
		return []string{"OK", "Cancel"}
	}
}
