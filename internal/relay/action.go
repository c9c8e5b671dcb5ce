package relay

import "strings"

// Action is the closed set of widget actions the relay forwards.
type Action int

const (
	ActionUnknown Action = iota
	ActionPlay
	ActionNext
)

const (
	TagPlay = "PLAY"
	TagNext = "NEXT"
)

// ParseAction maps a raw broadcast tag onto an Action. Tags are matched
// exactly; anything else is ActionUnknown.
func ParseAction(tag string) Action {
	switch tag {
	case TagPlay:
		return ActionPlay
	case TagNext:
		return ActionNext
	default:
		return ActionUnknown
	}
}

// Method is the engine-side method name for the action, or "" for
// ActionUnknown.
func (a Action) Method() string {
	switch a {
	case ActionPlay:
		return "play"
	case ActionNext:
		return "next"
	default:
		return ""
	}
}

func (a Action) Tag() string {
	switch a {
	case ActionPlay:
		return TagPlay
	case ActionNext:
		return TagNext
	default:
		return ""
	}
}

func (a Action) String() string {
	if method := a.Method(); method != "" {
		return method
	}
	return "unknown"
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(text []byte) error {
	*a = ParseAction(strings.ToUpper(string(text)))
	return nil
}
