package monitor

import (
	"strings"

	"github.com/susnake/Lyssa/internal/verify"
)

type CallbackAction string

const (
	CallbackActionAcknowledge = CallbackAction(verify.ActionAcknowledge)
	CallbackActionPick        = CallbackAction(verify.ActionPick)
	CallbackActionChar        = CallbackAction(verify.ActionChar)
)

var callbackActions = []CallbackAction{
	CallbackActionAcknowledge,
	CallbackActionPick,
	CallbackActionChar,
}

func (a CallbackAction) String() string {
	return string(a)
}

func (a CallbackAction) DataMatches(data string) bool {
	cringePrefix := "\f" + a.String()
	return data == cringePrefix || strings.HasPrefix(data, cringePrefix+"|")
}

// Payload extracts the value after the action prefix, or "" when the
// button carried none.
func (a CallbackAction) Payload(data string) string {
	cringePrefix := "\f" + a.String() + "|"
	if strings.HasPrefix(data, cringePrefix) {
		return data[len(cringePrefix):]
	}
	return ""
}
