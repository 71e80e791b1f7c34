package summon

import "github.com/pthm/summon/lib/action"

// Action is one of Navigate, ServerRPC or Toggle.
type Action = action.Action

// Navigate changes the document location.
type Navigate = action.Navigate

// ServerRPC issues a request to an endpoint carrying a payload.
type ServerRPC = action.ServerRPC

// Toggle flips the visibility of the element with the target id.
type Toggle = action.Toggle

// Directive tells the client what to do after an RPC.
type Directive = action.Directive

// CallbackEndpoint returns the endpoint path for a callback id.
func CallbackEndpoint(id string) string {
	return action.CallbackEndpoint(id)
}

// ActionAttr returns the data-summon-action attribute value for a, for use
// in templ templates:
//
//	<button data-summon-action={ summon.ActionAttr(summon.Toggle{TargetID: "menu"}) }>Menu</button>
//
// It panics if a does not serialize.
func ActionAttr(a Action) string {
	s, err := action.MarshalString(a)
	if err != nil {
		panic(err)
	}
	return s
}
