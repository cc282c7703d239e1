package credential

import "strings"

// Reason explains why a verification was rejected.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonEmptyInput        Reason = "EMPTY_INPUT"
	ReasonInvalidCredential Reason = "INVALID_CREDENTIAL"
	ReasonRevoked           Reason = "REVOKED"
	ReasonExpired           Reason = "EXPIRED"
	ReasonAlreadyUsed       Reason = "ALREADY_USED"
)

var reasonMessages = map[Reason]string{
	ReasonNone:              "OK",
	ReasonEmptyInput:        "No access key was entered.",
	ReasonInvalidCredential: "The access key is invalid.",
	ReasonRevoked:           "This access key has been revoked.",
	ReasonExpired:           "This access key has expired.",
	ReasonAlreadyUsed:       "This one-time access key has already been used.",
}

// Message returns the user-facing text for the reason.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// Outcome is the result of presenting a credential.
type Outcome struct {
	Accepted     bool
	Reason       Reason
	CredentialID int64
}

func accepted(id int64) Outcome {
	return Outcome{Accepted: true, CredentialID: id}
}

func rejected(r Reason, id int64) Outcome {
	return Outcome{Reason: r, CredentialID: id}
}

// Action is an administrative state transition.
type Action string

const (
	ActionRevoke    Action = "revoke"
	ActionReinstate Action = "reinstate"
	ActionDelete    Action = "delete"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionRevoke, ActionReinstate, ActionDelete:
		return a, nil
	default:
		return "", ErrUnknownAction
	}
}
