package apperr

// Code is a machine-readable error code delivered to clients in error events.
type Code string

const (
	// Authentication codes. All of these are terminal for the connection.
	CodeNoToken       Code = "NO_TOKEN"
	CodeInvalidToken  Code = "INVALID_TOKEN"
	CodeTokenExpired  Code = "TOKEN_EXPIRED"
	CodeInvalidClaims Code = "INVALID_CLAIMS"

	// Validation codes. Reported to the sender only; the connection stays open.
	CodeEmptyMessage    Code = "EMPTY_MESSAGE"
	CodeMessageTooLong  Code = "MESSAGE_TOO_LONG"
	CodeInvalidReceiver Code = "INVALID_RECEIVER"
	CodeInvalidData     Code = "INVALID_DATA"
	CodeSelfMessage     Code = "SELF_MESSAGE"
	CodeInvalidStatus   Code = "INVALID_STATUS"
	CodeRateLimited     Code = "RATE_LIMITED"

	// Lookup/authorization failures are folded into a single code so a caller
	// cannot distinguish "exists but not yours" from "does not exist".
	CodeMessageNotFound Code = "MESSAGE_NOT_FOUND"

	CodeInternal Code = "INTERNAL_ERROR"
)

func (c Code) String() string {
	return string(c)
}

// Terminal reports whether an error with this code must close the connection.
func (c Code) Terminal() bool {
	switch c {
	case CodeNoToken, CodeInvalidToken, CodeTokenExpired, CodeInvalidClaims:
		return true
	default:
		return false
	}
}
