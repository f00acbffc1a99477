package ledger

import "errors"

// Kind 错误分类
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindNotFound
	KindNotAuthorized
	KindInvalidState
	KindInsufficientFunds
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindNotFound:
		return "NotFound"
	case KindNotAuthorized:
		return "NotAuthorized"
	case KindInvalidState:
		return "InvalidState"
	case KindInsufficientFunds:
		return "InsufficientFunds"
	default:
		return "Unknown"
	}
}

// Error 账本业务错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidGoal        = newError(KindInvalidInput, "InvalidGoal", "funding goal must be greater than zero")
	ErrInvalidDeadline    = newError(KindInvalidInput, "InvalidDeadline", "deadline must be in the future")
	ErrInvalidAmount      = newError(KindInvalidInput, "InvalidAmount", "amount must be greater than zero")
	ErrInvalidRequest     = newError(KindInvalidInput, "InvalidRequest", "request is malformed")
	ErrInvalidDescription = newError(KindInvalidInput, "InvalidDescription", "description must not be empty")
	ErrInvalidAddress     = newError(KindInvalidInput, "InvalidAddress", "address is empty or malformed")
	ErrAmountOverflow     = newError(KindInvalidInput, "AmountOverflow", "amount exceeds the supported range")

	ErrProjectNotFound = newError(KindNotFound, "ProjectNotFound", "project does not exist")
	ErrRequestNotFound = newError(KindNotFound, "RequestNotFound", "request does not exist")

	ErrNotOwner       = newError(KindNotAuthorized, "NotOwner", "caller is not the project owner")
	ErrNotContributor = newError(KindNotAuthorized, "NotContributor", "voter has not funded the project")

	ErrProjectNotActive = newError(KindInvalidState, "ProjectNotActive", "project is not accepting contributions")
	ErrProjectExpired   = newError(KindInvalidState, "ProjectExpired", "project expired without reaching its goal")
	ErrVotingClosed     = newError(KindInvalidState, "VotingClosed", "voting deadline has passed")
	ErrAlreadyVoted     = newError(KindInvalidState, "AlreadyVoted", "voter already voted on this request")
	ErrVotingStillOpen  = newError(KindInvalidState, "VotingStillOpen", "voting deadline has not been reached")
	ErrAlreadyExecuted  = newError(KindInvalidState, "AlreadyExecuted", "request was already executed")
	ErrAlreadyFinalized = newError(KindInvalidState, "AlreadyFinalized", "request was already finalized")

	ErrInsufficientFunds = newError(KindInsufficientFunds, "InsufficientFunds", "amount exceeds the available balance")
)

// ErrIdempotencyConflict 幂等键已被不同参数使用
var ErrIdempotencyConflict = newError(KindInvalidInput, "IdempotencyConflict",
	"idempotency key was already used with different parameters")

// KindOf 返回错误所属分类，非账本错误返回 KindUnknown
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}
