package stack

/* *** Errors *** */

type ErrorCode int

const (
    _ ErrorCode = iota
    Empty
    SelfReference
    InvalidGroupSizes
    InvalidReserve
    Corrupted
)

// Error is the value a Stack panics with when a caller breaks one of its
// preconditions. ValidateGroupSizes returns it without panicking.
type Error struct {
    ErrorCode ErrorCode
    Message   string
    Err       error
}

func (e Error) Error() string {
    return e.Message
}

func (e Error) Unwrap() error {
    return e.Err
}

func (e Error) Is(target error) bool {
    if other, ok := target.(Error); ok {
        ignoreErrorCode := other.ErrorCode == 0
        ignoreMessage := other.Message == ""
        matchErrorCode := other.ErrorCode == e.ErrorCode
        matchMessage := other.Message == e.Message

        return matchMessage && matchErrorCode || matchMessage && ignoreErrorCode || ignoreMessage && matchErrorCode
    }
    return false
}

var (
    ErrEmpty         = Error{ErrorCode: Empty, Message: "stack is empty"}
    ErrSelfReference = Error{ErrorCode: SelfReference, Message: "stack used as both operands"}
)

func violation(code ErrorCode, message string) {
    panic(Error{ErrorCode: code, Message: message})
}
