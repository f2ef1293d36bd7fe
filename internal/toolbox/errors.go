package toolbox

import "fmt"

type Kind string

const (
	KindUnknownTool       Kind = "UnknownTool"
	KindDuplicateTool     Kind = "DuplicateTool"
	KindInvalidParameters Kind = "InvalidParameters"
	KindInvalidRange      Kind = "InvalidRange"
	KindUpstreamError     Kind = "UpstreamError"
)

// Error carries a classification kind alongside the message. Handlers may
// return one to control the kind reported to the caller; any other error is
// reported as KindUpstreamError.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
