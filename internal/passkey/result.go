package passkey

import (
	"unicode"
	"unicode/utf8"
)

// Result is the response envelope of every action. Application failures
// are carried in Code and Message, never in the transport status.
type Result struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func Success(data any) Result {
	return Result{Code: CodeSuccess, Data: data}
}

func SuccessMessage(msg string) Result {
	return Result{Code: CodeSuccess, Message: msg}
}

func Failure(err error) Result {
	return Result{Code: CodeFor(err), Message: sentence(err.Error())}
}

// FailureMessage builds a generic failure for errors raised outside a flow.
func FailureMessage(msg string) Result {
	return Result{Code: CodeFail, Message: sentence(msg)}
}

func (r Result) OK() bool { return r.Code == CodeSuccess }

// sentence capitalizes the first letter of a Go error string for display.
func sentence(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
