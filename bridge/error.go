package bridge

import (
	"errors"
	"strings"

	"github.com/perfect-catch/pricebook-bridge/pricebook"
)

const (
	// CodeUnknownTool is reported when a tool name matches nothing in the catalog.
	CodeUnknownTool = "unknown_tool"
	// CodeInvalidArgument is reported when required arguments are missing or malformed.
	CodeInvalidArgument = "invalid_argument"
	// CodeInternal is the fallback for unclassified dispatch failures.
	CodeInternal = "internal"
)

// DispatchError is a dispatch failure detected before any backend call:
// an unknown tool name or an argument that fails the tool's contract.
// Message is the host-facing text.
type DispatchError struct {
	Code    string
	Message string
}

func (e *DispatchError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func unknownToolError(name string) *DispatchError {
	return &DispatchError{Code: CodeUnknownTool, Message: "Unknown tool: " + name}
}

func invalidArgumentError(message string) *DispatchError {
	return &DispatchError{Code: CodeInvalidArgument, Message: message}
}

// ErrorText renders a dispatch failure as the text returned to the
// host. Unknown-tool failures keep their bare "Unknown tool: ..." form;
// everything else gets the "Error:" prefix.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	var dispatchErr *DispatchError
	if errors.As(err, &dispatchErr) && dispatchErr.Code == CodeUnknownTool {
		return dispatchErr.Message
	}
	return "Error: " + strings.TrimSpace(err.Error())
}

// ErrorCode labels err for observations and the journal: a
// DispatchError keeps its own code, backend errors use their kind
// (connection, timeout, status, decode), anything else is internal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var dispatchErr *DispatchError
	if errors.As(err, &dispatchErr) {
		return dispatchErr.Code
	}
	var backendErr *pricebook.Error
	if errors.As(err, &backendErr) {
		return string(backendErr.Kind)
	}
	return CodeInternal
}
