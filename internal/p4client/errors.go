package p4client

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
)

var (
	// ErrArbitrationTimeout means the device never answered the
	// arbitration handshake; session establishment must be aborted.
	ErrArbitrationTimeout = errors.New("p4client: no arbitration response from device")

	ErrSessionClosed = errors.New("p4client: session closed")
)

// TransportError is an RPC failure that carried no structured per-item
// detail. It is surfaced verbatim and never retried.
type TransportError struct {
	Code    codes.Code
	Message string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("p4client: rpc error (%s): %s", e.Code, e.Message)
}

// WriteErrorItem is the outcome of one rejected update in a batch.
// Index preserves the position in the original request.
type WriteErrorItem struct {
	Index   int
	Code    codes.Code
	Message string
}

// WriteError reports every non-OK item of a batched write, in request
// order. It is never summarized to a single item.
type WriteError struct {
	Items []WriteErrorItem
}

func (e *WriteError) Error() string {
	var b strings.Builder
	b.WriteString("p4client: error(s) during write:")
	for _, item := range e.Items {
		fmt.Fprintf(&b, "\n\t* at index %d: %s, %q", item.Index, item.Code, item.Message)
	}
	return b.String()
}

// FormatError is a malformed structured payload: a write failure whose
// detail envelope is missing, empty, or undecodable, or pipeline schema
// text that does not parse. Always a hard failure.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("p4client: %s: %v", e.Reason, e.Err)
	}
	return "p4client: " + e.Reason
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
