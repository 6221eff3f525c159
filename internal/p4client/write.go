package p4client

import (
	"context"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/p4ovs/ovs-p4ctl/internal/observability"
)

// NewInsert wraps a table entry in an INSERT update.
func NewInsert(entry *p4v1.TableEntry) *p4v1.Update {
	return newUpdate(p4v1.Update_INSERT, entry)
}

// NewModify wraps a table entry in a MODIFY update.
func NewModify(entry *p4v1.TableEntry) *p4v1.Update {
	return newUpdate(p4v1.Update_MODIFY, entry)
}

// NewDelete wraps a table entry in a DELETE update.
func NewDelete(entry *p4v1.TableEntry) *p4v1.Update {
	return newUpdate(p4v1.Update_DELETE, entry)
}

func newUpdate(op p4v1.Update_Type, entry *p4v1.TableEntry) *p4v1.Update {
	return &p4v1.Update{
		Type: op,
		Entity: &p4v1.Entity{
			Entity: &p4v1.Entity_TableEntry{TableEntry: entry},
		},
	}
}

// Write submits one batched write request carrying the session's device
// and election ids. A failure with structured per-item detail becomes a
// WriteError; a failure without it a TransportError; a malformed detail
// payload a FormatError.
func (c *Client) Write(ctx context.Context, updates []*p4v1.Update) error {
	if s := c.State(); s == StateClosing || s == StateClosed {
		return ErrSessionClosed
	}
	req := &p4v1.WriteRequest{
		DeviceId:   c.cfg.DeviceID,
		ElectionId: c.electionID(),
		Updates:    updates,
	}
	_, err := c.p4.Write(ctx, req)
	if err == nil {
		observability.RecordWrite("ok")
		return nil
	}
	log.Debug().Int("updates", len(updates)).Err(err).Msg("write rejected")
	decoded := decodeWriteError(err)
	switch decoded.(type) {
	case *WriteError:
		observability.RecordWrite("write_error")
	case *FormatError:
		observability.RecordWrite("format_error")
	default:
		observability.RecordWrite("transport_error")
	}
	return decoded
}

// WriteUpdate submits a single-update batch.
func (c *Client) WriteUpdate(ctx context.Context, update *p4v1.Update) error {
	return c.Write(ctx, []*p4v1.Update{update})
}

// decodeWriteError classifies a failed Write RPC. The batched-write
// convention carries per-item outcomes as p4.Error messages inside the
// details of an UNKNOWN-code rich status.
func decodeWriteError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return &TransportError{Code: codes.Unknown, Message: err.Error()}
	}
	if st.Code() != codes.Unknown {
		return &TransportError{Code: st.Code(), Message: st.Message()}
	}
	details := st.Proto().GetDetails()
	if len(details) == 0 {
		return &FormatError{Reason: "write failure carries no per-item error details"}
	}

	werr := &WriteError{}
	for idx, detail := range details {
		item := &p4v1.Error{}
		if uerr := detail.UnmarshalTo(item); uerr != nil {
			return &FormatError{Reason: "cannot decode error detail into p4.Error", Err: uerr}
		}
		code := codes.Code(item.CanonicalCode)
		if code == codes.OK {
			continue
		}
		observability.RecordWriteItemFailure(code.String())
		werr.Items = append(werr.Items, WriteErrorItem{
			Index:   idx,
			Code:    code,
			Message: item.Message,
		})
	}
	if len(werr.Items) == 0 {
		return &FormatError{Reason: "write failed but every per-item status is OK"}
	}
	return werr
}
