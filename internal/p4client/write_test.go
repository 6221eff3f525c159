package p4client

import (
	"context"
	"errors"
	"testing"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/p4ovs/ovs-p4ctl/internal/testutil/testlog"
)

// unknownWithDetails builds the rich gRPC error a device returns for a
// partially rejected batched write.
func unknownWithDetails(t *testing.T, details ...proto.Message) error {
	t.Helper()
	st := &rpcstatus.Status{
		Code:    int32(codes.Unknown),
		Message: "error(s) during write",
	}
	for _, d := range details {
		packed, err := anypb.New(d)
		if err != nil {
			t.Fatalf("pack detail: %v", err)
		}
		st.Details = append(st.Details, packed)
	}
	return status.FromProto(st).Err()
}

func openMaster(t *testing.T, f *fakeP4) *Client {
	t.Helper()
	c, err := openWithArbitration(t, f, codes.OK)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return c
}

func TestWriteDecodesItemErrors(t *testing.T) {
	testlog.Start(t)
	f := &fakeP4{}
	c := openMaster(t, f)
	defer c.Close()

	f.writeErr = unknownWithDetails(t,
		&p4v1.Error{CanonicalCode: int32(codes.OK)},
		&p4v1.Error{CanonicalCode: int32(codes.InvalidArgument), Message: "bad"},
	)

	err := c.WriteUpdate(context.Background(), NewInsert(&p4v1.TableEntry{TableId: 1}))
	var werr *WriteError
	if !errors.As(err, &werr) {
		t.Fatalf("expected WriteError, got %T: %v", err, err)
	}
	if len(werr.Items) != 1 {
		t.Fatalf("expected 1 item, got %+v", werr.Items)
	}
	item := werr.Items[0]
	if item.Index != 1 || item.Code != codes.InvalidArgument || item.Message != "bad" {
		t.Fatalf("unexpected item: %+v", item)
	}

	// The session must still shut down cleanly after a failed write.
	if err := c.Close(); err != nil {
		t.Fatalf("close after failed write: %v", err)
	}
	if got := c.State(); got != StateClosed {
		t.Fatalf("state = %s, want closed", got)
	}
}

func TestWriteCarriesSessionIdentity(t *testing.T) {
	testlog.Start(t)
	f := &fakeP4{}
	c := openMaster(t, f)
	defer c.Close()

	if err := c.Write(context.Background(), []*p4v1.Update{
		NewInsert(&p4v1.TableEntry{TableId: 1}),
		NewDelete(&p4v1.TableEntry{TableId: 2}),
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	req := f.writeReq
	if req.GetDeviceId() != 3 {
		t.Fatalf("device id = %d, want 3", req.GetDeviceId())
	}
	if req.GetElectionId().GetHigh() != 1 || req.GetElectionId().GetLow() != 0 {
		t.Fatalf("unexpected election id: %+v", req.GetElectionId())
	}
	if len(req.GetUpdates()) != 2 ||
		req.Updates[0].Type != p4v1.Update_INSERT ||
		req.Updates[1].Type != p4v1.Update_DELETE {
		t.Fatalf("unexpected updates: %+v", req.GetUpdates())
	}
}

func TestWriteTransportError(t *testing.T) {
	testlog.Start(t)
	f := &fakeP4{}
	c := openMaster(t, f)
	defer c.Close()

	f.writeErr = status.Error(codes.PermissionDenied, "not master")
	err := c.WriteUpdate(context.Background(), NewInsert(&p4v1.TableEntry{TableId: 1}))
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if terr.Code != codes.PermissionDenied {
		t.Fatalf("code = %s, want PermissionDenied", terr.Code)
	}
}

func TestWriteAfterClose(t *testing.T) {
	testlog.Start(t)
	f := &fakeP4{}
	c := openMaster(t, f)
	c.Close()

	err := c.WriteUpdate(context.Background(), NewInsert(&p4v1.TableEntry{TableId: 1}))
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("error = %v, want ErrSessionClosed", err)
	}
}

func TestWriteFormatErrors(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name string
		err  func(t *testing.T) error
	}{
		{
			name: "unknown without details",
			err: func(t *testing.T) error {
				return unknownWithDetails(t)
			},
		},
		{
			name: "undecodable detail entry",
			err: func(t *testing.T) error {
				return unknownWithDetails(t, &rpcstatus.Status{Code: 13})
			},
		},
		{
			name: "all items ok",
			err: func(t *testing.T) error {
				return unknownWithDetails(t,
					&p4v1.Error{CanonicalCode: int32(codes.OK)},
					&p4v1.Error{CanonicalCode: int32(codes.OK)},
				)
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeP4{}
			c := openMaster(t, f)
			defer c.Close()

			f.writeErr = tc.err(t)
			err := c.WriteUpdate(context.Background(), NewInsert(&p4v1.TableEntry{TableId: 1}))
			var ferr *FormatError
			if !errors.As(err, &ferr) {
				t.Fatalf("expected FormatError, got %T: %v", err, err)
			}
		})
	}
}
