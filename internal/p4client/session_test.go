package p4client

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"

	"github.com/p4ovs/ovs-p4ctl/internal/testutil/testlog"
)

var errFakeUnimplemented = errors.New("fake: unimplemented")

type fakeStream struct {
	grpc.ClientStream
	ctx      context.Context
	sent     chan *p4v1.StreamMessageRequest
	recv     chan *p4v1.StreamMessageResponse
	sendOnce sync.Once
	sendDone chan struct{}
}

func newFakeStream(ctx context.Context) *fakeStream {
	return &fakeStream{
		ctx:      ctx,
		sent:     make(chan *p4v1.StreamMessageRequest, 8),
		recv:     make(chan *p4v1.StreamMessageResponse, 8),
		sendDone: make(chan struct{}),
	}
}

func (s *fakeStream) Send(m *p4v1.StreamMessageRequest) error {
	s.sent <- m
	return nil
}

func (s *fakeStream) Recv() (*p4v1.StreamMessageResponse, error) {
	select {
	case m, ok := <-s.recv:
		if !ok {
			return nil, io.EOF
		}
		return m, nil
	case <-s.ctx.Done():
		return nil, s.ctx.Err()
	}
}

func (s *fakeStream) CloseSend() error {
	s.sendOnce.Do(func() { close(s.sendDone) })
	return nil
}

func (s *fakeStream) Context() context.Context {
	return s.ctx
}

type fakeP4 struct {
	stream *fakeStream

	mu       sync.Mutex
	writeErr error
	writeReq *p4v1.WriteRequest
	getResp  *p4v1.GetForwardingPipelineConfigResponse
	getErr   error
	setReq   *p4v1.SetForwardingPipelineConfigRequest
	setErr   error
}

func (f *fakeP4) StreamChannel(ctx context.Context, _ ...grpc.CallOption) (p4v1.P4Runtime_StreamChannelClient, error) {
	s := newFakeStream(ctx)
	f.mu.Lock()
	f.stream = s
	f.mu.Unlock()
	return s, nil
}

// waitStream blocks until StreamChannel has been called.
func (f *fakeP4) waitStream() *fakeStream {
	for {
		f.mu.Lock()
		s := f.stream
		f.mu.Unlock()
		if s != nil {
			return s
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fakeP4) Write(_ context.Context, req *p4v1.WriteRequest, _ ...grpc.CallOption) (*p4v1.WriteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeReq = req
	if f.writeErr != nil {
		return nil, f.writeErr
	}
	return &p4v1.WriteResponse{}, nil
}

func (f *fakeP4) Read(context.Context, *p4v1.ReadRequest, ...grpc.CallOption) (p4v1.P4Runtime_ReadClient, error) {
	return nil, errFakeUnimplemented
}

func (f *fakeP4) GetForwardingPipelineConfig(_ context.Context, _ *p4v1.GetForwardingPipelineConfigRequest, _ ...grpc.CallOption) (*p4v1.GetForwardingPipelineConfigResponse, error) {
	return f.getResp, f.getErr
}

func (f *fakeP4) SetForwardingPipelineConfig(_ context.Context, req *p4v1.SetForwardingPipelineConfigRequest, _ ...grpc.CallOption) (*p4v1.SetForwardingPipelineConfigResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setReq = req
	if f.setErr != nil {
		return nil, f.setErr
	}
	return &p4v1.SetForwardingPipelineConfigResponse{}, nil
}

func (f *fakeP4) Capabilities(context.Context, *p4v1.CapabilitiesRequest, ...grpc.CallOption) (*p4v1.CapabilitiesResponse, error) {
	return nil, errFakeUnimplemented
}

func arbitrationResponse(code codes.Code) *p4v1.StreamMessageResponse {
	return &p4v1.StreamMessageResponse{
		Update: &p4v1.StreamMessageResponse_Arbitration{
			Arbitration: &p4v1.MasterArbitrationUpdate{
				Status: &rpcstatus.Status{Code: int32(code)},
			},
		},
	}
}

func testConfig() Config {
	return Config{
		DeviceID:           3,
		ElectionID:         ElectionID{High: 1, Low: 0},
		ArbitrationTimeout: time.Second,
	}
}

func TestOpenHandshakeMaster(t *testing.T) {
	testlog.Start(t)
	f := &fakeP4{}
	c, err := openWithArbitration(t, f, codes.OK)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !c.IsMaster() {
		t.Fatalf("expected master role")
	}
	if got := c.State(); got != StateActive {
		t.Fatalf("state = %s, want active", got)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := c.State(); got != StateClosed {
		t.Fatalf("state after close = %s, want closed", got)
	}
}

func TestOpenHandshakeSlave(t *testing.T) {
	testlog.Start(t)
	f := &fakeP4{}
	c, err := openWithArbitration(t, f, codes.AlreadyExists)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()
	if c.IsMaster() {
		t.Fatalf("expected slave role")
	}
}

// openWithArbitration opens a session against f, replying to the
// handshake with code.
func openWithArbitration(t *testing.T, f *fakeP4, code codes.Code) (*Client, error) {
	t.Helper()
	type result struct {
		c   *Client
		err error
	}
	res := make(chan result, 1)
	go func() {
		c, err := Open(context.Background(), f, testConfig())
		res <- result{c, err}
	}()
	stream := f.waitStream()
	select {
	case req := <-stream.sent:
		if req.GetArbitration() == nil {
			t.Fatalf("first stream message is not arbitration: %+v", req)
		}
		stream.recv <- arbitrationResponse(code)
	case <-time.After(2 * time.Second):
		t.Fatalf("no arbitration request sent")
	}
	r := <-res
	return r.c, r.err
}

func TestOpenArbitrationTimeout(t *testing.T) {
	testlog.Start(t)
	f := &fakeP4{}
	cfg := testConfig()
	cfg.ArbitrationTimeout = 50 * time.Millisecond

	start := time.Now()
	c, err := Open(context.Background(), f, cfg)
	if !errors.Is(err, ErrArbitrationTimeout) {
		t.Fatalf("expected arbitration timeout, got c=%v err=%v", c, err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestWaitForMessageTimeout(t *testing.T) {
	testlog.Start(t)
	f := &fakeP4{}
	c, err := openWithArbitration(t, f, codes.OK)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	start := time.Now()
	if msg := c.WaitForMessage(TagPacket, 100*time.Millisecond); msg != nil {
		t.Fatalf("unexpected message: %+v", msg)
	}
	elapsed := time.Since(start)
	if elapsed < 100*time.Millisecond || elapsed > time.Second {
		t.Fatalf("wait returned after %v, want ~100ms", elapsed)
	}
}

func TestWaitForMessageDiscardsMismatched(t *testing.T) {
	testlog.Start(t)
	f := &fakeP4{}
	c, err := openWithArbitration(t, f, codes.OK)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	f.stream.recv <- &p4v1.StreamMessageResponse{
		Update: &p4v1.StreamMessageResponse_Digest{Digest: &p4v1.DigestList{DigestId: 9}},
	}
	f.stream.recv <- &p4v1.StreamMessageResponse{
		Update: &p4v1.StreamMessageResponse_Packet{Packet: &p4v1.PacketIn{Payload: []byte{0x01}}},
	}

	msg := c.WaitForMessage(TagPacket, time.Second)
	if msg == nil || msg.GetPacket() == nil {
		t.Fatalf("expected packet message, got %+v", msg)
	}
}

func TestWaitForMessageStreamClosed(t *testing.T) {
	testlog.Start(t)
	f := &fakeP4{}
	c, err := openWithArbitration(t, f, codes.OK)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	close(f.stream.recv)
	if msg := c.WaitForMessage(TagPacket, time.Second); msg != nil {
		t.Fatalf("expected nil after stream end, got %+v", msg)
	}
}

func TestCloseIdempotent(t *testing.T) {
	testlog.Start(t)
	f := &fakeP4{}
	c, err := openWithArbitration(t, f, codes.OK)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	select {
	case <-f.stream.sendDone:
	default:
		t.Fatalf("CloseSend never reached the stream")
	}
}
