package p4client

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/p4ovs/ovs-p4ctl/internal/observability"
)

// DefaultArbitrationTimeout bounds the wait for the device's answer to
// the arbitration handshake during Open.
const DefaultArbitrationTimeout = 2 * time.Second

// State is the session lifecycle state. Closed is terminal.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateArbitrating
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateArbitrating:
		return "arbitrating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MessageTag routes stream messages by their payload variant.
type MessageTag int

const (
	TagArbitration MessageTag = iota
	TagPacket
	TagDigest
	TagIdleTimeout
	TagError
	TagOther
)

func (t MessageTag) String() string {
	switch t {
	case TagArbitration:
		return "arbitration"
	case TagPacket:
		return "packet"
	case TagDigest:
		return "digest"
	case TagIdleTimeout:
		return "idle_timeout"
	case TagError:
		return "error"
	default:
		return "other"
	}
}

func tagOf(msg *p4v1.StreamMessageResponse) MessageTag {
	switch msg.GetUpdate().(type) {
	case *p4v1.StreamMessageResponse_Arbitration:
		return TagArbitration
	case *p4v1.StreamMessageResponse_Packet:
		return TagPacket
	case *p4v1.StreamMessageResponse_Digest:
		return TagDigest
	case *p4v1.StreamMessageResponse_IdleTimeoutNotification:
		return TagIdleTimeout
	case *p4v1.StreamMessageResponse_Error:
		return TagError
	default:
		return TagOther
	}
}

// ElectionID is the client's fixed mastership precedence token.
type ElectionID struct {
	High uint64
	Low  uint64
}

type Config struct {
	DeviceID           uint64
	ElectionID         ElectionID
	ArbitrationTimeout time.Duration
}

// Client owns one P4Runtime channel: the bidirectional stream session
// plus the unary write and pipeline-config operations layered on it.
type Client struct {
	cfg    Config
	p4     p4v1.P4RuntimeClient
	conn   io.Closer
	stream p4v1.P4Runtime_StreamChannelClient
	cancel context.CancelFunc

	outbound chan *p4v1.StreamMessageRequest
	inbound  chan *p4v1.StreamMessageResponse
	sendDone chan struct{}
	recvDone chan struct{}

	mu     sync.Mutex
	state  State
	master bool
}

// Dial connects to a P4Runtime endpoint and opens a session, performing
// the arbitration handshake. The returned client owns the connection.
func Dial(ctx context.Context, addr string, cfg Config) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("p4client: dial %s: %w", addr, err)
	}
	return open(ctx, p4v1.NewP4RuntimeClient(conn), cfg, conn)
}

// Open establishes a session over an already-built stub. Used by tests
// and by callers that manage their own connection.
func Open(ctx context.Context, p4 p4v1.P4RuntimeClient, cfg Config) (*Client, error) {
	return open(ctx, p4, cfg, nil)
}

func open(ctx context.Context, p4 p4v1.P4RuntimeClient, cfg Config, conn io.Closer) (*Client, error) {
	if cfg.ArbitrationTimeout <= 0 {
		cfg.ArbitrationTimeout = DefaultArbitrationTimeout
	}
	c := &Client{
		cfg:      cfg,
		p4:       p4,
		conn:     conn,
		outbound: make(chan *p4v1.StreamMessageRequest, 16),
		inbound:  make(chan *p4v1.StreamMessageResponse, 64),
		sendDone: make(chan struct{}),
		recvDone: make(chan struct{}),
		state:    StateConnecting,
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	stream, err := p4.StreamChannel(streamCtx)
	if err != nil {
		cancel()
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("p4client: open stream channel: %w", err)
	}
	c.stream = stream
	go c.sendLoop()
	go c.recvLoop(streamCtx)

	c.setState(StateArbitrating)
	c.outbound <- &p4v1.StreamMessageRequest{
		Update: &p4v1.StreamMessageRequest_Arbitration{
			Arbitration: &p4v1.MasterArbitrationUpdate{
				DeviceId:   cfg.DeviceID,
				ElectionId: c.electionID(),
			},
		},
	}

	resp := c.WaitForMessage(TagArbitration, cfg.ArbitrationTimeout)
	if resp == nil {
		c.Close()
		return nil, ErrArbitrationTimeout
	}
	master := resp.GetArbitration().GetStatus().GetCode() == int32(codes.OK)

	c.mu.Lock()
	c.state = StateActive
	c.master = master
	c.mu.Unlock()

	role := "slave"
	if master {
		role = "master"
	}
	observability.RecordArbitration(role)
	log.Debug().Uint64("device_id", cfg.DeviceID).Str("role", role).Msg("session established")
	if !master {
		log.Warn().Msg("not master: writes are expected to be rejected by the device")
	}
	return c, nil
}

func (c *Client) electionID() *p4v1.Uint128 {
	return &p4v1.Uint128{High: c.cfg.ElectionID.High, Low: c.cfg.ElectionID.Low}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsMaster reports whether arbitration granted this client the primary
// writer role.
func (c *Client) IsMaster() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.master
}

// DeviceID returns the device this session is bound to.
func (c *Client) DeviceID() uint64 {
	return c.cfg.DeviceID
}

func (c *Client) sendLoop() {
	defer close(c.sendDone)
	for msg := range c.outbound {
		if err := c.stream.Send(msg); err != nil {
			log.Error().Err(err).Msg("stream send failed")
			return
		}
	}
	if err := c.stream.CloseSend(); err != nil {
		log.Debug().Err(err).Msg("close send")
	}
}

// recvLoop pumps inbound stream messages until the stream ends or the
// transport fails; closing the inbound channel is the termination
// signal every pending WaitForMessage observes.
func (c *Client) recvLoop(ctx context.Context) {
	defer close(c.recvDone)
	defer close(c.inbound)
	for {
		msg, err := c.stream.Recv()
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				log.Error().Err(err).Msg("stream channel error, closing stream")
			}
			return
		}
		observability.RecordStreamMessage(tagOf(msg).String())
		select {
		case c.inbound <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// WaitForMessage returns the next stream message carrying tag, or nil
// if the timeout elapses or the stream closes first. Messages with any
// other tag are discarded. The inbound queue has a single consumer:
// concurrent waits for different tags are not supported, because one
// waiter may discard the message the other is waiting for.
func (c *Client) WaitForMessage(tag MessageTag, timeout time.Duration) *p4v1.StreamMessageResponse {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		timer := time.NewTimer(remaining)
		select {
		case msg, ok := <-c.inbound:
			timer.Stop()
			if !ok {
				return nil
			}
			if got := tagOf(msg); got != tag {
				observability.RecordStreamDiscarded(got.String())
				log.Debug().Str("tag", got.String()).Msg("discarding unexpected stream message")
				continue
			}
			return msg
		case <-timer.C:
			return nil
		}
	}
}

// Close ends the stream, waits for both pump goroutines, and releases
// the connection exactly once. Safe to call from a defer on every exit
// path; repeated calls are no-ops.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateClosing || c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	c.mu.Unlock()

	close(c.outbound)
	<-c.sendDone
	c.cancel()
	<-c.recvDone

	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.setState(StateClosed)
	return err
}
