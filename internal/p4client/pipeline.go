package p4client

import (
	"context"
	"fmt"

	p4config "github.com/p4lang/p4runtime/go/p4/config/v1"
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/prototext"
)

// GetP4Info fetches the device's current pipeline schema.
func (c *Client) GetP4Info(ctx context.Context) (*p4config.P4Info, error) {
	req := &p4v1.GetForwardingPipelineConfigRequest{
		DeviceId:     c.cfg.DeviceID,
		ResponseType: p4v1.GetForwardingPipelineConfigRequest_P4INFO_AND_COOKIE,
	}
	resp, err := c.p4.GetForwardingPipelineConfig(ctx, req)
	if err != nil {
		return nil, transportError(err)
	}
	return resp.GetConfig().GetP4Info(), nil
}

// SetPipeline parses p4infoText as a text-format P4Info document and
// installs it, together with the opaque binary device config, via a
// verify-and-commit pipeline config request.
func (c *Client) SetPipeline(ctx context.Context, p4infoText, deviceConfig []byte) error {
	info := &p4config.P4Info{}
	if err := prototext.Unmarshal(p4infoText, info); err != nil {
		return &FormatError{Reason: "cannot parse P4Info text", Err: err}
	}
	req := &p4v1.SetForwardingPipelineConfigRequest{
		DeviceId:   c.cfg.DeviceID,
		ElectionId: c.electionID(),
		Action:     p4v1.SetForwardingPipelineConfigRequest_VERIFY_AND_COMMIT,
		Config: &p4v1.ForwardingPipelineConfig{
			P4Info:         info,
			P4DeviceConfig: deviceConfig,
		},
	}
	if _, err := c.p4.SetForwardingPipelineConfig(ctx, req); err != nil {
		return transportError(err)
	}
	return nil
}

// FormatP4Info renders a schema snapshot as text format, the inverse of
// the SetPipeline parse.
func FormatP4Info(info *p4config.P4Info) string {
	return prototext.Format(info)
}

func transportError(err error) error {
	if st, ok := status.FromError(err); ok {
		return &TransportError{Code: st.Code(), Message: st.Message()}
	}
	return &TransportError{Code: codes.Unknown, Message: fmt.Sprintf("%v", err)}
}
