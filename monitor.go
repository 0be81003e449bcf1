package dvrip

import (
	"context"
	"fmt"

	"github.com/tidwall/sjson"

	protoerr "github.com/alxayo/dvrip-go/internal/errors"
	"github.com/alxayo/dvrip-go/internal/media"
	"github.com/alxayo/dvrip-go/internal/mux"
	"github.com/alxayo/dvrip-go/internal/protocol"
)

// monitorStartMsgID is the device's literal "start streaming" message id.
// It does not appear in the verb table because it is only ever used as the
// second half of the OPMonitor Claim/Start dance, never looked up by name.
const monitorStartMsgID uint16 = 1410

// StartMonitor claims channel's video stream with the given stream profile
// (e.g. "Main", "Extra1") and installs onFrame as the default video handler.
// onFrame is invoked from the reader goroutine and must not block.
func (c *Client) StartMonitor(ctx context.Context, channel uint8, stream string, onFrame FrameCallback) error {
	if err := c.requireConnected("start_monitor"); err != nil {
		return err
	}

	params, _ := sjson.SetBytes([]byte("{}"), "Channel", channel)
	params, _ = sjson.SetBytes(params, "CombinMode", "NONE")
	params, _ = sjson.SetBytes(params, "StreamType", stream)
	params, _ = sjson.SetBytes(params, "TransMode", "TCP")

	claim, _ := sjson.SetBytes([]byte("{}"), "Action", "Claim")
	claim, _ = sjson.SetRawBytes(claim, "Parameter", params)

	ok, err := c.setSuccess(ctx, "OPMonitor", claim, protocol.MsgID["OPMonitor"])
	if err != nil {
		return err
	}
	if !ok {
		return protoerr.NewProtocolError("start_monitor", fmt.Errorf("failed to start monitoring"))
	}

	startOPMonitor, _ := sjson.SetBytes([]byte("{}"), "Action", "Start")
	startOPMonitor, _ = sjson.SetRawBytes(startOPMonitor, "Parameter", params)

	start, _ := sjson.SetBytes([]byte("{}"), "Name", "OPMonitor")
	start, _ = sjson.SetBytes(start, "SessionID", sessionIDHex(c.SessionID()))
	start, _ = sjson.SetRawBytes(start, "OPMonitor", startOPMonitor)

	if _, err := c.sendJSON(ctx, monitorStartMsgID, start, false); err != nil {
		return err
	}

	cb := onFrame
	c.frameCB.Store(&cb)
	c.m.SetVideoHandler(c.dispatchFrame)
	c.m.EnableVideo(true)
	c.monitoring.Store(true)
	return nil
}

// StopMonitor clears the monitoring flag. The device keeps streaming video
// frames regardless; the reader silently discards them once the flag is
// cleared.
func (c *Client) StopMonitor() {
	c.monitoring.Store(false)
	c.m.EnableVideo(false)
}

func (c *Client) dispatchFrame(f mux.Frame) {
	cbPtr := c.frameCB.Load()
	if cbPtr == nil {
		return
	}
	frame, meta, err := media.ParseFrame(f.Body)
	if err != nil {
		c.log.Debug("dropped unparseable media frame", "error", err)
		return
	}
	(*cbPtr)(frame, meta)
}

// Snapshot issues a single-frame still capture (OPSNAP) and returns it
// decoded, bypassing the frame callback entirely.
func (c *Client) Snapshot(ctx context.Context, channel uint8) ([]byte, media.Metadata, error) {
	params, _ := sjson.SetBytes([]byte("{}"), "Channel", channel)
	body, _ := sjson.SetBytes([]byte("{}"), "Name", "OPSNAP")
	body, _ = sjson.SetBytes(body, "SessionID", sessionIDHex(c.SessionID()))
	body, _ = sjson.SetRawBytes(body, "OPSNAP", params)

	raw, err := c.sendRaw(ctx, protocol.MsgID["OPSNAP"], body, true, true)
	if err != nil {
		return nil, media.Metadata{}, err
	}
	if len(raw) == 0 {
		return nil, media.Metadata{}, protoerr.NewConnectionError("snapshot", fmt.Errorf("stream not available"))
	}
	frame, meta, err := media.ParseFrame(raw)
	if err != nil {
		return nil, media.Metadata{}, err
	}
	return frame, meta, nil
}
