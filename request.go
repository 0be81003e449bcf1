package dvrip

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	protoerr "github.com/alxayo/dvrip-go/internal/errors"
	"github.com/alxayo/dvrip-go/internal/mux"
	"github.com/alxayo/dvrip-go/internal/protocol"
)

// submit enqueues a fully-formed request (counter already assigned by the
// caller, as upgrade's blocknum-keyed frames require) and waits up to
// timeout for its reply. Used where sendRaw's auto-counter behavior doesn't
// fit.
func (c *Client) submit(ctx context.Context, req *mux.Request, timeout time.Duration) (mux.Frame, error) {
	if err := c.requireConnected("submit"); err != nil {
		return mux.Frame{}, err
	}
	if err := c.m.Submit(ctx, req); err != nil {
		return mux.Frame{}, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case f, ok := <-req.Response:
		if !ok {
			return mux.Frame{}, protoerr.NewConnectionError("submit", fmt.Errorf("connection closed while awaiting msg id %d", req.Header.MsgID))
		}
		return f, nil
	case <-waitCtx.Done():
		return mux.Frame{}, protoerr.NewConnectionError("submit", fmt.Errorf("timeout waiting for msg id %d: %w", req.Header.MsgID, waitCtx.Err()))
	}
}

// sendRaw builds a frame for msgID carrying payload (tailed if addTail),
// enqueues it on the writer, and — if wait is true — blocks for a reply
// correlated by packet counter, bounded by the client's configured timeout.
// The returned bytes are exactly what the device sent back, tail included;
// callers that expect JSON strip the tail themselves (see sendJSON).
func (c *Client) sendRaw(ctx context.Context, msgID uint16, payload []byte, wait, addTail bool) ([]byte, error) {
	if err := c.requireConnected("send_raw"); err != nil {
		return nil, err
	}
	if msgID == 0 {
		return nil, protoerr.NewProtocolError("send_raw", fmt.Errorf("message id 0: verb name missing from the message id table"))
	}

	body := payload
	if addTail {
		body = protocol.WrapJSON(payload, c.version)
	}

	req := &mux.Request{
		Header: protocol.Header{
			Head:    protocol.DefaultMagic,
			Version: c.version,
			MsgID:   msgID,
			DataLen: uint32(len(body)),
		},
		Body:        body,
		AutoCounter: true,
	}

	var resp chan mux.Frame
	if wait {
		resp = make(chan mux.Frame, 1)
		req.Response = resp
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, protoerr.NewConnectionError("send_raw", err)
		}
	}

	if err := c.m.Submit(ctx, req); err != nil {
		return nil, err
	}
	if !wait {
		return nil, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case f, ok := <-resp:
		if !ok {
			return nil, protoerr.NewConnectionError("send_raw", fmt.Errorf("connection closed while awaiting msg id %d", msgID))
		}
		return f.Body, nil
	case <-waitCtx.Done():
		return nil, protoerr.NewConnectionError("send_raw", fmt.Errorf("timeout waiting for msg id %d: %w", msgID, waitCtx.Err()))
	}
}

// sendJSON serializes value, sends it tailed, strips the reply's tail, and
// validates it parses as JSON. wait=false fires-and-forgets, returning nil.
func (c *Client) sendJSON(ctx context.Context, msgID uint16, value []byte, wait bool) ([]byte, error) {
	body, err := c.sendRaw(ctx, msgID, value, wait, true)
	if !wait || err != nil {
		return nil, err
	}
	stripped := protocol.UnwrapJSON(body)
	if !json.Valid(stripped) {
		return nil, protoerr.NewSerializationError("send_json", fmt.Errorf("invalid JSON reply for msg id %d", msgID))
	}
	return stripped, nil
}

// get issues {Name: command, SessionID: <hex>} against msgID and, on a
// successful Ret, unwraps reply[command] when present; otherwise the full
// reply is returned so the caller can still inspect Ret itself.
func (c *Client) get(ctx context.Context, command string, msgID uint16) (json.RawMessage, error) {
	body, _ := sjson.SetBytes([]byte("{}"), "Name", command)
	body, _ = sjson.SetBytes(body, "SessionID", sessionIDHex(c.SessionID()))

	reply, err := c.sendJSON(ctx, msgID, body, true)
	if err != nil {
		return nil, err
	}

	ret := gjson.GetBytes(reply, "Ret")
	if ret.Exists() && protocol.IsSuccess(int(ret.Int())) {
		if sub := gjson.GetBytes(reply, command); sub.Exists() {
			return json.RawMessage(sub.Raw), nil
		}
	}
	return json.RawMessage(reply), nil
}

// set issues {Name: command, SessionID: <hex>, <command>: data} against
// msgID and returns the (already tail-stripped) JSON reply. data may be nil
// for verbs with no body beyond Name/SessionID.
func (c *Client) set(ctx context.Context, command string, data []byte, msgID uint16) (json.RawMessage, error) {
	body, _ := sjson.SetBytes([]byte("{}"), "Name", command)
	body, _ = sjson.SetBytes(body, "SessionID", sessionIDHex(c.SessionID()))
	if len(data) > 0 {
		var err error
		body, err = sjson.SetRawBytes(body, command, data)
		if err != nil {
			return nil, protoerr.NewSerializationError("set", err)
		}
	}
	return c.sendJSON(ctx, msgID, body, true)
}

// setSuccess is the common shape of a set() caller that only cares whether
// Ret landed in the success set.
func (c *Client) setSuccess(ctx context.Context, command string, data []byte, msgID uint16) (bool, error) {
	reply, err := c.set(ctx, command, data, msgID)
	if err != nil {
		return false, err
	}
	ret := gjson.GetBytes(reply, "Ret")
	return ret.Exists() && protocol.IsSuccess(int(ret.Int())), nil
}

func sessionIDHex(id uint32) string {
	return fmt.Sprintf("0x%08X", id)
}
