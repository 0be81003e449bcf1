package dvrip

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/sjson"

	"github.com/alxayo/dvrip-go/internal/protocol"
)

// ---- System / network / encode configuration (straight get wrappers) ----

func (c *Client) GetSystemInfo(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "SystemInfo", protocol.MsgID["SystemInfo"])
}

func (c *Client) GetGeneralConfig(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "General", protocol.MsgID["General"])
}

func (c *Client) GetNetworkConfig(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "NetWork.NetCommon", protocol.MsgID["NetWork.NetCommon"])
}

func (c *Client) GetEncodeCapability(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "EncodeCapability", protocol.MsgID["EncodeCapability"])
}

func (c *Client) GetSystemFunction(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "SystemFunction", protocol.MsgID["SystemFunction"])
}

func (c *Client) GetChannelTitle(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "ChannelTitle", protocol.MsgID["ChannelTitle"])
}

func (c *Client) GetAuthorityList(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "AuthorityList", protocol.MsgID["AuthorityList"])
}

// ---- Device time ----

// GetTime returns the device's current time, parsed from its
// "YYYY-MM-DD HH:MM:SS" wire format.
func (c *Client) GetTime(ctx context.Context) (time.Time, error) {
	reply, err := c.get(ctx, "OPTimeQuery", protocol.MsgID["OPTimeQuery"])
	if err != nil {
		return time.Time{}, err
	}
	var s string
	if err := json.Unmarshal(reply, &s); err != nil {
		return time.Time{}, err
	}
	return time.ParseInLocation(protocol.DateFormat, s, time.Local)
}

// SetTime sets the device's clock.
func (c *Client) SetTime(ctx context.Context, t time.Time) (bool, error) {
	data, _ := json.Marshal(t.Format(protocol.DateFormat))
	return c.setSuccess(ctx, "OPTimeSetting", data, protocol.MsgID["OPTimeSetting"])
}

// ---- User / group CRUD ----

func (c *Client) GetUsers(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "Users", protocol.MsgID["Users"])
}

func (c *Client) AddUser(ctx context.Context, user json.RawMessage) (bool, error) {
	return c.setSuccess(ctx, "User", user, protocol.MsgID["User"])
}

func (c *Client) ModifyUser(ctx context.Context, user json.RawMessage) (bool, error) {
	return c.setSuccess(ctx, "ModifyUser", user, protocol.MsgID["ModifyUser"])
}

func (c *Client) DeleteUser(ctx context.Context, name string) (bool, error) {
	data, _ := sjson.SetBytes([]byte("{}"), "UserName", name)
	return c.setSuccess(ctx, "DelUser", data, protocol.MsgID["DelUser"])
}

func (c *Client) GetGroups(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "Groups", protocol.MsgID["Groups"])
}

func (c *Client) AddGroup(ctx context.Context, name string) (bool, error) {
	data, _ := sjson.SetBytes([]byte("{}"), "GroupName", name)
	return c.setSuccess(ctx, "AddGroup", data, protocol.MsgID["AddGroup"])
}

func (c *Client) ModifyGroup(ctx context.Context, group json.RawMessage) (bool, error) {
	return c.setSuccess(ctx, "ModifyGroup", group, protocol.MsgID["ModifyGroup"])
}

func (c *Client) DeleteGroup(ctx context.Context, name string) (bool, error) {
	data, _ := sjson.SetBytes([]byte("{}"), "GroupName", name)
	return c.setSuccess(ctx, "DelGroup", data, protocol.MsgID["DelGroup"])
}

// ---- PTZ / keyboard ----

// PTZ issues a continuous PTZ command (cmd, e.g. "DirectionUp", "StartTour")
// for channel with the given step size and preset index (-1 when not
// applicable). Tour is set iff cmd contains "Tour".
func (c *Client) PTZ(ctx context.Context, cmd string, channel, step uint8, preset int32) (bool, error) {
	param, _ := sjson.SetBytes([]byte("{}"), "AUX.Number", 0)
	param, _ = sjson.SetBytes(param, "AUX.Status", "On")
	param, _ = sjson.SetBytes(param, "Channel", channel)
	param, _ = sjson.SetBytes(param, "MenuOpts", "Enter")
	param, _ = sjson.SetBytes(param, "Pattern", "Start")
	param, _ = sjson.SetBytes(param, "Preset", preset)
	param, _ = sjson.SetBytes(param, "Step", step)
	param, _ = sjson.SetBytes(param, "Tour", tourFlag(cmd))

	data, _ := sjson.SetBytes([]byte("{}"), "Command", cmd)
	data, _ = sjson.SetRawBytes(data, "Parameter", param)
	return c.setSuccess(ctx, "OPPTZControl", data, protocol.MsgID["OPPTZControl"])
}

// PTZStep emits the start/stop pair the device expects for a single-step
// nudge: Preset=65535 begins the move, Preset=-1 ends it.
func (c *Client) PTZStep(ctx context.Context, cmd string, step uint8) (bool, error) {
	build := func(preset int32) []byte {
		param, _ := sjson.SetBytes([]byte("{}"), "AUX.Number", 0)
		param, _ = sjson.SetBytes(param, "AUX.Status", "On")
		param, _ = sjson.SetBytes(param, "Channel", 0)
		param, _ = sjson.SetBytes(param, "MenuOpts", "Enter")
		param, _ = sjson.SetBytes(param, "Pattern", "SetBegin")
		param, _ = sjson.SetBytes(param, "Preset", preset)
		param, _ = sjson.SetBytes(param, "Step", step)
		param, _ = sjson.SetBytes(param, "Tour", 0)

		data, _ := sjson.SetBytes([]byte("{}"), "Command", cmd)
		data, _ = sjson.SetRawBytes(data, "Parameter", param)
		return data
	}

	if _, err := c.set(ctx, "OPPTZControl", build(65535), protocol.MsgID["OPPTZControl"]); err != nil {
		return false, err
	}
	return c.setSuccess(ctx, "OPPTZControl", build(-1), protocol.MsgID["OPPTZControl"])
}

func tourFlag(cmd string) int {
	if strings.Contains(cmd, "Tour") {
		return 1
	}
	return 0
}

func (c *Client) keyEvent(ctx context.Context, status, key string) (bool, error) {
	data, _ := sjson.SetBytes([]byte("{}"), "Status", status)
	data, _ = sjson.SetBytes(data, "Value", key)
	return c.setSuccess(ctx, "OPNetKeyboard", data, protocol.MsgID["OPNetKeyboard"])
}

func (c *Client) KeyDown(ctx context.Context, key string) (bool, error) {
	return c.keyEvent(ctx, "KeyDown", key)
}

func (c *Client) KeyUp(ctx context.Context, key string) (bool, error) {
	return c.keyEvent(ctx, "KeyUp", key)
}

// KeyPress presses then releases key with the device's expected 300ms hold.
func (c *Client) KeyPress(ctx context.Context, key string) (bool, error) {
	if _, err := c.KeyDown(ctx, key); err != nil {
		return false, err
	}
	select {
	case <-time.After(300 * time.Millisecond):
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return c.KeyUp(ctx, key)
}

// KeyScript presses each uppercased character of keys via protocol.KeyCodes,
// inserting a one-second pause for each space.
func (c *Client) KeyScript(ctx context.Context, keys string) error {
	for _, r := range keys {
		if r == ' ' {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		code, ok := protocol.KeyCodes[strings.ToUpper(string(r))]
		if !ok {
			continue
		}
		if _, err := c.KeyPress(ctx, code); err != nil {
			return err
		}
	}
	return nil
}
