package dvrip

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	protoerr "github.com/alxayo/dvrip-go/internal/errors"
	"github.com/alxayo/dvrip-go/internal/mux"
	"github.com/alxayo/dvrip-go/internal/protocol"
)

// StartAlarmMonitoring subscribes to the device's alarm event stream. The
// reader begins dispatching message id 1504 frames to onEvent, keyed by the
// JSON Name field of each event's sub-object, alongside the frame's packet
// counter.
func (c *Client) StartAlarmMonitoring(ctx context.Context, onEvent AlarmCallback) error {
	reply, err := c.get(ctx, "", protocol.MsgID["AlarmSet"])
	if err != nil {
		return err
	}
	ret := gjson.GetBytes(reply, "Ret")
	if ret.Exists() && !protocol.IsSuccess(int(ret.Int())) {
		return protoerr.NewProtocolError("start_alarm_monitoring", fmt.Errorf("failed to start alarm monitoring"))
	}

	cb := onEvent
	c.alarmCB.Store(&cb)
	c.m.SetAlarmHandler(c.dispatchAlarm)
	c.m.EnableAlarm(true)
	c.alarmMonitoring.Store(true)
	return nil
}

// StopAlarmMonitoring clears the alarm-monitoring flag. The device keeps
// emitting events regardless; the reader silently discards them.
func (c *Client) StopAlarmMonitoring() {
	c.alarmMonitoring.Store(false)
	c.m.EnableAlarm(false)
}

func (c *Client) dispatchAlarm(f mux.Frame) {
	cbPtr := c.alarmCB.Load()
	if cbPtr == nil {
		return
	}
	name := gjson.GetBytes(f.Body, "Name").String()
	event := gjson.GetBytes(f.Body, name)
	if !event.Exists() {
		event = gjson.ParseBytes(f.Body)
	}
	(*cbPtr)([]byte(event.Raw), f.Header.Counter)
}

// SetRemoteAlarm arms or disarms the device's remote alarm output.
func (c *Client) SetRemoteAlarm(ctx context.Context, state bool) (bool, error) {
	data, _ := sjson.SetBytes([]byte("{}"), "Event", 0)
	data, _ = sjson.SetBytes(data, "State", state)
	return c.setSuccess(ctx, "OPNetAlarm", data, protocol.MsgID["OPNetAlarm"])
}
