package dvrip

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	protoerr "github.com/alxayo/dvrip-go/internal/errors"
	"github.com/alxayo/dvrip-go/internal/protocol"
)

// Login authenticates with username/password (the device hashes passwords
// with SofiaHash, never sent in the clear). A non-success Ret from the
// device is reported as (false, nil): bad credentials are not themselves
// an error, only a failed login.
func (c *Client) Login(ctx context.Context, username, password string) (bool, error) {
	if err := c.requireConnected("login"); err != nil {
		return false, err
	}

	body, _ := sjson.SetBytes([]byte("{}"), "EncryptType", "MD5")
	body, _ = sjson.SetBytes(body, "LoginType", "DVRIP-Web")
	body, _ = sjson.SetBytes(body, "UserName", username)
	body, _ = sjson.SetBytes(body, "PassWord", protocol.SofiaHash(password))

	reply, err := c.sendJSON(ctx, protocol.MsgID["Login"], body, true)
	if err != nil {
		return false, protoerr.NewAuthenticationError("login", err)
	}

	ret := gjson.GetBytes(reply, "Ret")
	if !ret.Exists() || !protocol.IsSuccess(int(ret.Int())) {
		return false, nil
	}

	if sid := gjson.GetBytes(reply, "SessionID"); sid.Exists() {
		hex := strings.TrimPrefix(sid.String(), "0x")
		parsed, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return false, protoerr.NewProtocolError("login", err)
		}
		c.m.SetSession(uint32(parsed))
	}

	interval := gjson.GetBytes(reply, "AliveInterval")
	if interval.Exists() && interval.Int() > 0 {
		c.aliveInterval.Store(interval.Int())
	}

	c.username = username
	c.authenticated.Store(true)
	c.startKeepAlive()
	return true, nil
}

// ChangePassword re-authenticates a password change; it shares Login's
// hashing path, never sending either password in the clear.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) (bool, error) {
	if err := c.requireAuthenticated("change_password"); err != nil {
		return false, err
	}

	body, _ := sjson.SetBytes([]byte("{}"), "PassWord", protocol.SofiaHash(oldPassword))
	body, _ = sjson.SetBytes(body, "NewPassWord", protocol.SofiaHash(newPassword))
	body, _ = sjson.SetBytes(body, "Name", c.username)
	body, _ = sjson.SetBytes(body, "SessionID", sessionIDHex(c.SessionID()))

	reply, err := c.sendJSON(ctx, protocol.MsgID["ModifyPassword"], body, true)
	if err != nil {
		return false, err
	}
	ret := gjson.GetBytes(reply, "Ret")
	return ret.Exists() && protocol.IsSuccess(int(ret.Int())), nil
}

// startKeepAlive launches the single keep-alive task: it emits KeepAlive
// every AliveInterval seconds carrying the current session id, without
// awaiting a reply, until the connection is closed.
func (c *Client) startKeepAlive() {
	go func() {
		for {
			interval := time.Duration(c.aliveInterval.Load()) * time.Second
			if interval <= 0 {
				interval = defaultAliveInterval * time.Second
			}
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(interval):
			}
			if !c.connected.Load() {
				return
			}

			body, _ := sjson.SetBytes([]byte("{}"), "Name", "KeepAlive")
			body, _ = sjson.SetBytes(body, "SessionID", sessionIDHex(c.SessionID()))
			if _, err := c.sendJSON(c.ctx, protocol.MsgID["KeepAlive"], body, false); err != nil {
				c.log.Debug("keep-alive submit failed", "error", err)
				return
			}
		}
	}()
}
