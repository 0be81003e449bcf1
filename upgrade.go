package dvrip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/alxayo/dvrip-go/internal/bufpool"
	protoerr "github.com/alxayo/dvrip-go/internal/errors"
	"github.com/alxayo/dvrip-go/internal/mux"
	"github.com/alxayo/dvrip-go/internal/protocol"
)

// upgradeSystemUpgradeMsgID is the phase-A submission code. The reference
// implementation's upgrade module uses the literal 0x5F0 here, but that
// draft is flagged elsewhere as one of two inconsistent upgrade drafts;
// this implementation follows the code fixed by the authoritative
// requirements surface, 0x5F5.
const upgradeSystemUpgradeMsgID uint16 = 0x5F5

const upgradeTransferMsgID uint16 = 0x5F2

// Upgrade performs a two-phase firmware upload: a Start handshake, then the
// file sent in fixed-size blocks each requiring a 100-Ret ACK, followed by a
// persistent-listener phase watching for a terminal Ret (515 success,
// {512,513,514} failure, or <=100 interim progress). onProgress may be nil.
func (c *Client) Upgrade(ctx context.Context, filePath string, blockSize int, onProgress UpgradeProgressCallback) (json.RawMessage, error) {
	startBody, _ := sjson.SetBytes([]byte("{}"), "Action", "Start")
	startBody, _ = sjson.SetBytes(startBody, "Type", "System")

	reply, err := c.set(ctx, "OPSystemUpgrade", startBody, upgradeSystemUpgradeMsgID)
	if err != nil {
		return nil, err
	}
	ret := gjson.GetBytes(reply, "Ret")
	if ret.Exists() && !protocol.IsSuccess(int(ret.Int())) {
		return reply, nil
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, protoerr.NewIoError("upgrade", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, protoerr.NewIoError("upgrade", err)
	}
	fileSize := info.Size()

	var blocknum uint32
	var sent int64
	buf := bufpool.Get(blockSize)
	defer bufpool.Put(buf)

	for {
		n, err := f.Read(buf)
		if n == 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				return nil, protoerr.NewIoError("upgrade", err)
			}
			break
		}

		frameReply, err := c.sendUpgradeBlock(ctx, blocknum, buf[:n])
		if err != nil {
			return nil, err
		}
		if ackRet := gjson.GetBytes(frameReply, "Ret"); ackRet.Exists() && ackRet.Int() != 100 {
			if onProgress != nil {
				onProgress("Upgrade failed")
			}
			return frameReply, nil
		}

		blocknum++
		sent += int64(n)
		if onProgress != nil {
			pct := 100 * float64(sent) / float64(fileSize)
			onProgress(fmt.Sprintf("Uploading: %.1f%%", pct))
		}
	}

	if _, err := c.sendUpgradeBlock(ctx, blocknum, nil); err != nil {
		return nil, err
	}

	return c.awaitUpgradeCompletion(ctx, onProgress)
}

func (c *Client) sendUpgradeBlock(ctx context.Context, blocknum uint32, chunk []byte) (json.RawMessage, error) {
	payload := protocol.WrapJSON(chunk, c.version)
	resp := make(chan mux.Frame, 1)
	req := &mux.Request{
		Header: protocol.Header{
			Head:    protocol.DefaultMagic,
			Version: c.version,
			MsgID:   upgradeTransferMsgID,
			Counter: blocknum,
			DataLen: uint32(len(payload)),
		},
		Body:        payload,
		AutoCounter: false,
		Response:    resp,
	}
	f, err := c.submit(ctx, req, c.timeout)
	if err != nil {
		return nil, err
	}
	stripped := protocol.UnwrapJSON(f.Body)
	if !json.Valid(stripped) {
		return nil, protoerr.NewSerializationError("upgrade", fmt.Errorf("invalid JSON ACK for block %d", blocknum))
	}
	return stripped, nil
}

func (c *Client) awaitUpgradeCompletion(ctx context.Context, onProgress UpgradeProgressCallback) (json.RawMessage, error) {
	frames := make(chan mux.Frame, 10)
	c.m.RegisterStream(upgradeTransferMsgID, frames)
	defer c.m.UnregisterStream(upgradeTransferMsgID)

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return nil, protoerr.NewConnectionError("upgrade", fmt.Errorf("stream closed unexpectedly"))
			}
			stripped := protocol.UnwrapJSON(f.Body)
			if !json.Valid(stripped) {
				continue
			}
			ret := gjson.GetBytes(stripped, "Ret")
			if !ret.Exists() {
				continue
			}
			switch {
			case ret.Int() == 515:
				if onProgress != nil {
					onProgress("Upgrade successful")
				}
				return json.RawMessage(stripped), nil
			case ret.Int() == 512 || ret.Int() == 513 || ret.Int() == 514:
				if onProgress != nil {
					onProgress("Upgrade failed")
				}
				return json.RawMessage(stripped), nil
			case ret.Int() <= 100:
				if onProgress != nil {
					onProgress(fmt.Sprintf("Upgrading: %d%%", ret.Int()))
				}
			}
		case <-ctx.Done():
			return nil, protoerr.NewConnectionError("upgrade", ctx.Err())
		}
	}
}
