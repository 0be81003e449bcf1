package dvrip

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/alxayo/dvrip-go/internal/mux"
	"github.com/alxayo/dvrip-go/internal/protocol"
)

// downloadStreamTags are the message ids the reader forwards playback
// frames under once a download/stream has claimed the channel — raw media
// tags plus two explicit device stream ids observed in the wild.
var downloadStreamTags = []uint16{0x1FC, 0x1FD, 0x1FA, 0x1F9, 0x5FC, 0x0592}

const downloadStreamBufferSize = 100

// ListLocalFiles queries the device's file index for fileType
// (e.g. "video") on channel within [begin, end], transparently paginating:
// the device returns at most 64 entries per call, and a full page is
// followed by a repeat query starting from the last entry's BeginTime.
func (c *Client) ListLocalFiles(ctx context.Context, begin, end time.Time, channel uint8, fileType string) ([]json.RawMessage, error) {
	beginStr := begin.Format(protocol.DateFormat)
	endStr := end.Format(protocol.DateFormat)

	query := func(b string) (json.RawMessage, error) {
		params, _ := sjson.SetBytes([]byte("{}"), "BeginTime", b)
		params, _ = sjson.SetBytes(params, "Channel", channel)
		params, _ = sjson.SetBytes(params, "DriverTypeMask", "0x0000FFFF")
		params, _ = sjson.SetBytes(params, "EndTime", endStr)
		params, _ = sjson.SetBytes(params, "Event", "*")
		params, _ = sjson.SetBytes(params, "StreamType", "0x00000000")
		params, _ = sjson.SetBytes(params, "Type", fileType)

		body, _ := sjson.SetBytes([]byte("{}"), "Name", "OPFileQuery")
		body, _ = sjson.SetRawBytes(body, "OPFileQuery", params)
		return c.sendJSON(ctx, protocol.MsgID["OPFileQuery"], body, true)
	}

	reply, err := query(beginStr)
	if err != nil {
		return nil, err
	}

	var result []json.RawMessage
	cursor := beginStr
	for {
		ret := gjson.GetBytes(reply, "Ret")
		if ret.Exists() && ret.Int() != 100 {
			return result, nil
		}

		entries := gjson.GetBytes(reply, "OPFileQuery").Array()
		for _, e := range entries {
			result = append(result, json.RawMessage(e.Raw))
		}

		if len(entries) != 64 {
			return result, nil
		}
		last := entries[len(entries)-1]
		next := last.Get("BeginTime")
		if !next.Exists() {
			return result, nil
		}
		cursor = next.String()

		reply, err = query(cursor)
		if err != nil {
			return nil, err
		}
	}
}

// FileSink is the narrow interface StreamFile writes raw playback frames
// to. Its Write returns only an error, so *os.File does not satisfy it
// directly; DownloadFile wraps the file in a sinkFunc adapter.
type FileSink interface {
	Write(p []byte) error
}

type sinkFunc func([]byte) error

func (f sinkFunc) Write(p []byte) error { return f(p) }

// StreamFile claims filename for playback and forwards every frame to sink
// until the device emits its end-of-stream sentinel (a zero-length frame).
func (c *Client) StreamFile(ctx context.Context, begin, end time.Time, filename string, sink FileSink) error {
	beginStr := begin.Format(protocol.DateFormat)
	endStr := end.Format(protocol.DateFormat)

	params, _ := sjson.SetBytes([]byte("{}"), "PlayMode", "ByName")
	params, _ = sjson.SetBytes(params, "FileName", filename)
	params, _ = sjson.SetBytes(params, "StreamType", 0)
	params, _ = sjson.SetBytes(params, "Value", 0)
	params, _ = sjson.SetBytes(params, "TransMode", "TCP")

	claimInner, _ := sjson.SetBytes([]byte("{}"), "Action", "Claim")
	claimInner, _ = sjson.SetRawBytes(claimInner, "Parameter", params)
	claimInner, _ = sjson.SetBytes(claimInner, "StartTime", beginStr)
	claimInner, _ = sjson.SetBytes(claimInner, "EndTime", endStr)

	claim, _ := sjson.SetBytes([]byte("{}"), "Name", "OPPlayBack")
	claim, _ = sjson.SetRawBytes(claim, "OPPlayBack", claimInner)

	if _, err := c.sendJSON(ctx, protocol.MsgID["OPPlayBackClaim"], claim, true); err != nil {
		return err
	}

	frames := make(chan mux.Frame, downloadStreamBufferSize)
	for _, tag := range downloadStreamTags {
		c.m.RegisterStream(tag, frames)
	}
	defer func() {
		for _, tag := range downloadStreamTags {
			c.m.UnregisterStream(tag)
		}
	}()

	startInner, _ := sjson.SetBytes([]byte("{}"), "Action", "DownloadStart")
	startInner, _ = sjson.SetRawBytes(startInner, "Parameter", params)
	startInner, _ = sjson.SetBytes(startInner, "StartTime", beginStr)
	startInner, _ = sjson.SetBytes(startInner, "EndTime", endStr)

	start, _ := sjson.SetBytes([]byte("{}"), "Name", "OPPlayBack")
	start, _ = sjson.SetRawBytes(start, "OPPlayBack", startInner)
	if _, err := c.sendJSON(ctx, protocol.MsgID["OPPlayBack"], start, false); err != nil {
		return err
	}

drain:
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				break drain
			}
			if f.Header.DataLen == 0 {
				break drain
			}
			if err := sink.Write(f.Body); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	stopParams, _ := sjson.SetBytes([]byte("{}"), "FileName", filename)
	stopParams, _ = sjson.SetBytes(stopParams, "PlayMode", "ByName")
	stopParams, _ = sjson.SetBytes(stopParams, "StreamType", 0)
	stopParams, _ = sjson.SetBytes(stopParams, "TransMode", "TCP")
	stopParams, _ = sjson.SetBytes(stopParams, "Channel", 0)
	stopParams, _ = sjson.SetBytes(stopParams, "Value", 0)

	stopInner, _ := sjson.SetBytes([]byte("{}"), "Action", "DownloadStop")
	stopInner, _ = sjson.SetRawBytes(stopInner, "Parameter", stopParams)
	stopInner, _ = sjson.SetBytes(stopInner, "StartTime", beginStr)
	stopInner, _ = sjson.SetBytes(stopInner, "EndTime", endStr)

	stop, _ := sjson.SetBytes([]byte("{}"), "Name", "OPPlayBack")
	stop, _ = sjson.SetRawBytes(stop, "OPPlayBack", stopInner)
	_, err := c.sendJSON(ctx, protocol.MsgID["OPPlayBack"], stop, false)
	return err
}

// DownloadFile is StreamFile bound to a local file; the file is fsynced
// before returning so a caller that immediately re-opens it for reading
// observes complete data.
func (c *Client) DownloadFile(ctx context.Context, begin, end time.Time, filename, targetPath string) error {
	f, err := os.Create(targetPath)
	if err != nil {
		return err
	}
	defer f.Close()

	sink := sinkFunc(func(p []byte) error {
		_, err := f.Write(p)
		return err
	})
	if err := c.StreamFile(ctx, begin, end, filename, sink); err != nil {
		return err
	}
	return f.Sync()
}
