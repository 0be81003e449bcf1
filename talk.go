package dvrip

import (
	"context"
	"encoding/binary"

	"github.com/tidwall/sjson"

	protoerr "github.com/alxayo/dvrip-go/internal/errors"
	"github.com/alxayo/dvrip-go/internal/protocol"
)

const (
	talkPacketSize  = 320
	talkSampleRate8 = 2 // sample-rate index for 8000 Hz
)

var talkCodecEncodeType = map[string]string{
	"PCMA": "G711_ALAW",
	"PCMU": "G711_ULAW",
}

var talkCodecID = map[string]byte{
	"PCMA": 14,
	"PCMU": 10,
}

// StartTalk claims the two-way audio channel for codec ("PCMA" or "PCMU")
// and records it for subsequent SendAudio calls.
func (c *Client) StartTalk(ctx context.Context, codec string) error {
	encodeType, ok := talkCodecEncodeType[codec]
	if !ok {
		return protoerr.NewProtocolError("start_talk", errUnknownCodec(codec))
	}

	audioFormat, _ := sjson.SetBytes([]byte("{}"), "EncodeType", encodeType)
	claim, _ := sjson.SetBytes([]byte("{}"), "Action", "Claim")
	claim, _ = sjson.SetRawBytes(claim, "AudioFormat", audioFormat)

	if _, err := c.set(ctx, "OPTalk", claim, protocol.MsgID["OPTalk"]); err != nil {
		return err
	}

	startInner, _ := sjson.SetBytes([]byte("{}"), "Action", "Start")
	startInner, _ = sjson.SetRawBytes(startInner, "AudioFormat", audioFormat)

	start, _ := sjson.SetBytes([]byte("{}"), "Name", "OPTalk")
	start, _ = sjson.SetBytes(start, "SessionID", sessionIDHex(c.SessionID()))
	start, _ = sjson.SetRawBytes(start, "OPTalk", startInner)

	if _, err := c.sendJSON(ctx, protocol.MsgID["OPTalkStart"], start, false); err != nil {
		return err
	}

	c.talkMu.Lock()
	c.talkCodec = codec
	c.talkBuf = c.talkBuf[:0]
	c.talkMu.Unlock()
	return nil
}

// SendAudio appends data to the backchannel buffer and emits one raw audio
// frame (message id 1432, no tail) per complete 320-byte chunk. StartTalk
// must be called first.
func (c *Client) SendAudio(ctx context.Context, data []byte) error {
	c.talkMu.Lock()
	codec := c.talkCodec
	if codec == "" {
		c.talkMu.Unlock()
		return protoerr.NewNotInitializedError("send_audio")
	}
	c.talkBuf = append(c.talkBuf, data...)

	var chunks [][]byte
	for len(c.talkBuf) >= talkPacketSize {
		chunk := make([]byte, talkPacketSize)
		copy(chunk, c.talkBuf[:talkPacketSize])
		chunks = append(chunks, chunk)
		c.talkBuf = c.talkBuf[talkPacketSize:]
	}
	c.talkMu.Unlock()

	codecID := talkCodecID[codec]
	for _, chunk := range chunks {
		frame := make([]byte, 8+talkPacketSize)
		binary.BigEndian.PutUint32(frame[0:4], 0x1FA)
		frame[4] = codecID
		frame[5] = talkSampleRate8
		binary.LittleEndian.PutUint16(frame[6:8], talkPacketSize)
		copy(frame[8:], chunk)

		if _, err := c.sendRaw(ctx, protocol.MsgID["OPTalkData"], frame, false, false); err != nil {
			return err
		}
	}
	return nil
}

// StopTalk tells the device to stop the backchannel and clears the
// recorded codec.
func (c *Client) StopTalk(ctx context.Context) error {
	stop, _ := sjson.SetBytes([]byte("{}"), "Action", "Stop")
	if _, err := c.set(ctx, "OPTalk", stop, protocol.MsgID["OPTalk"]); err != nil {
		return err
	}
	c.talkMu.Lock()
	c.talkCodec = ""
	c.talkBuf = nil
	c.talkMu.Unlock()
	return nil
}

type errUnknownCodec string

func (e errUnknownCodec) Error() string { return "unknown audio codec: " + string(e) }
