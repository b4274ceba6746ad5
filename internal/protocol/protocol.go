// Package protocol defines the wire envelope and the length-prefixed framing
// used to carry messages over a byte stream. Every frame is a 4-byte big-endian
// payload length followed by exactly that many bytes of UTF-8 JSON.
package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// HeaderSize is the fixed size of the length prefix in bytes.
const HeaderSize = 4

// MaxFrameSize caps the declared payload length. A peer declaring more than
// this desyncs the stream on purpose or by defect; either way the connection
// is not worth keeping.
const MaxFrameSize = 1 << 20

// FormatError reports a frame that could not be decoded. When Err is non-nil
// the stream position is no longer trustworthy (truncated read, oversized
// declared length) and the caller should drop the connection after replying;
// when Err is nil the frame was fully consumed and the stream stays usable.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", e.Reason, e.Err)
	}
	return "protocol: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// Recoverable reports whether the stream can keep being read after this error.
func (e *FormatError) Recoverable() bool { return e.Err == nil }

// Envelope is the tagged structure carried by every frame.
type Envelope struct {
	MsgType string          `json:"msg_type"`
	Data    json.RawMessage `json:"data"`
}

// DecodeData unmarshals the envelope's data object into v.
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

// EncodePayload serializes one envelope without the length prefix, for
// transports that already delimit messages (WebSocket frames, tests). A nil
// data value encodes as an empty object so every message has the same
// {"msg_type": ..., "data": {...}} shape on the wire.
func EncodePayload(msgType string, data any) ([]byte, error) {
	if data == nil {
		data = struct{}{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s data: %w", msgType, err)
	}
	payload, err := json.Marshal(Envelope{MsgType: msgType, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s envelope: %w", msgType, err)
	}
	return payload, nil
}

// Encode builds one complete frame, length prefix included.
func Encode(msgType string, data any) ([]byte, error) {
	payload, err := EncodePayload(msgType, data)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[:HeaderSize], uint32(len(payload)))
	copy(frame[HeaderSize:], payload)
	return frame, nil
}

// Write encodes one message and writes the whole frame to w.
func Write(w io.Writer, msgType string, data any) error {
	frame, err := Encode(msgType, data)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// Read blocks until one full frame has been read from r and returns its
// decoded envelope. A clean EOF on the frame boundary is returned as io.EOF;
// anything else that prevents decoding is a *FormatError.
func Read(r io.Reader) (Envelope, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Envelope{}, io.EOF
		}
		return Envelope{}, &FormatError{Reason: "short header", Err: err}
	}
	size := binary.BigEndian.Uint32(header[:])
	if size == 0 {
		return Envelope{}, &FormatError{Reason: "zero-length frame", Err: io.ErrUnexpectedEOF}
	}
	if size > MaxFrameSize {
		return Envelope{}, &FormatError{
			Reason: fmt.Sprintf("declared length %d exceeds limit", size),
			Err:    io.ErrShortBuffer,
		}
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Envelope{}, &FormatError{Reason: "short payload", Err: err}
	}
	return Decode(payload)
}

// Decode parses one frame payload (without the length prefix).
func Decode(payload []byte) (Envelope, error) {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, &FormatError{Reason: "invalid json payload"}
	}
	if env.MsgType == "" {
		return Envelope{}, &FormatError{Reason: "missing msg_type"}
	}
	return env, nil
}
