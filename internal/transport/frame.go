package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hashicorp/go-msgpack/codec"

	"github.com/nexuscore/nexuscore/internal/coreerrors"
)

// Frame is the wire unit for every peer RPC: a type tag naming the variant
// (Ping, JoinNode, or a naming-forward op) and an opaque body the receiver
// decodes according to the tag. The Frame itself is msgpack-encoded; the
// body is whatever bytes the sender put there (JSON for naming and Raft
// commands, the raw node id for a ping).
type Frame struct {
	TypeTag string `codec:"type_tag"`
	Body    []byte `codec:"body"`
}

var mh codec.MsgpackHandle

// EncodeFrame serialises a Frame for writing to a peer connection.
func EncodeFrame(f Frame) ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, &mh)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("%w: encode frame: %v", coreerrors.ErrEncoding, err)
	}
	return buf.Bytes(), nil
}

// DecodeFrame parses a Frame previously produced by EncodeFrame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	dec := codec.NewDecoder(bytes.NewReader(data), &mh)
	if err := dec.Decode(&f); err != nil {
		return Frame{}, fmt.Errorf("%w: decode frame: %v", coreerrors.ErrEncoding, err)
	}
	return f, nil
}

// WriteFrame writes a length-prefixed frame to w: a 4-byte big-endian byte
// count followed by the msgpack payload. TCP gives no message boundaries of
// its own, so every frame needs one on the wire.
func WriteFrame(w io.Writer, f Frame) error {
	payload, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	return DecodeFrame(payload)
}
