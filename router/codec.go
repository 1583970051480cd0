package router

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vsm-go/ucs-core/frame"
	"github.com/vsm-go/ucs-core/message"
)

// encodeMessage msgpack-encodes msg. Framing (the varint length prefix)
// is handled separately by package frame.
func encodeMessage(msg *message.VsmMessage) ([]byte, error) {
	buffer := new(bytes.Buffer)
	err := msgpack.NewEncoder(buffer).Encode(msg)
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func decodeMessage(body []byte) (*message.VsmMessage, error) {
	msg := new(message.VsmMessage)
	err := msgpack.Unmarshal(body, msg)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func frameBytes(payload []byte) []byte {
	return frame.Encode(payload)
}
