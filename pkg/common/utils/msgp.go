package utils

import (
	"bytes"

	"github.com/Allen1211/msgp/msgp"
)

// MsgpEncode and MsgpDecode are thin wrappers around the msgp runtime's
// stream-based Encode/Decode helpers, so every msgp.Encodable/Decodable in
// this module round-trips through one place.

func MsgpEncode(e msgp.Encodable) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := msgp.Encode(buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func MsgpDecode(data []byte, d msgp.Decodable) error {
	return msgp.Decode(bytes.NewReader(data), d)
}
