// Package codec provides the rpcx wire codec the admin surface registers
// under its own SerializeType, grounded on the teacher's
// netw/codec.MsgpCodec. It is copied rather than imported because
// internal/netw's codec is tied to the teacher's raft/master RPC args,
// which this module does not build; the codec itself is generic.
package codec

import (
	"bytes"
	"fmt"

	"github.com/Allen1211/msgp/msgp"
)

type MsgpCodec struct{}

func (c *MsgpCodec) Decode(data []byte, i interface{}) error {
	d, ok := i.(msgp.Decodable)
	if !ok {
		return fmt.Errorf("codec: %T is not msgp.Decodable", i)
	}
	return msgp.Decode(bytes.NewReader(data), d)
}

func (c *MsgpCodec) Encode(i interface{}) ([]byte, error) {
	e, ok := i.(msgp.Encodable)
	if !ok {
		return nil, fmt.Errorf("codec: %T is not msgp.Encodable", i)
	}
	buf := new(bytes.Buffer)
	if err := msgp.Encode(buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
