package wire

import "errors"

// ErrProtocol marks a peer reply that violates the handshake/ack
// contract (anything other than +OK/+PONG where one is expected). It is
// wrapped with context by ParseAck/ParsePong, never returned bare.
var ErrProtocol = errors.New("unexpected reply")
