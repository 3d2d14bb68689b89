package session

import "errors"

// ErrProtocol marks a malformed command line — surfaced to the client as
// "respond\nInvalid Command" rather than logged server-side, since it's
// entirely the client's doing.
var ErrProtocol = errors.New("session: protocol error")
