// Package wire implements semalb's text framing: the registration
// handshake, the correlation-tagged request/response frames exchanged with
// backends, and the size/shape limits the protocol relies on (spec.md §6).
package wire

import (
	"strings"
)

// MaxDataSize bounds a single logical read/frame, per spec.md §4.1 — the
// protocol has no length prefix, so one read up to this many bytes is
// treated as one logical message.
const MaxDataSize = 1024

// RegisterPrefix marks a connection's first frame as a backend control
// channel rather than a client (spec.md §4.1).
const RegisterPrefix = "REGISTER|"

// Registered and InvalidRegister are the balancer's two possible replies to
// a registration attempt (spec.md §6).
const (
	Registered      = "REGISTERED"
	InvalidRegister = "INVALID REGISTER MESSAGE"
)

// IsRegistration reports whether payload is a backend registration frame.
func IsRegistration(payload string) bool {
	return strings.HasPrefix(payload, RegisterPrefix)
}

// ParseRegistration splits a "REGISTER|<host>|<port>" frame. It requires
// exactly three pipe-delimited fields; anything else is malformed
// (spec.md §4.2).
func ParseRegistration(payload string) (host, port string, ok bool) {
	parts := strings.Split(payload, "|")
	if len(parts) != 3 {
		return "", "", false
	}
	host, port = parts[1], parts[2]
	if host == "" || port == "" {
		return "", "", false
	}
	return host, port, true
}

// EncodeRequest builds the balancer-to-backend frame "<requestID>|<payload>"
// (spec.md §6). requestID must not itself contain '|'.
func EncodeRequest(requestID, payload string) string {
	return requestID + "|" + payload
}

// ParseResponse splits a backend-to-balancer frame into its request id and
// response payload. ok is false if the frame has no '|', which terminates
// the session per spec.md §4.4.
func ParseResponse(frame string) (requestID, payload string, ok bool) {
	idx := strings.IndexByte(frame, '|')
	if idx < 0 {
		return "", "", false
	}
	return frame[:idx], frame[idx+1:], true
}
