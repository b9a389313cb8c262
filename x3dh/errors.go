package x3dh

import "errors"

// ErrOneTimePrekeyUnavailable is returned when an InitialMessage claims a
// one-time prekey id that the responder's bundle no longer holds.
var ErrOneTimePrekeyUnavailable = errors.New("x3dh: one-time prekey unavailable")
