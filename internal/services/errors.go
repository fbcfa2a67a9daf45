package services

import "errors"

// ErrAuthenticationFailed covers both an absent room and a bad token: the
// caller must not be able to tell whether a room id exists.
var ErrAuthenticationFailed = errors.New("authentication failed")
