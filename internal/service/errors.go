package service

import "errors"

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrUsernameAlreadyTaken   = errors.New("username already taken")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidToken           = errors.New("invalid or expired token")
	ErrUserNotFound           = errors.New("user not found")

	// ErrMultipleSession is a policy rejection, not an authentication failure:
	// a non-premium user already has an active session on a different device.
	ErrMultipleSession = errors.New("active session on another device")

	// ErrOracleUnavailable marks a billing-oracle transport or non-2xx failure.
	// It never propagates as a request failure; callers degrade to local state.
	ErrOracleUnavailable = errors.New("billing oracle unavailable")
)
