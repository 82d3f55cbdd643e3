package service

import "errors"

var (
	ErrTurnInProgress    = errors.New("a generation turn is already in progress")
	ErrEmptyPrompt       = errors.New("prompt must not be empty")
	ErrSessionClosed     = errors.New("session is closed")
	ErrMalformedFragment = errors.New("model stream returned an empty fragment")
)
