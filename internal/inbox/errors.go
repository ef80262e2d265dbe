package inbox

import "errors"

var (
	// ErrEmptyMessage is returned when a send has nothing to deliver.
	ErrEmptyMessage = errors.New("empty message")
	// ErrNoConversation is returned when no conversation is open.
	ErrNoConversation = errors.New("no conversation open")
)
