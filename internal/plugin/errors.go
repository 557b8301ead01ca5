package plugin

import "errors"

// Common errors
var (
	ErrUnsupportedEvent = errors.New("unsupported event type")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrCommandConflict  = errors.New("command name or alias registered twice")
	ErrInvalidLevel     = errors.New("invalid command level")
	ErrDisabled         = errors.New("metabans plugin is disabled")
)
