package registry

import "errors"

var (
	ErrDuplicateModlist        = errors.New("modlist already registered")
	ErrModlistNotFound         = errors.New("modlist not found")
	ErrServerOrChannelNotFound = errors.New("server or channel not found")
)
