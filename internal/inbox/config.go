package inbox

import "time"

// Config identifies the gateway instance an Inbox talks to and tunes its
// paging and reconciliation. It is built once per instance selection and
// replaced wholesale when the user switches instance.
type Config struct {
	// Instance is the session name stamped on every push event.
	Instance string
	// InstanceID is the stable id of the instance. Empty disables the check.
	InstanceID string
	// ServerURL must be contained in the server field of accepted events.
	ServerURL string

	InitialPageSize int
	MorePageSize    int

	// MatchWindow bounds the clock distance between a provisional message
	// and the gateway echo that confirms it.
	MatchWindow time.Duration
}

// DefaultConfig returns the reference paging and matching tuning.
func DefaultConfig() Config {
	return Config{
		InitialPageSize: 200,
		MorePageSize:    500,
		MatchWindow:     60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.InitialPageSize <= 0 {
		c.InitialPageSize = d.InitialPageSize
	}
	if c.MorePageSize <= 0 {
		c.MorePageSize = d.MorePageSize
	}
	if c.MatchWindow <= 0 {
		c.MatchWindow = d.MatchWindow
	}
	return c
}
