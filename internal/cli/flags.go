package cli

import (
	"time"

	"gest/internal/config"
)

// Flags holds command-line flags
type Flags struct {
	NameFilter string
	FailFast   bool
	OnlyFailed bool
	OpenFaills bool
	Timeout    time.Duration
	TimeoutSet bool
	Store      string
	Verbose    bool
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		NameFilter: f.NameFilter,
		FailFast:   f.FailFast,
		OnlyFailed: f.OnlyFailed,
		OpenFaills: f.OpenFaills,
		Timeout:    f.Timeout,
		TimeoutSet: f.TimeoutSet,
		Store:      f.Store,
		Verbose:    f.Verbose,
	}
}
