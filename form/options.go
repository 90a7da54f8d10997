// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package form

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Options configures the engine behavior of a [Page]. The zero value is
// not usable; construct with [NewOptions].
type Options struct {

	// DebounceWindow is how long validation for an element waits after a
	// change before it runs, so rapid edits coalesce into one run. Values
	// are clamped between 50ms and 250ms; 0 disables debouncing, running
	// validation synchronously within the turn.
	DebounceWindow time.Duration `toml:"debounce-window"`

	// ValidateWhenHidden runs validators on hidden elements too. By
	// default hidden elements are skipped and keep their last result.
	ValidateWhenHidden bool `toml:"validate-when-hidden"`

	// SubmitWithPending defers the submit callback while validation or
	// default work is outstanding, reporting the final outcome once it
	// resolves. By default a pending form fails submission immediately
	// with [ErrValidationPending].
	SubmitWithPending bool `toml:"submit-with-pending"`

	// WrapFocus wraps focus traversal from the last stop to the first and
	// back. On by default.
	WrapFocus bool `toml:"wrap-focus"`

	// MaxFixedPointPasses bounds the number of passes used to settle
	// cross-field validation dependencies within one turn. Converging
	// cycles stabilize within the bound; anything left after it is
	// reported as unresolved. The default is 3.
	MaxFixedPointPasses int `toml:"max-fixed-point-passes"`
}

// NewOptions returns a new [Options] with the default settings.
func NewOptions() *Options {
	return &Options{
		DebounceWindow:      150 * time.Millisecond,
		WrapFocus:           true,
		MaxFixedPointPasses: 3,
	}
}

// sanitize clamps the options into their supported ranges.
func (o *Options) sanitize() {
	if o.DebounceWindow != 0 {
		o.DebounceWindow = min(max(o.DebounceWindow, 50*time.Millisecond), 250*time.Millisecond)
	}
	if o.MaxFixedPointPasses <= 0 {
		o.MaxFixedPointPasses = 3
	}
}

// OpenOptions reads options from the given TOML file, over the defaults.
func OpenOptions(filename string) (*Options, error) {
	o := NewOptions()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(b, o); err != nil {
		return nil, fmt.Errorf("reading options from %s: %w", filename, err)
	}
	o.sanitize()
	return o, nil
}

// SaveOptions writes the options to the given TOML file.
func SaveOptions(o *Options, filename string) error {
	b, err := toml.Marshal(o)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, b, 0666)
}
