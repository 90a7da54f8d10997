// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package form_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formantui/formant/form"
)

func TestOptionsDefaults(t *testing.T) {
	o := form.NewOptions()
	assert.Equal(t, 150*time.Millisecond, o.DebounceWindow)
	assert.True(t, o.WrapFocus)
	assert.False(t, o.ValidateWhenHidden)
	assert.False(t, o.SubmitWithPending)
	assert.Equal(t, 3, o.MaxFixedPointPasses)
}

func TestOptionsClamping(t *testing.T) {
	o := form.NewOptions()
	o.DebounceWindow = 5 * time.Millisecond
	pg, err := form.NewPage(form.NewContainer(nil, "form"), o)
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, pg.Opts.DebounceWindow)

	o2 := form.NewOptions()
	o2.DebounceWindow = time.Second
	pg2, err := form.NewPage(form.NewContainer(nil, "form"), o2)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, pg2.Opts.DebounceWindow)

	o3 := form.NewOptions()
	o3.DebounceWindow = 0
	pg3, err := form.NewPage(form.NewContainer(nil, "form"), o3)
	require.NoError(t, err)
	assert.Zero(t, pg3.Opts.DebounceWindow, "zero stays zero: synchronous validation")
}

func TestOptionsFileRoundTrip(t *testing.T) {
	o := form.NewOptions()
	o.DebounceWindow = 75 * time.Millisecond
	o.ValidateWhenHidden = true
	o.WrapFocus = false

	filename := filepath.Join(t.TempDir(), "formant.toml")
	require.NoError(t, form.SaveOptions(o, filename))

	got, err := form.OpenOptions(filename)
	require.NoError(t, err)
	assert.Equal(t, o.DebounceWindow, got.DebounceWindow)
	assert.True(t, got.ValidateWhenHidden)
	assert.False(t, got.WrapFocus)
}

func TestOpenOptionsMissing(t *testing.T) {
	_, err := form.OpenOptions(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}
