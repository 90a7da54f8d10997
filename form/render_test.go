// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package form_test

import (
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formantui/formant/form"
)

func TestDescribe(t *testing.T) {
	pg, _ := newTestPage(t, signupForm())

	d := pg.Describe("form.plan")
	require.NotNil(t, d)
	assert.Equal(t, "plan", d.Name)
	assert.Equal(t, form.KindLeaf, d.Kind)
	assert.Equal(t, "select", d.Type)
	assert.Equal(t, []string{"free", "pro"}, d.Options)
	assert.Equal(t, "free", d.Value)

	d = pg.Describe("form.user")
	require.NotNil(t, d)
	assert.Equal(t, form.KindContainer, d.Kind)
	assert.Nil(t, d.Value)

	assert.Nil(t, pg.Describe("form.company.vat"), "hidden elements have no descriptor")
	assert.Nil(t, pg.Describe("form.nope"))

	d = pg.Describe("form.user.name")
	require.NotNil(t, d)
	assert.True(t, d.Invalid, "mount validation marked the empty required field")

	pg.RequestFocus("form.user.name")
	assert.True(t, pg.Describe("form.user.name").Focused)
}

func TestRenderText(t *testing.T) {
	pg, _ := newTestPage(t, signupForm())
	pg.Set("form.user.name", "Ada")
	pg.Set("form.user.email", "ada@example.com")

	assert.Equal(t, []string{
		"form:",
		"  user:",
		"    name: Ada",
		"    email: ada@example.com",
		"  plan: free",
	}, pg.RenderText(80), "hidden subtrees are omitted")

	pg.Set("form.plan", "pro")
	pg.Set("form.company.vat", "DE123")
	lines := pg.RenderText(80)
	assert.Contains(t, lines, "  company:")
	assert.Contains(t, lines, "    vat: DE123")
}

func TestRenderTextMarkers(t *testing.T) {
	pg, _ := newTestPage(t, signupForm())
	pg.Set("form.user.name", "Ada")
	pg.Set("form.user.email", "bad")
	pg.RequestFocus("form.user.name")

	lines := pg.RenderText(80)
	assert.Contains(t, lines, "    name: Ada <")
	assert.Contains(t, lines, "    email: bad [!not a valid email address]")
}

func TestRenderTextTruncation(t *testing.T) {
	pg, _ := newTestPage(t, signupForm())
	pg.Set("form.user.email", "a.very.long.address@example.com")

	for _, line := range pg.RenderText(12) {
		assert.LessOrEqual(t, runewidth.StringWidth(line), 12, "line: %q", line)
	}
}

func TestRenderTextDeterministic(t *testing.T) {
	pg, _ := newTestPage(t, signupForm())
	pg.Set("form.user.name", "Ada")
	assert.Equal(t, pg.RenderText(40), pg.RenderText(40))
}
