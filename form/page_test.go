// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package form_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formantui/formant/events"
	"github.com/formantui/formant/form"
)

// testRenderer runs background tasks inline, so completions are queued
// deterministically and drained before the turn settles.
type testRenderer struct {
	invalidates int
	transfers   []string
}

func (r *testRenderer) Invalidate()               { r.invalidates++ }
func (r *testRenderer) FocusTransfer(path string) { r.transfers = append(r.transfers, path) }
func (r *testRenderer) Go(fun func())             { fun() }

// captureRenderer collects background tasks instead of running them, so
// tests control completion order.
type captureRenderer struct {
	testRenderer
	tasks []func()
}

func (r *captureRenderer) Go(fun func()) { r.tasks = append(r.tasks, fun) }

// runTasks runs the captured tasks in the given order and clears them.
func (r *captureRenderer) runTasks(order ...int) {
	for _, i := range order {
		r.tasks[i]()
	}
	r.tasks = nil
}

// signupForm is the shared fixture: a signup form whose company section is
// only visible on the pro plan.
func signupForm() *form.Container {
	root := form.NewContainer(nil, "form")
	user := form.NewContainer(root, "user")
	name := form.NewField(user, "name")
	name.Validators = []*form.Validator{form.Required()}
	email := form.NewField(user, "email")
	email.Validators = []*form.Validator{form.Required(), form.Email()}
	plan := form.NewField(root, "plan")
	plan.Type = "select"
	plan.Options = []string{"free", "pro"}
	plan.Default = "free"
	company := form.NewContainer(root, "company")
	company.VisibleWhen = form.VisibleWhenEq("form.plan", "pro")
	vat := form.NewField(company, "vat")
	vat.Validators = []*form.Validator{form.Required()}
	note := form.NewField(company, "note")
	note.Ephemeral = true
	return root
}

func newTestPage(t *testing.T, root *form.Container) (*form.Page, *testRenderer) {
	t.Helper()
	opts := form.NewOptions()
	opts.DebounceWindow = 0
	pg, err := form.NewPage(root, opts)
	require.NoError(t, err)
	r := &testRenderer{}
	pg.SetRenderer(r)
	return pg, r
}

func TestNewPage(t *testing.T) {
	pg, _ := newTestPage(t, signupForm())

	assert.True(t, pg.IsVisible("form"))
	assert.True(t, pg.IsVisible("form.user.name"))
	assert.False(t, pg.IsVisible("form.company"))
	assert.False(t, pg.IsVisible("form.company.vat"))

	// the plan default was applied at mount
	v, ok := pg.Get("form.plan")
	assert.True(t, ok)
	assert.Equal(t, "free", v)

	assert.NotNil(t, pg.Find("form.user.email"))
	assert.Nil(t, pg.Find("form.user.phone"))
}

func TestNewPageNilRoot(t *testing.T) {
	_, err := form.NewPage(nil)
	assert.Error(t, err)
}

func TestSetGetWatch(t *testing.T) {
	pg, _ := newTestPage(t, signupForm())

	var got [][2]any
	unwatch := pg.Watch("form.user.name", func(old, new any) {
		got = append(got, [2]any{old, new})
	})

	pg.Set("form.user.name", "Ada")
	pg.Set("form.user.name", "Ada") // no-op: deeply equal
	pg.Set("form.user.name", "Grace")

	require.Len(t, got, 2)
	assert.Equal(t, [2]any{nil, "Ada"}, got[0])
	assert.Equal(t, [2]any{"Ada", "Grace"}, got[1])

	unwatch()
	pg.Set("form.user.name", "Edsger")
	assert.Len(t, got, 2)

	assert.True(t, pg.Has("form.user.name"))
	assert.False(t, pg.SetIfAbsent("form.user.name", "x"))
	assert.True(t, pg.SetIfAbsent("form.user.nick", "ed"))
}

func TestVisibilityLaw(t *testing.T) {
	pg, _ := newTestPage(t, signupForm())
	pg.Set("form.plan", "pro")

	// effective visibility is own flag AND predicate AND all ancestors
	assert.True(t, pg.IsVisible("form.company.vat"))
	require.NoError(t, pg.SetVisible("form.company", false))
	assert.False(t, pg.IsVisible("form.company"))
	assert.False(t, pg.IsVisible("form.company.vat"), "hidden ancestor hides the subtree")
	require.NoError(t, pg.SetVisible("form.company", true))
	assert.True(t, pg.IsVisible("form.company.vat"))

	pg.Set("form.plan", "free")
	assert.False(t, pg.IsVisible("form.company.vat"), "failing predicate hides the subtree")
}

func TestVisibilityToggle(t *testing.T) {
	pg, _ := newTestPage(t, signupForm())

	var mounted, unmounted []string
	pg.On(events.Mounted, func(e *events.Event) { mounted = append(mounted, e.Path) })
	pg.On(events.Unmounted, func(e *events.Event) { unmounted = append(unmounted, e.Path) })

	pg.Set("form.plan", "pro")
	assert.True(t, pg.IsVisible("form.company"))
	assert.Equal(t, []string{"form.company", "form.company.vat", "form.company.note"}, mounted,
		"mounts run parent before child")

	pg.Set("form.company.vat", "DE123")
	pg.Set("form.company.note", "call them")

	pg.Set("form.plan", "free")
	assert.False(t, pg.IsVisible("form.company"))
	assert.Equal(t, []string{"form.company.note", "form.company.vat", "form.company"}, unmounted,
		"unmounts run child before parent")
	assert.True(t, pg.Has("form.company.vat"), "values persist through unmount")
	assert.False(t, pg.Has("form.company.note"), "ephemeral values are dropped on unmount")

	pg.Set("form.plan", "pro")
	v, _ := pg.Get("form.company.vat")
	assert.Equal(t, "DE123", v)
}

func TestPredicatePanicResolvesVisible(t *testing.T) {
	root := form.NewContainer(nil, "form")
	f := form.NewField(root, "broken")
	f.VisibleWhen = &form.Predicate{
		Func: func(s *form.PageState) bool { panic("boom") },
	}
	pg, _ := newTestPage(t, root)
	assert.True(t, pg.IsVisible("form.broken"))
}

func TestVisibilityCycleRejected(t *testing.T) {
	root := form.NewContainer(nil, "form")
	a := form.NewField(root, "a")
	a.VisibleWhen = &form.Predicate{
		Func: func(s *form.PageState) bool { return true },
		Deps: []string{"form.b"},
	}
	b := form.NewField(root, "b")
	b.VisibleWhen = &form.Predicate{
		Func: func(s *form.PageState) bool { return true },
		Deps: []string{"form.a"},
	}
	_, err := form.NewPage(root)
	require.ErrorIs(t, err, form.ErrCycle)
}

func TestSetVisibleWhenCycleRollback(t *testing.T) {
	root := form.NewContainer(nil, "form")
	a := form.NewField(root, "a")
	a.VisibleWhen = &form.Predicate{
		Func: func(s *form.PageState) bool { return true },
		Deps: []string{"form.b"},
	}
	form.NewField(root, "b")
	pg, _ := newTestPage(t, root)

	err := pg.SetVisibleWhen("form.b", &form.Predicate{
		Func: func(s *form.PageState) bool { return false },
		Deps: []string{"form.a"},
	})
	require.ErrorIs(t, err, form.ErrCycle)
	assert.True(t, pg.IsVisible("form.b"), "rejected predicate must not take effect")
}

func TestSetVisibleUnknownPath(t *testing.T) {
	pg, _ := newTestPage(t, signupForm())
	assert.Error(t, pg.SetVisible("form.nope", false))
	assert.Error(t, pg.SetVisibleWhen("form.nope", nil))
}

func TestAddElement(t *testing.T) {
	pg, _ := newTestPage(t, signupForm())

	var mounted []string
	pg.On(events.Mounted, func(e *events.Event) { mounted = append(mounted, e.Path) })

	nick := form.NewField(nil, "nick")
	require.NoError(t, pg.AddElement("form.user", nick))
	assert.NotNil(t, pg.Find("form.user.nick"))
	assert.True(t, pg.IsVisible("form.user.nick"))
	assert.Equal(t, []string{"form.user.nick"}, mounted)

	dup := form.NewField(nil, "name")
	assert.Error(t, pg.AddElement("form.user", dup), "duplicate sibling name")

	assert.Error(t, pg.AddElement("form.nope", form.NewField(nil, "x")))
}

func TestAddElementCycleRollsBack(t *testing.T) {
	pg, _ := newTestPage(t, signupForm())

	bad := form.NewField(nil, "bad")
	bad.VisibleWhen = &form.Predicate{
		Func: func(s *form.PageState) bool { return true },
		Deps: []string{"form.user.bad"}, // self-referential
	}
	err := pg.AddElement("form.user", bad)
	require.ErrorIs(t, err, form.ErrCycle)
	assert.Nil(t, pg.Find("form.user.bad"))
}

func TestRemove(t *testing.T) {
	pg, _ := newTestPage(t, signupForm())
	pg.Set("form.user.name", "Ada")

	var unmounted []string
	pg.On(events.Unmounted, func(e *events.Event) { unmounted = append(unmounted, e.Path) })

	require.NoError(t, pg.Remove("form.user"))
	assert.Nil(t, pg.Find("form.user"))
	assert.Nil(t, pg.Find("form.user.name"))
	assert.Equal(t, []string{"form.user.name", "form.user.email", "form.user"}, unmounted)
	assert.True(t, pg.Has("form.user.name"), "values persist after removal")

	assert.Error(t, pg.Remove("form.user"), "already removed")
	assert.Error(t, pg.Remove("form"), "root cannot be removed")
}

func TestInvalidateCoalescing(t *testing.T) {
	pg, r := newTestPage(t, signupForm())

	// one turn with many transitions: visibility, mounts, defaults,
	// validation, still one invalidate
	pg.Set("form.plan", "pro")
	assert.Equal(t, 1, r.invalidates)

	pg.Set("form.plan", "pro") // no-op write
	assert.Equal(t, 1, r.invalidates)

	pg.Set("form.user.name", "Ada")
	assert.Equal(t, 2, r.invalidates)
}

func TestFlushOutsideTurn(t *testing.T) {
	pg, r := newTestPage(t, signupForm())
	pg.Flush()
	assert.Equal(t, 0, r.invalidates, "an empty flush does not invalidate")
}
