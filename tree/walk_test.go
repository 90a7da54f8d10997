// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/formantui/formant/tree"
)

// buildTestTree returns:
//
//	form
//	├── user
//	│   ├── name
//	│   └── email
//	└── company
//	    └── vat
func buildTestTree() *NodeBase {
	form := newNamed(nil, "form")
	user := newNamed(form, "user")
	newNamed(user, "name")
	newNamed(user, "email")
	company := newNamed(form, "company")
	newNamed(company, "vat")
	return form
}

func names(ns []Node) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.AsTree().Name
	}
	return out
}

func TestWalkDown(t *testing.T) {
	form := buildTestTree()
	var got []Node
	form.WalkDown(func(n Node) bool {
		got = append(got, n)
		return Continue
	})
	assert.Equal(t, []string{"form", "user", "name", "email", "company", "vat"}, names(got))
}

func TestWalkDownBreak(t *testing.T) {
	form := buildTestTree()
	var got []Node
	form.WalkDown(func(n Node) bool {
		got = append(got, n)
		return n.AsTree().Name != "user" // skip user's children
	})
	assert.Equal(t, []string{"form", "user", "company", "vat"}, names(got))
}

func TestWalkDownPost(t *testing.T) {
	form := buildTestTree()
	var got []Node
	form.WalkDownPost(func(n Node) bool {
		got = append(got, n)
		return Continue
	})
	// children before parents: the order needed for unmounting
	assert.Equal(t, []string{"name", "email", "user", "vat", "company", "form"}, names(got))
}

func TestWalkDownBreadth(t *testing.T) {
	form := buildTestTree()
	var got []Node
	form.WalkDownBreadth(func(n Node) bool {
		got = append(got, n)
		return Continue
	})
	assert.Equal(t, []string{"form", "user", "company", "name", "email", "vat"}, names(got))
}

func TestWalkUp(t *testing.T) {
	form := buildTestTree()
	email := form.FindPath("user.email")
	var got []Node
	email.AsTree().WalkUp(func(n Node) bool {
		got = append(got, n)
		return Continue
	})
	assert.Equal(t, []string{"email", "user", "form"}, names(got))

	got = nil
	email.AsTree().WalkUpParent(func(n Node) bool {
		got = append(got, n)
		return Continue
	})
	assert.Equal(t, []string{"user", "form"}, names(got))
}

func TestWalkDownDestroy(t *testing.T) {
	form := buildTestTree()
	// destroying the visited node mid-walk must not panic or revisit
	form.WalkDown(func(n Node) bool {
		if n.AsTree().Name == "user" {
			n.AsTree().Delete()
		}
		return Continue
	})
	assert.Nil(t, form.FindPath("user"))
	assert.NotNil(t, form.FindPath("company.vat"))
}
