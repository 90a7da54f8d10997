// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package form

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/formantui/formant/events"
)

// Snapshot is a persistable capture of page state: the stored values plus
// the metadata needed to restore them faithfully, so that a rehydrated
// page does not reapply defaults over user data.
type Snapshot struct {

	// Values are the stored values, keyed by element path.
	Values map[string]any `yaml:"values"`

	// Taken is when the snapshot was captured.
	Taken time.Time `yaml:"taken"`

	// AppliedDefaults lists the paths whose values came from defaults.
	AppliedDefaults []string `yaml:"applied-defaults,omitempty"`
}

// Snapshot captures the current page state.
func (p *Page) Snapshot() *Snapshot {
	sn := &Snapshot{
		Values: map[string]any{},
		Taken:  time.Now(),
	}
	for _, key := range p.State.Keys() {
		sn.Values[key], _ = p.State.Get(key)
	}
	for key, m := range p.State.meta {
		if !m.DefaultsAppliedAt.IsZero() && p.State.Has(key) {
			sn.AppliedDefaults = append(sn.AppliedDefaults, key)
		}
	}
	return sn
}

// ApplySnapshot restores the given snapshot into page state within one
// turn. Restored paths are marked hydrated, so their mounts do not apply
// defaults over the restored values; the page settles visibility and
// validation for everything that changed, and emits snapshot.applied once.
func (p *Page) ApplySnapshot(sn *Snapshot) {
	if sn == nil {
		return
	}
	p.start()
	defer p.finish()
	for key := range sn.Values {
		p.State.Meta(key).Hydrated = true
	}
	for key, v := range sn.Values {
		p.State.Set(key, v)
	}
	p.send(events.NewEvent(events.SnapshotApplied, p.Root.Path()))
}

// SaveSnapshot writes the snapshot to the given YAML file.
func SaveSnapshot(sn *Snapshot, filename string) error {
	b, err := yaml.Marshal(sn)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, b, 0666)
}

// OpenSnapshot reads a snapshot from the given YAML file.
func OpenSnapshot(filename string) (*Snapshot, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	sn := &Snapshot{}
	if err := yaml.Unmarshal(b, sn); err != nil {
		return nil, fmt.Errorf("reading snapshot from %s: %w", filename, err)
	}
	return sn, nil
}

// WatchSnapshotFile watches the given YAML snapshot file and queues an
// [Page.ApplySnapshot] for each change, waking the page's event loop. The
// apply itself still runs on the page goroutine, inside a turn. It returns
// a function that stops the watch.
func (p *Page) WatchSnapshotFile(filename string) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// watch the directory; editors replace files instead of writing in place
	if err := w.Add(filepath.Dir(filename)); err != nil {
		w.Close()
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(filename) {
					continue
				}
				if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
					continue
				}
				sn, err := OpenSnapshot(filename)
				if err != nil {
					slog.Error("form: reloading snapshot", "file", filename, "err", err)
					continue
				}
				p.queue.Send(func() {
					p.ApplySnapshot(sn)
				})
				p.wakeUp()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("form: snapshot watcher", "file", filename, "err", err)
			}
		}
	}()
	return func() {
		close(done)
		w.Close()
	}, nil
}
