// Copyright (c) 2026, Formant Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package form

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"github.com/formantui/formant/events"
)

// Severity is the severity of a validation error.
type Severity int32

const (
	// SeverityError makes the element invalid.
	SeverityError Severity = iota

	// SeverityWarning is surfaced but does not block submission.
	SeverityWarning

	// SeverityInfo is informational only.
	SeverityInfo
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	}
	return "error"
}

// ValidationError is one problem reported by a validator.
type ValidationError struct {
	Code     string   `yaml:"code"`
	Message  string   `yaml:"message"`
	Field    string   `yaml:"field,omitempty"`
	Severity Severity `yaml:"severity,omitempty"`
}

// ValidationResult is the outcome of validating one element, possibly
// aggregated over its children.
type ValidationResult struct {

	// Valid is whether the element (and any aggregated children) passed.
	Valid bool `yaml:"valid"`

	// Errors holds the problems found, in validator order.
	Errors []ValidationError `yaml:"errors,omitempty"`

	// Pending is set while any relevant asynchronous validator is
	// outstanding. It propagates upward through aggregation.
	Pending bool `yaml:"pending,omitempty"`

	// CheckedAt is when the validation run was dispatched.
	CheckedAt time.Time `yaml:"checkedAt,omitempty"`

	// Version is the element version captured at dispatch. A completing
	// asynchronous validator whose captured version no longer matches the
	// element is discarded.
	Version uint64 `yaml:"version,omitempty"`
}

// ValidResult returns a passing result.
func ValidResult() ValidationResult {
	return ValidationResult{Valid: true}
}

// InvalidResult returns a failing result with a single error.
func InvalidResult(code, message string) ValidationResult {
	return ValidationResult{Errors: []ValidationError{{Code: code, Message: message}}}
}

// equivalent reports whether two results would look the same to a consumer,
// ignoring timestamps and versions. Dependent revalidation only retriggers
// on inequivalent results, which is what lets circular dependencies reach a
// fixed point.
func (r *ValidationResult) equivalent(o *ValidationResult) bool {
	if o == nil {
		return false
	}
	if r.Valid != o.Valid || r.Pending != o.Pending || len(r.Errors) != len(o.Errors) {
		return false
	}
	for i := range r.Errors {
		if r.Errors[i] != o.Errors[i] {
			return false
		}
	}
	return true
}

// ValidatorFunc inspects a value against the current state and returns a
// result.
type ValidatorFunc func(value any, s *PageState) ValidationResult

// Validator validates one element's value. Exactly one of Func and
// AsyncFunc should be set: Func runs synchronously within the engine turn,
// while AsyncFunc runs as a background task against a state snapshot and
// its result is merged back in a later turn if still current.
type Validator struct {

	// Name identifies the validator in logs and events.
	Name string

	// Func is the synchronous validation function.
	Func ValidatorFunc

	// AsyncFunc is the asynchronous validation function. The context is the
	// page's; cancellation is cooperative by versioning only, so a
	// superseded task simply has its result discarded.
	AsyncFunc func(ctx context.Context, value any, s *PageState) ValidationResult

	// Deps are the paths of other elements this validator reads. Changes to
	// their values or validity retrigger this element's validation.
	Deps []string
}

// IsAsync returns whether the validator runs as a background task.
func (v *Validator) IsAsync() bool {
	return v.AsyncFunc != nil
}

// Built-in validators:

// Required returns a validator failing with code "required" when the value
// is absent or an empty string.
func Required() *Validator {
	return &Validator{
		Name: "required",
		Func: func(value any, s *PageState) ValidationResult {
			if value == nil || value == "" {
				return InvalidResult("required", "a value is required")
			}
			return ValidResult()
		},
	}
}

var emailRegexp = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Email returns a validator failing with code "email" when the value is a
// non-empty string that does not look like an email address. Empty values
// pass; combine with [Required] to forbid them.
func Email() *Validator {
	return &Validator{
		Name: "email",
		Func: func(value any, s *PageState) ValidationResult {
			str, ok := value.(string)
			if !ok || str == "" {
				return ValidResult()
			}
			if !emailRegexp.MatchString(str) {
				return InvalidResult("email", "not a valid email address")
			}
			return ValidResult()
		},
	}
}

// MinLength returns a validator failing with code "min-length" when the
// value is a string shorter than n runes.
func MinLength(n int) *Validator {
	return &Validator{
		Name: "min-length",
		Func: func(value any, s *PageState) ValidationResult {
			if str, ok := value.(string); ok && len([]rune(str)) < n {
				return InvalidResult("min-length", fmt.Sprintf("must be at least %d characters", n))
			}
			return ValidResult()
		},
	}
}

// MaxLength returns a validator failing with code "max-length" when the
// value is a string longer than n runes.
func MaxLength(n int) *Validator {
	return &Validator{
		Name: "max-length",
		Func: func(value any, s *PageState) ValidationResult {
			if str, ok := value.(string); ok && len([]rune(str)) > n {
				return InvalidResult("max-length", fmt.Sprintf("must be at most %d characters", n))
			}
			return ValidResult()
		},
	}
}

// Matches returns a validator failing with the given code when the value is
// a non-empty string not matching the given pattern.
func Matches(pattern, code string) *Validator {
	re := regexp.MustCompile(pattern)
	return &Validator{
		Name: code,
		Func: func(value any, s *PageState) ValidationResult {
			str, ok := value.(string)
			if !ok || str == "" {
				return ValidResult()
			}
			if !re.MatchString(str) {
				return InvalidResult(code, "value does not match the expected format")
			}
			return ValidResult()
		},
	}
}

// Engine:

// Validate schedules validation of the element at the given path and
// settles the resulting turn. With a zero debounce window the run happens
// before Validate returns; otherwise it happens after the window elapses.
func (p *Page) Validate(path string) {
	p.start()
	defer p.finish()
	p.requestValidation(path)
}

// requestValidation schedules one validation run for the path. Requests for
// the same path within the debounce window coalesce into a single run.
func (p *Page) requestValidation(path string) {
	el := p.elems[path]
	if el == nil || len(el.AsElement().Validators) == 0 {
		return
	}
	p.send(events.NewEvent(events.ValidationRequested, path))
	if p.Opts.DebounceWindow <= 0 {
		p.validateNow[path] = struct{}{}
		return
	}
	if t, ok := p.debounce[path]; ok {
		t.Reset(p.Opts.DebounceWindow)
		return
	}
	p.debounce[path] = time.AfterFunc(p.Opts.DebounceWindow, func() {
		p.queue.Send(func() {
			delete(p.debounce, path)
			p.validateNow[path] = struct{}{}
		})
		p.wakeUp()
	})
}

// runValidation dispatches the element's validators: synchronous ones run
// now, asynchronous ones are sent to the background with the element's
// current version and a per-path dispatch generation captured as the
// discard tokens. The version detects writes and structural changes; the
// generation distinguishes repeat dispatches at the same version.
func (p *Page) runValidation(path string) {
	el := p.elems[path]
	if el == nil {
		return
	}
	eb := el.AsElement()
	if len(eb.Validators) == 0 {
		return
	}
	if !p.IsVisible(path) && !p.Opts.ValidateWhenHidden {
		return
	}

	version := eb.Version()
	p.valGen[path]++
	gen := p.valGen[path]
	value, _ := p.State.Get(path)
	res := ValidationResult{Valid: true, CheckedAt: time.Now(), Version: version}
	async := 0
	for _, vd := range eb.Validators {
		if vd.IsAsync() {
			async++
			continue
		}
		r := safeValidate(vd, value, p.State)
		mergeResult(&res, r, "")
	}
	if async > 0 {
		res.Pending = true
		p.pendingAsync[path] = async
	} else {
		delete(p.pendingAsync, path)
	}

	m := p.State.Meta(path)
	prev := m.Validation
	m.Validation = &res
	p.validityChanged(path, prev, &res)

	for _, vd := range eb.Validators {
		if !vd.IsAsync() {
			continue
		}
		fun := vd.AsyncFunc
		name := vd.Name
		snap := p.State.Snapshot()
		p.schedule(func() {
			r := safeValidateAsync(name, fun, p.ctx, value, snap)
			p.queue.Send(func() { p.completeValidation(path, gen, version, r) })
			p.wakeUp()
		})
	}
}

// completeValidation merges one asynchronous validator result back into the
// element, applied inside a turn. A completion from a superseded dispatch
// generation is dropped outright: the newer run owns the pending
// accounting. A current-generation completion whose captured version no
// longer matches the element (it was hidden, edited without revalidation,
// or removed) is discarded but still releases its accounting, since no
// follow-up run will. This is the engine's only cancellation mechanism and
// its core race-safety guarantee.
func (p *Page) completeValidation(path string, gen, version uint64, r ValidationResult) {
	if p.valGen[path] != gen {
		return
	}
	el := p.elems[path]
	var res *ValidationResult
	if m := p.State.meta[path]; m != nil {
		res = m.Validation
	}
	if el == nil || el.AsElement().Version() != version || res == nil || res.Version != version {
		p.releasePending(path, res)
		return
	}
	prev := *res
	mergeResult(res, r, "")
	if n := p.pendingAsync[path] - 1; n > 0 {
		p.pendingAsync[path] = n
	} else {
		delete(p.pendingAsync, path)
		res.Pending = false
	}
	p.validityChanged(path, &prev, res)
}

// releasePending drops one outstanding asynchronous completion for the
// path without merging its result, clearing the stale pending flag once
// the last one is in so a deferred submission can resolve.
func (p *Page) releasePending(path string, res *ValidationResult) {
	if n := p.pendingAsync[path] - 1; n > 0 {
		p.pendingAsync[path] = n
		return
	}
	delete(p.pendingAsync, path)
	if res != nil && res.Pending {
		prev := *res
		res.Pending = false
		p.validityChanged(path, &prev, res)
	}
}

// validityChanged emits validity.changed and, when the result is
// inequivalent to the previous one, retriggers validation of dependents.
func (p *Page) validityChanged(path string, prev, res *ValidationResult) {
	p.changed = true
	ev := events.NewEvent(events.ValidityChanged, path)
	ev.Data = map[string]any{"result": res}
	p.send(ev)
	if res.equivalent(prev) {
		return
	}
	for dep := range p.valDeps[path] {
		if dep != path {
			p.send(events.NewEvent(events.DependencyChanged, dep))
			p.requestValidation(dep)
		}
	}
}

func mergeResult(into *ValidationResult, r ValidationResult, field string) {
	for _, e := range r.Errors {
		if e.Field == "" {
			e.Field = field
		}
		if e.Severity == SeverityError {
			into.Valid = false
		}
		into.Errors = append(into.Errors, e)
	}
	if len(r.Errors) == 0 && !r.Valid {
		into.Valid = false
	}
	if r.Pending {
		into.Pending = true
	}
}

func safeValidate(vd *Validator, value any, s *PageState) (res ValidationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("form: validator panicked", "validator", vd.Name, "err", rec)
			res = ValidationResult{Errors: []ValidationError{{
				Code:    "exception",
				Message: fmt.Sprintf("validator %s: %v", vd.Name, rec),
			}}}
		}
	}()
	return vd.Func(value, s)
}

func safeValidateAsync(name string, fun func(context.Context, any, *PageState) ValidationResult, ctx context.Context, value any, s *PageState) (res ValidationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("form: async validator panicked", "validator", name, "err", rec)
			res = ValidationResult{Errors: []ValidationError{{
				Code:    "exception",
				Message: fmt.Sprintf("validator %s: %v", name, rec),
			}}}
		}
	}()
	return fun(ctx, value, s)
}

// Aggregation:

// EffectiveResult returns the effective validity of the element at the
// given path: its own most recent result ANDed with the effective validity
// of its considered children, per the aggregation policy. Pending
// propagates upward. An element that was never validated counts as valid.
func (p *Page) EffectiveResult(path string) ValidationResult {
	el := p.elems[path]
	if el == nil {
		return ValidResult()
	}
	return p.effectiveResult(el)
}

func (p *Page) effectiveResult(el Element) ValidationResult {
	eb := el.AsElement()
	path := eb.Path()
	agg := ValidationResult{Valid: true, Version: eb.Version()}
	if own := p.State.Meta(path).Validation; own != nil {
		agg.Valid = own.Valid
		agg.Errors = slices.Clone(own.Errors)
		agg.Pending = own.Pending
		agg.CheckedAt = own.CheckedAt
	}
	pol := p.effectivePolicy(el)
	for _, kid := range eb.Children {
		ke, ok := kid.(Element)
		if !ok {
			continue
		}
		if !p.consideredForValidity(ke, pol) {
			continue
		}
		kr := p.effectiveResult(ke)
		if kr.Pending {
			agg.Pending = true
		}
		if !kr.Valid {
			agg.Valid = false
			kpath := ke.AsElement().Path()
			for _, e := range kr.Errors {
				if e.Field == "" {
					e.Field = kpath
				}
				agg.Errors = append(agg.Errors, e)
			}
			if pol.ShortCircuit {
				break
			}
		}
	}
	return agg
}

// effectivePolicy resolves the aggregation policy of the element, walking
// up while Inherit is set.
func (p *Page) effectivePolicy(el Element) AggregationPolicy {
	eb := el.AsElement()
	if !eb.Policy.Inherit || eb.Parent == nil {
		return eb.Policy
	}
	if parent, ok := eb.Parent.(Element); ok {
		return p.effectivePolicy(parent)
	}
	return eb.Policy
}

// consideredForValidity reports whether the child participates in its
// parent's aggregation under the given policy.
func (p *Page) consideredForValidity(el Element, pol AggregationPolicy) bool {
	eb := el.AsElement()
	if eb.Disabled && !pol.IncludeDisabled {
		return false
	}
	if !pol.IncludeHidden && !p.Opts.ValidateWhenHidden && !p.IsVisible(eb.Path()) {
		return false
	}
	return true
}
