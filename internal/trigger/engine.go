/*
 * relaycore: session core for multi-protocol terminal workstations
 * Copyright 2019-2024 Daniel Selifonov
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */
package trigger

import (
	"bytes"
	"regexp"
	"time"
)

// Fired describes one trigger that matched during an evaluation pass.
type Fired struct {
	Trigger *Trigger
	Action  Action
}

// Engine evaluates a session's triggers, in insertion order, against a
// streaming view of the session's receive buffer. It is not safe for
// concurrent use — like the rest of the dispatcher-owned state, it is
// driven from a single goroutine.
type Engine struct {
	triggers []*Trigger
	compiled map[string]*regexp.Regexp
	lastByte time.Time // last time any bytes were observed, for Timeout conditions
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{compiled: make(map[string]*regexp.Regexp)}
}

// Add validates and appends a trigger. Triggers belong to exactly one
// engine (one session); callers must not share a *Trigger across engines.
func (e *Engine) Add(t *Trigger) error {
	if t.Condition.patternLen() > MaxPatternLen {
		return ErrPatternTooLarge
	}
	if t.Condition.Kind == CondRegex {
		re, err := regexp.Compile(t.Condition.Pattern)
		if err != nil {
			return ErrInvalidRegex
		}
		e.compiled[t.ID] = re
	}
	e.triggers = append(e.triggers, t)
	return nil
}

// Remove drops the trigger with the given id, if present.
func (e *Engine) Remove(id string) {
	for i, t := range e.triggers {
		if t.ID == id {
			e.triggers = append(e.triggers[:i], e.triggers[i+1:]...)
			delete(e.compiled, id)
			return
		}
	}
}

// Triggers returns the current trigger list in insertion order. Callers
// must not mutate the returned slice's backing triggers directly; use
// Remove/Add.
func (e *Engine) Triggers() []*Trigger {
	return e.triggers
}

// RetentionLen returns the longest pattern length among enabled,
// non-timeout triggers — the suffix length the rx buffer must retain
// across evictions so that boundary-spanning matches are not missed.
func (e *Engine) RetentionLen() int {
	max := 0
	for _, t := range e.triggers {
		if !t.Enabled {
			continue
		}
		if n := t.Condition.patternLen(); n > max {
			max = n
		}
	}
	if max > MaxPatternLen {
		max = MaxPatternLen
	}
	return max
}

// EvaluateBuffer runs every enabled, non-timeout trigger against buf (the
// caller-maintained retention-suffix-plus-new-bytes window) in insertion
// order, disabling one-shot triggers before returning their fired action.
func (e *Engine) EvaluateBuffer(buf []byte) []Fired {
	var fired []Fired
	for _, t := range e.triggers {
		if !t.Enabled || t.Condition.Kind == CondTimeout {
			continue
		}
		if !matchCondition(t.Condition, buf, e.compiled[t.ID]) {
			continue
		}
		if t.OneShot {
			t.Enabled = false
		}
		fired = append(fired, Fired{Trigger: t, Action: t.Action})
	}
	return fired
}

// NoteBytesReceived resets the idle clock used by Timeout conditions.
// Called once per successful receive.
func (e *Engine) NoteBytesReceived(at time.Time) {
	e.lastByte = at
}

// EvaluateTimeouts fires Timeout triggers whose configured idle duration
// has elapsed since the last received byte. Callers must only invoke this
// while the session is Connected. Firing restarts the idle clock, so a
// persistent (non-one-shot) timeout trigger fires once per idle period
// rather than on every evaluation tick.
func (e *Engine) EvaluateTimeouts(now time.Time) []Fired {
	var fired []Fired
	idle := now.Sub(e.lastByte)
	for _, t := range e.triggers {
		if !t.Enabled || t.Condition.Kind != CondTimeout {
			continue
		}
		if idle < time.Duration(t.Condition.Timeout) {
			continue
		}
		if t.OneShot {
			t.Enabled = false
		}
		fired = append(fired, Fired{Trigger: t, Action: t.Action})
	}
	if len(fired) > 0 {
		e.lastByte = now
	}
	return fired
}

func matchCondition(c Condition, buf []byte, compiled *regexp.Regexp) bool {
	switch c.Kind {
	case CondExact:
		return bytes.Equal(buf, c.Bytes)
	case CondSubstring:
		return bytes.Contains(buf, []byte(c.Text))
	case CondHexPattern:
		return bytes.Contains(buf, c.Bytes)
	case CondRegex:
		if compiled == nil {
			return false
		}
		return compiled.Match(buf)
	default:
		return false
	}
}
