/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package correlation

import (
	"errors"
	"maps"
	"sync"
)

// ErrGlobalsFrozen is returned when the process-wide attributes are set twice.
var ErrGlobalsFrozen = errors.New("global attributes already set")

var globals struct {
	mu     sync.RWMutex
	frozen bool
	attrs  map[string]any
}

// SetGlobalAttributes records the process-wide attribute snapshot, typically
// service identity read once at startup. It may be called once; the snapshot
// is immutable afterwards and per-call attributes are layered on top of it.
func SetGlobalAttributes(attrs map[string]any) error {
	globals.mu.Lock()
	defer globals.mu.Unlock()

	if globals.frozen {
		return ErrGlobalsFrozen
	}
	snapshot := make(map[string]any, len(attrs))
	for k, v := range attrs {
		snapshot[k] = Normalize(v)
	}
	globals.attrs = snapshot
	globals.frozen = true
	return nil
}

// GlobalAttributes returns a copy of the process-wide attribute snapshot.
func GlobalAttributes() map[string]any {
	globals.mu.RLock()
	defer globals.mu.RUnlock()

	out := make(map[string]any, len(globals.attrs))
	maps.Copy(out, globals.attrs)
	return out
}

// resetGlobals is used by tests.
func resetGlobals() {
	globals.mu.Lock()
	defer globals.mu.Unlock()
	globals.frozen = false
	globals.attrs = nil
}
