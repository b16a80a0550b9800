package ui

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// ExpansionState is the persisted expand/collapse state of tree views.
// Keys are display-name paths from the view root, joined with "/", with
// the root's own name first so several roots can share one file.
//
// File format (JSON):
//
//	{
//	  "version": 1,
//	  "expanded": {
//	    "proj/src": true,
//	    "proj/src/vendor": false
//	  }
//	}
//
// Only explicit user changes are stored; a missing or corrupt file means
// everything starts collapsed.
type ExpansionState struct {
	Version  int             `json:"version"`
	Expanded map[string]bool `json:"expanded"`

	path  string
	dirty bool
}

// ExpansionStateVersion is the current schema version.
const ExpansionStateVersion = 1

// NewExpansionState returns an empty state that saves to path. An empty
// path disables persistence.
func NewExpansionState(path string) *ExpansionState {
	return &ExpansionState{
		Version:  ExpansionStateVersion,
		Expanded: make(map[string]bool),
		path:     path,
	}
}

// LoadExpansionState reads the state at path. Missing or invalid files
// yield an empty state bound to path.
func LoadExpansionState(path string) *ExpansionState {
	s := NewExpansionState(path)
	if path == "" {
		return s
	}
	data, err := os.ReadFile(path)
	if err != nil {
		// first run
		return s
	}
	var loaded ExpansionState
	if err := json.Unmarshal(data, &loaded); err != nil {
		log.Printf("warning: invalid expansion state file, using defaults: %v", err)
		return s
	}
	if loaded.Version > ExpansionStateVersion {
		log.Printf("warning: expansion state version %d is newer than %d, ignoring", loaded.Version, ExpansionStateVersion)
		return s
	}
	for k, v := range loaded.Expanded {
		s.Expanded[k] = v
	}
	return s
}

// Path returns the file the state saves to.
func (s *ExpansionState) Path() string { return s.path }

// Key joins a display-name path into a state key.
func Key(names []string) string {
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = strings.ReplaceAll(n, "/", "%2F")
	}
	return strings.Join(escaped, "/")
}

// Lookup returns the remembered state of key.
func (s *ExpansionState) Lookup(key string) (expanded, ok bool) {
	if s == nil {
		return false, false
	}
	expanded, ok = s.Expanded[key]
	return expanded, ok
}

// Set records a user change.
func (s *ExpansionState) Set(key string, expanded bool) {
	if s == nil {
		return
	}
	if cur, ok := s.Expanded[key]; ok && cur == expanded {
		return
	}
	s.Expanded[key] = expanded
	s.dirty = true
}

// Forget drops key and every key below it.
func (s *ExpansionState) Forget(key string) {
	if s == nil {
		return
	}
	for k := range s.Expanded {
		if k == key || strings.HasPrefix(k, key+"/") {
			delete(s.Expanded, k)
			s.dirty = true
		}
	}
}

// Save writes the state when it changed since the last save. Errors are
// logged and returned; the UI keeps working either way.
func (s *ExpansionState) Save() error {
	if s == nil || s.path == "" || !s.dirty {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		log.Printf("warning: failed to marshal expansion state: %v", err)
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("warning: failed to create state directory %s: %v", dir, err)
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Printf("warning: failed to write expansion state to %s: %v", s.path, err)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		log.Printf("warning: failed to write expansion state to %s: %v", s.path, err)
		return err
	}
	s.dirty = false
	return nil
}
