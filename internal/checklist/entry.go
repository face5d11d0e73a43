package checklist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the pass/fail outcome of an item or of a whole audit.
type Status string

const (
	Conforme    Status = "CONFORME"
	NonConforme Status = "NON CONFORME"
)

// ParseStatus accepts exactly the two status spellings.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.TrimSpace(s)) {
	case Conforme:
		return Conforme, nil
	case NonConforme:
		return NonConforme, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Entry is the recorded outcome of one item inside an audit.
type Entry struct {
	Status  Status `json:"status"`
	Comment string `json:"comment"`
}

// UnmarshalJSON also accepts a bare status string, as older records store it.
func (e *Entry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = Entry{Status: Status(s)}
		return nil
	}
	type plain Entry
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Entry(p)
	return nil
}

// Entries maps item keys to their outcome.
type Entries map[string]Entry

// Get returns the entry for key, defaulting to NON CONFORME when absent or blank.
func (e Entries) Get(key string) Entry {
	entry, ok := e[key]
	if !ok || entry.Status == "" {
		return Entry{Status: NonConforme, Comment: entry.Comment}
	}
	return entry
}

// Set changes the status of key, keeping its comment.
func (e Entries) Set(key string, status Status) {
	entry := e[key]
	entry.Status = status
	e[key] = entry
}

// Comment changes the comment of key, keeping its status.
func (e Entries) Comment(key, text string) {
	entry := e.Get(key)
	entry.Comment = text
	e[key] = entry
}

// Clone copies the map.
func (e Entries) Clone() Entries {
	out := make(Entries, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// GlobalResult is CONFORME iff every entry is CONFORME.
func GlobalResult(e Entries) Status {
	for _, entry := range e {
		if entry.Status != Conforme {
			return NonConforme
		}
	}
	return Conforme
}
