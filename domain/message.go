// Package domain contains core concepts of the whisper feed.
// This file defines Message and Identity and related rules.
// Messages are immutable once admitted and carry their annotations.
package domain

import (
	"strings"
	"time"
)

// Identity is a case-normalized email address. It is the only notion of
// "who" the feed knows about; there are no accounts or passwords.
type Identity string

// NormalizeIdentity lowercases and trims an email so that two spellings of
// the same address map to the same Identity.
func NormalizeIdentity(email string) Identity {
	return Identity(strings.ToLower(strings.TrimSpace(email)))
}

// Domain returns the part after the last '@', lowercased.
// Returns an empty string when the address has no '@'.
func (i Identity) Domain() string {
	at := strings.LastIndex(string(i), "@")
	if at < 0 || at == len(i)-1 {
		return ""
	}
	return strings.ToLower(string(i[at+1:]))
}

// Message represents an immutable admitted whisper.
// ID is the store-assigned monotonic sequence number and is the canonical
// total order for fan-out and backfill.
type Message struct {
	ID        uint64
	Author    Identity
	Content   string
	CreatedAt time.Time
	Hashtags  []string // display case preserved
	Links     []string // whitelisted URLs, in order of appearance
}
