package models

import (
	"fmt"
	"strings"
)

// NSFWMode filters reads by the nsfw flag.
type NSFWMode string

const (
	// NSFWExclude hides flagged records.
	NSFWExclude NSFWMode = "false"
	// NSFWInclude returns flagged and unflagged records.
	NSFWInclude NSFWMode = "true"
	// NSFWOnly returns flagged records exclusively.
	NSFWOnly NSFWMode = "only"
)

// ParseNSFWMode parses a query value. An empty value yields fallback.
func ParseNSFWMode(raw string, fallback NSFWMode) (NSFWMode, error) {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case "":
		return fallback, nil
	case string(NSFWExclude), string(NSFWInclude), string(NSFWOnly):
		return NSFWMode(value), nil
	default:
		return "", fmt.Errorf("invalid nsfw value %q, use false, true or only", raw)
	}
}

// Allows reports whether a record with the given flag is visible under the mode.
func (m NSFWMode) Allows(nsfw bool) bool {
	switch m {
	case NSFWInclude:
		return true
	case NSFWOnly:
		return nsfw
	default:
		return !nsfw
	}
}
