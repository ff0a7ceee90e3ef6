// Package catalog talks to the external modlist catalog: the single
// source of truth for a modlist's current title, version and links.
package catalog

import (
	"context"
	"errors"
)

var (
	// ErrNotFound means no catalog entry's machineURL matched the id.
	ErrNotFound = errors.New("modlist not present in the catalog")
	// ErrUnavailable means the catalog could not be fetched or parsed.
	ErrUnavailable = errors.New("catalog unavailable")
)

// Entry is one published catalog record.
type Entry struct {
	MachineURL  string `json:"machineURL"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Links       Links  `json:"links"`
}

type Links struct {
	Image    string `json:"image"`
	Readme   string `json:"readme"`
	Download string `json:"download"`
}

// Client resolves modlist ids against the catalog.
type Client interface {
	// Fetch returns the entry whose MachineURL equals machineID, or
	// ErrNotFound / ErrUnavailable.
	Fetch(ctx context.Context, machineID string) (Entry, error)
	// FetchAll returns every published entry.
	FetchAll(ctx context.Context) ([]Entry, error)
}
