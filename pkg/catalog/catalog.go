// Package catalog holds the fixed mapping between lottery display names and
// the storage keys used in object paths and table rows.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Catalog maps human-facing game names to storage keys. Read paths filter to
// catalog keys; write paths accept whatever key the archiver was given.
type Catalog struct {
	displayToKey map[string]string
	keyToDisplay map[string]string
	order        []string
}

// Default returns the catalog of the five games the reference deployment
// tracks.
func Default() *Catalog {
	c, _ := New(map[string]string{
		"Lotofácil":    "lotofacil",
		"Lotomania":    "lotomania",
		"Quina":        "quina",
		"Mega-Sena":    "megasena",
		"Dia de Sorte": "diadesorte",
	})
	return c
}

// New builds a catalog from a display-name → storage-key mapping.
func New(mapping map[string]string) (*Catalog, error) {
	if len(mapping) == 0 {
		return nil, fmt.Errorf("catalog mapping is empty")
	}

	c := &Catalog{
		displayToKey: make(map[string]string, len(mapping)),
		keyToDisplay: make(map[string]string, len(mapping)),
	}
	for display, key := range mapping {
		if display == "" || key == "" {
			return nil, fmt.Errorf("catalog entry %q=%q has an empty side", display, key)
		}
		if prev, dup := c.keyToDisplay[key]; dup {
			return nil, fmt.Errorf("storage key %q mapped by both %q and %q", key, prev, display)
		}
		c.displayToKey[display] = key
		c.keyToDisplay[key] = display
		c.order = append(c.order, display)
	}
	sort.Strings(c.order)
	return c, nil
}

// Parse builds a catalog from a "Display=key,Display=key" string, the format
// the LOTTERY_GAMES environment variable uses.
func Parse(s string) (*Catalog, error) {
	mapping := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		display, key, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed catalog entry %q: want Display=key", pair)
		}
		mapping[strings.TrimSpace(display)] = strings.TrimSpace(key)
	}
	return New(mapping)
}

// Keys returns all storage keys in display-name order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.order))
	for _, display := range c.order {
		keys = append(keys, c.displayToKey[display])
	}
	return keys
}

// DisplayNames returns all display names sorted.
func (c *Catalog) DisplayNames() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Key resolves a display name to its storage key.
func (c *Catalog) Key(display string) (string, bool) {
	key, ok := c.displayToKey[display]
	return key, ok
}

// DisplayName resolves a storage key back to its display name.
func (c *Catalog) DisplayName(key string) (string, bool) {
	display, ok := c.keyToDisplay[key]
	return display, ok
}

// HasKey reports whether the storage key belongs to the catalog.
func (c *Catalog) HasKey(key string) bool {
	_, ok := c.keyToDisplay[key]
	return ok
}

// Len returns the number of games in the catalog.
func (c *Catalog) Len() int {
	return len(c.displayToKey)
}
