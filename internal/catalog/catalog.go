// ABOUTME: Configurable service-catalog tree for the services menu
// ABOUTME: Entries open a submenu or ask for a description; submenu options pick a collection track

package catalog

import (
	"errors"
	"fmt"

	"github.com/2389/intake-gateway/internal/session"
)

// BackKey is the option that returns to the previous menu. It cannot be used
// by entries or options.
const BackKey = "0"

// EntryKind says what choosing a services-menu entry does.
type EntryKind string

const (
	// KindSubmenu opens a submenu of concrete services.
	KindSubmenu EntryKind = "submenu"
	// KindDescription asks the customer to describe what they need.
	KindDescription EntryKind = "description"
)

// Option is a concrete service inside a submenu.
type Option struct {
	Key         string        `yaml:"key" toml:"key" json:"key"`
	Label       string        `yaml:"label" toml:"label" json:"label"`
	ServiceType string        `yaml:"service_type" toml:"service_type" json:"service_type"`
	Track       session.Track `yaml:"track" toml:"track" json:"track,omitempty"`
	// Immediate services hand off right after being chosen, skipping part details.
	Immediate bool `yaml:"immediate" toml:"immediate" json:"immediate,omitempty"`
}

// Entry is one line of the services menu.
type Entry struct {
	Key   string    `yaml:"key" toml:"key" json:"key"`
	Label string    `yaml:"label" toml:"label" json:"label"`
	Kind  EntryKind `yaml:"kind" toml:"kind" json:"kind"`

	// Submenu entries.
	Category string   `yaml:"category" toml:"category" json:"category,omitempty"`
	Title    string   `yaml:"title" toml:"title" json:"title,omitempty"`
	Options  []Option `yaml:"options" toml:"options" json:"options,omitempty"`

	// Description entries.
	ServiceType string        `yaml:"service_type" toml:"service_type" json:"service_type,omitempty"`
	Topic       session.Topic `yaml:"topic" toml:"topic" json:"topic,omitempty"`

	// Prompt is the question shown after the entry is chosen.
	Prompt string `yaml:"prompt" toml:"prompt" json:"prompt,omitempty"`
}

// Catalog is the services menu tree.
type Catalog struct {
	// CollectVehicle asks vehicle model and year before the services menu.
	CollectVehicle bool    `yaml:"collect_vehicle" toml:"collect_vehicle" json:"collect_vehicle"`
	Entries        []Entry `yaml:"entries" toml:"entries" json:"entries"`
}

// Entry returns the services-menu entry for a menu key.
func (c *Catalog) Entry(key string) (Entry, bool) {
	for _, e := range c.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// Category returns the submenu entry with the given category ID.
func (c *Catalog) Category(id string) (Entry, bool) {
	for _, e := range c.Entries {
		if e.Kind == KindSubmenu && e.Category == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Option returns the submenu option for a key.
func (e Entry) Option(key string) (Option, bool) {
	for _, o := range e.Options {
		if o.Key == key {
			return o, true
		}
	}
	return Option{}, false
}

// Validate checks the tree is usable by the router.
func (c *Catalog) Validate() error {
	if len(c.Entries) == 0 {
		return errors.New("catalog has no entries")
	}

	keys := make(map[string]bool)
	categories := make(map[string]bool)
	for i, e := range c.Entries {
		if err := checkKey(e.Key, keys); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Label == "" {
			return fmt.Errorf("entry %q: label is required", e.Key)
		}

		switch e.Kind {
		case KindSubmenu:
			if !session.Submenu(e.Category).Valid() {
				return fmt.Errorf("entry %q: invalid category %q", e.Key, e.Category)
			}
			if categories[e.Category] {
				return fmt.Errorf("entry %q: duplicate category %q", e.Key, e.Category)
			}
			categories[e.Category] = true
			if len(e.Options) == 0 {
				return fmt.Errorf("entry %q: submenu has no options", e.Key)
			}
			optKeys := make(map[string]bool)
			for _, o := range e.Options {
				if err := checkKey(o.Key, optKeys); err != nil {
					return fmt.Errorf("entry %q option: %w", e.Key, err)
				}
				if o.ServiceType == "" {
					return fmt.Errorf("entry %q option %q: service_type is required", e.Key, o.Key)
				}
				if !o.Immediate && !o.Track.Valid() {
					return fmt.Errorf("entry %q option %q: invalid track %q", e.Key, o.Key, o.Track)
				}
			}
		case KindDescription:
			if e.Topic != session.TopicOther && e.Topic != session.TopicBudget {
				return fmt.Errorf("entry %q: topic must be other or budget, got %q", e.Key, e.Topic)
			}
			if e.ServiceType == "" {
				return fmt.Errorf("entry %q: service_type is required", e.Key)
			}
			if e.Prompt == "" {
				return fmt.Errorf("entry %q: prompt is required", e.Key)
			}
		default:
			return fmt.Errorf("entry %q: unknown kind %q", e.Key, e.Kind)
		}
	}

	return nil
}

func checkKey(key string, seen map[string]bool) error {
	switch {
	case key == "":
		return errors.New("key is required")
	case key == BackKey:
		return fmt.Errorf("key %q is reserved for going back", BackKey)
	case seen[key]:
		return fmt.Errorf("duplicate key %q", key)
	}
	seen[key] = true
	return nil
}
