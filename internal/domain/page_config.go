package domain

import (
	"fmt"
	"sort"
)

// MissingTokenBehavior decides what generation does with a dynamic element
// whose tokens have no value.
type MissingTokenBehavior string

const (
	MissingTokenSkip        MissingTokenBehavior = "skip"
	MissingTokenPlaceholder MissingTokenBehavior = "placeholder"
	MissingTokenError       MissingTokenBehavior = "error"
)

// Valid reports whether b is one of the known policies.
func (b MissingTokenBehavior) Valid() bool {
	switch b {
	case MissingTokenSkip, MissingTokenPlaceholder, MissingTokenError:
		return true
	}
	return false
}

type TokenType string

const (
	TokenTypeString   TokenType = "string"
	TokenTypeNumber   TokenType = "number"
	TokenTypeImageURL TokenType = "image_url"
	TokenTypeVideoURL TokenType = "video_url"
)

// TokenDefinition describes one substitution slot of a template.
type TokenDefinition struct {
	Type        TokenType `json:"type"`
	Label       string    `json:"label"`
	Default     any       `json:"default,omitempty"`
	Required    bool      `json:"required,omitempty"`
	Description string    `json:"description,omitempty"`
}

// TokenValues maps token names to the values substituted at generation time.
type TokenValues map[string]any

type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Background struct {
	Color    string `json:"color,omitempty"`
	ImageRef string `json:"imageRef,omitempty"`
}

// PageConfig is the serialized, storable form of one design page.
// Element order is insertion order and therefore stacking order.
type PageConfig struct {
	Dimensions           Dimensions                 `json:"dimensions"`
	Background           *Background                `json:"background,omitempty"`
	Elements             []TemplateElement          `json:"elements"`
	TokenDefinitions     map[string]TokenDefinition `json:"tokenDefinitions"`
	MissingTokenBehavior MissingTokenBehavior       `json:"missingTokenBehavior"`
}

// Policy returns the effective missing-token policy, defaulting to skip.
func (c *PageConfig) Policy() MissingTokenBehavior {
	if c.MissingTokenBehavior.Valid() {
		return c.MissingTokenBehavior
	}
	return MissingTokenSkip
}

// Element returns the element with the given id.
func (c *PageConfig) Element(id string) (*TemplateElement, bool) {
	for i := range c.Elements {
		if c.Elements[i].ID == id {
			return &c.Elements[i], true
		}
	}
	return nil, false
}

// SetElementMode is the explicit human override of an element's automatic
// static/dynamic classification. Forcing an element dynamic does not invent
// tokens; forcing it static drops its token list.
func (c *PageConfig) SetElementMode(id string, mode ElementMode) error {
	if mode != ElementModeStatic && mode != ElementModeDynamic {
		return fmt.Errorf("invalid element mode %q", mode)
	}
	el, ok := c.Element(id)
	if !ok {
		return fmt.Errorf("element %s: %w", id, ErrNotFound)
	}
	el.ElementMode = mode
	if mode == ElementModeStatic {
		el.Tokens = nil
	}
	return nil
}

// TokenNames returns the defined token names in sorted order.
func (c *PageConfig) TokenNames() []string {
	names := make([]string, 0, len(c.TokenDefinitions))
	for name := range c.TokenDefinitions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the structural invariants a persisted config must hold:
// unique element ids, a known policy, and a definition for every token a
// dynamic element references.
func (c *PageConfig) Validate() error {
	if c.MissingTokenBehavior != "" && !c.MissingTokenBehavior.Valid() {
		return fmt.Errorf("invalid missingTokenBehavior %q", c.MissingTokenBehavior)
	}
	seen := make(map[string]bool, len(c.Elements))
	for _, el := range c.Elements {
		if el.ID == "" {
			return fmt.Errorf("element without id")
		}
		if seen[el.ID] {
			return fmt.Errorf("duplicate element id %s", el.ID)
		}
		seen[el.ID] = true
		if el.ElementMode != ElementModeDynamic {
			continue
		}
		for _, name := range el.Tokens {
			if _, ok := c.TokenDefinitions[name]; !ok {
				return fmt.Errorf("element %s references undefined token %q", el.ID, name)
			}
		}
	}
	return nil
}
