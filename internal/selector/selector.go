// Package selector matches the small subset of CSS selectors used to find
// bric frames: a tag, an id, classes, or a comma separated list of those.
package selector

import (
	"fmt"
	"strings"

	"github.com/casualjim/bricbus/pkg/stdx"
)

// Node is the element view a selector needs.
type Node interface {
	Tag() string
	ID() string
	HasClass(name string) bool
}

type compound struct {
	tag     string
	id      string
	classes []string
}

// Selector is a parsed selector list.
type Selector []compound

// Parse parses selectors such as ".bric", "iframe.bric", "#ALPHA" or
// "iframe.bric, object.bric". Combinators and attribute selectors are rejected.
func Parse(s string) (Selector, error) {
	var out Selector
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("selector: empty compound in %q", s)
		}
		if strings.ContainsAny(part, " >+~[]:") {
			return nil, fmt.Errorf("selector: unsupported syntax in %q", part)
		}
		c, err := parseCompound(part)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// MustParse is Parse that panics.
func MustParse(s string) Selector {
	return stdx.Must1(Parse(s))
}

func parseCompound(part string) (compound, error) {
	var c compound
	rest := part
	if i := strings.IndexAny(rest, ".#"); i != 0 {
		if i < 0 {
			i = len(rest)
		}
		c.tag = strings.ToLower(rest[:i])
		rest = rest[i:]
	}
	for rest != "" {
		kind := rest[0]
		rest = rest[1:]
		end := strings.IndexAny(rest, ".#")
		if end < 0 {
			end = len(rest)
		}
		name := rest[:end]
		rest = rest[end:]
		if name == "" {
			return c, fmt.Errorf("selector: empty name in %q", part)
		}
		switch kind {
		case '.':
			c.classes = append(c.classes, name)
		case '#':
			if c.id != "" {
				return c, fmt.Errorf("selector: more than one id in %q", part)
			}
			c.id = name
		}
	}
	return c, nil
}

// Match reports whether n matches any compound of the list.
func (s Selector) Match(n Node) bool {
	for _, c := range s {
		if c.match(n) {
			return true
		}
	}
	return false
}

func (c compound) match(n Node) bool {
	if c.tag != "" && c.tag != "*" && !strings.EqualFold(c.tag, n.Tag()) {
		return false
	}
	if c.id != "" && c.id != n.ID() {
		return false
	}
	for _, class := range c.classes {
		if !n.HasClass(class) {
			return false
		}
	}
	return true
}
