package selector

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	tag, id string
	classes []string
}

func (n node) Tag() string               { return n.tag }
func (n node) ID() string                { return n.id }
func (n node) HasClass(name string) bool { return slices.Contains(n.classes, name) }

func TestMatch(t *testing.T) {
	frame := node{tag: "iframe", id: "ALPHA", classes: []string{"bric", "wide"}}
	object := node{tag: "object", id: "BETA", classes: []string{"bric"}}
	plain := node{tag: "div", id: "x"}

	tests := []struct {
		sel  string
		want []bool
	}{
		{".bric", []bool{true, true, false}},
		{"iframe.bric", []bool{true, false, false}},
		{"IFRAME", []bool{true, false, false}},
		{"#BETA", []bool{false, true, false}},
		{".bric.wide", []bool{true, false, false}},
		{"iframe.bric, object.bric", []bool{true, true, false}},
		{"*", []bool{true, true, true}},
	}
	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			sel, err := Parse(tt.sel)
			require.NoError(t, err)
			got := []bool{sel.Match(frame), sel.Match(object), sel.Match(plain)}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"", "div .bric", "a > b", ".", "#a#b", "[data-x]", ".bric,"} {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			assert.Error(t, err)
		})
	}
	assert.Panics(t, func() { MustParse("a b") })
	assert.True(t, MustParse("object").Match(node{tag: "object"}))
}
