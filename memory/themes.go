/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package memory

import (
	"slices"
	"sort"
)

// Theme names a palette of card faces.
type Theme string

const (
	DefaultTheme Theme = "vehicles"
	DefaultPairs int   = 4
)

var palettes = map[Theme][]string{
	"vehicles": {
		"🚕", "🚔", "🚁", "✈️", "🛺",
		"🚇", "🚀", "🛰", "🛳", "🏍",
		"🛸", "🚢", "🚙", "🦽", "🦼",
		"🛴", "🛵", "🚠", "🚂", "🛥",
		"🚚", "🚛", "🚜", "🚑", "🚒",
	},
	"animals": {
		"🐶", "🐱", "🐭", "🐹", "🐰",
		"🦊", "🐻", "🐼", "🐨", "🐯",
		"🦁", "🐮", "🐷", "🐸", "🐵",
	},
	"food": {
		"🍎", "🍐", "🍊", "🍋", "🍌",
		"🍉", "🍇", "🍓", "🍒", "🍑",
		"🥝", "🍍", "🥥", "🥑", "🌽",
	},
}

// Themes lists the known theme names, sorted.
func Themes() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, string(name))
	}
	sort.Strings(names)

	return names
}

// Valid reports whether t names a known palette.
func (t Theme) Valid() bool {
	_, ok := palettes[t]

	return ok
}

// Palette returns a copy of the theme's card faces, or nil for unknown themes.
func (t Theme) Palette() []string {
	return slices.Clone(palettes[t])
}

// NewEmojiGame deals a game from the theme's palette. The pair count is
// clamped to the palette size.
func NewEmojiGame(theme Theme, pairs int) *Game[string] {
	palette := palettes[theme]

	return New(min(pairs, len(palette)), func(i int) string {
		return palette[i]
	})
}
