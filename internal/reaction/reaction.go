// Package reaction implements the emoji normalization half of the Reaction
// Engine (C6): mapping a canonical tag or its Unicode sequence onto the
// single canonical tag stored and broadcast, plus the free-form custom tag
// rule. Grounded on original_source/src/reactions.rs's ReactionType enum.
package reaction

import (
	"strings"

	"github.com/chathub/sessionhub/internal/apperror"
)

const (
	minCustomTagLength = 1
	maxCustomTagLength = 10
)

// canonical maps every recognized tag and Unicode sequence onto the single
// tag that gets persisted and broadcast.
var canonical = map[string]string{
	"like":         "like",
	"\U0001F44D":   "like",
	"love":         "love",
	"❤️": "love",
	"laugh":        "laugh",
	"\U0001F602":   "laugh",
	"angry":        "angry",
	"\U0001F621":   "angry",
	"sad":          "sad",
	"\U0001F622":   "sad",
	"wow":          "wow",
	"\U0001F62E":   "wow",
	"thumbs_up":    "thumbs_up",
	"\U0001F44D\U0001F3FC": "thumbs_up",
	"thumbs_down":  "thumbs_down",
	"\U0001F44E":   "thumbs_down",
	"fire":         "fire",
	"\U0001F525":   "fire",
	"party":        "party",
	"\U0001F389":   "party",
	"check":        "check",
	"✅":       "check",
	"cross":        "cross",
	"❌":       "cross",
}

// Emoji returns the Unicode glyph for a canonical tag, used when rendering
// frames that want the visual glyph alongside the tag.
var Emoji = map[string]string{
	"like":         "\U0001F44D",
	"love":         "❤️",
	"laugh":        "\U0001F602",
	"angry":        "\U0001F621",
	"sad":          "\U0001F622",
	"wow":          "\U0001F62E",
	"thumbs_up":    "\U0001F44D\U0001F3FC",
	"thumbs_down":  "\U0001F44E",
	"fire":         "\U0001F525",
	"party":        "\U0001F389",
	"check":        "✅",
	"cross":        "❌",
}

// Normalize accepts a canonical tag, its Unicode sequence, or a free-form
// 1-10 character custom tag, and returns the tag to persist. Anything else
// is rejected as InvalidInput.
func Normalize(raw string) (string, error) {
	if tag, ok := canonical[raw]; ok {
		return tag, nil
	}

	trimmed := strings.TrimSpace(raw)
	length := len([]rune(trimmed))
	if length >= minCustomTagLength && length <= maxCustomTagLength && isCustomTag(trimmed) {
		return trimmed, nil
	}

	return "", apperror.New(apperror.InvalidInput, "emoji must be a recognized tag, its Unicode sequence, or a 1-10 character custom tag")
}

// isCustomTag rejects whitespace and control characters; everything else
// (letters, digits, underscores, arbitrary Unicode glyphs) is allowed.
func isCustomTag(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r <= 0x20 || r == 0x7F {
			return false
		}
	}
	return true
}
