package conversation

import (
	"strings"
	"unicode/utf8"
)

// truncationMarker is appended to any message cut at the per-message ceiling.
const truncationMarker = "… [truncated]"

// perMessageCeiling bounds any single message's contribution to the
// character budget, regardless of how large the total budget is.
const perMessageCeiling = 8000

var allowedRoles = map[Role]bool{
	RoleUser:       true,
	RoleAssistant:  true,
	RoleToolResult: true,
}

// Window bounds a conversation history to at most maxMessages messages and
// maxCharacters total characters before it is sent to the model backend.
//
// Input is oldest-first; output preserves that order. The selection keeps
// the most recent maxMessages, then walks newest-first accumulating
// characters and stops before the message that would blow the budget. Each
// message is truncated at min(perMessageCeiling, maxCharacters) before it
// counts, which guarantees the newest valid message always fits: the window
// never returns an empty result when the input has any valid message.
//
// Pure function: the input slice is never mutated.
func Window(messages []Message, maxMessages, maxCharacters int) []Message {
	if maxMessages <= 0 || maxCharacters <= 0 {
		return nil
	}

	valid := make([]Message, 0, len(messages))
	for _, m := range messages {
		if !allowedRoles[m.Role] {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		valid = append(valid, m)
	}
	if len(valid) == 0 {
		return nil
	}

	if len(valid) > maxMessages {
		valid = valid[len(valid)-maxMessages:]
	}

	ceiling := perMessageCeiling
	if maxCharacters < ceiling {
		ceiling = maxCharacters
	}

	total := 0
	start := len(valid)
	for i := len(valid) - 1; i >= 0; i-- {
		content := truncate(valid[i].Content, ceiling)
		if total+len(content) > maxCharacters {
			break
		}
		total += len(content)
		start = i
	}

	out := make([]Message, 0, len(valid)-start)
	for _, m := range valid[start:] {
		m.Content = truncate(m.Content, ceiling)
		out = append(out, m)
	}
	return out
}

// truncate cuts content so its total length in bytes, marker included, is
// at most limit. When the limit is too small to fit the marker, the content
// is hard-cut without one. Cuts land on rune boundaries; the output is
// always valid UTF-8.
func truncate(content string, limit int) string {
	if len(content) <= limit {
		return content
	}
	if limit <= len(truncationMarker) {
		return content[:runeBoundary(content, limit)]
	}
	return content[:runeBoundary(content, limit-len(truncationMarker))] + truncationMarker
}

// runeBoundary backs i off to the start of the rune it points into.
func runeBoundary(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
