package compositor

import "strings"

// emojiTable is the bundled `:name:` -> glyph table referenced by §4.7's
// "Emoji tokens are expanded to glyphs via a bundled emoji table" clause.
// No example repo in the corpus vendors a dedicated emoji-name database,
// so this is a small curated table covering the names most likely to
// appear on a control-surface label (see DESIGN.md).
var emojiTable = map[string]string{
	"smile":      "\U0001F642",
	"warning":    "⚠️",
	"check":      "✅",
	"cross":      "❌",
	"fire":       "\U0001F525",
	"star":       "⭐",
	"heart":      "❤️",
	"lock":       "\U0001F512",
	"unlock":     "\U0001F513",
	"bell":       "\U0001F514",
	"arrow_up":   "⬆️",
	"arrow_down": "⬇️",
	"power":      "⏻",
	"wifi":       "\U0001F4F6",
	"battery":    "\U0001F50B",
}

// expandEmoji replaces every ":name:" token with its table glyph when
// enabled is true; unknown names are left untouched.
func expandEmoji(s string, enabled bool) string {
	if !enabled || !strings.Contains(s, ":") {
		return s
	}
	var out strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != ':' {
			out.WriteByte(s[i])
			i++
			continue
		}
		end := strings.IndexByte(s[i+1:], ':')
		if end < 0 {
			out.WriteByte(s[i])
			i++
			continue
		}
		name := s[i+1 : i+1+end]
		if glyph, ok := emojiTable[name]; ok {
			out.WriteString(glyph)
			i = i + 1 + end + 1
			continue
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String()
}
