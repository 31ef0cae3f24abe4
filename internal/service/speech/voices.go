package speech

import (
	"sort"
	"strings"
)

// VoiceInfo is the frontend-facing shape of a synthesis voice.
type VoiceInfo struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Language string   `json:"language"`
	Gender   string   `json:"gender"`
	Styles   []string `json:"styles,omitempty"`
}

// NormalizeVoices converts the vendor catalog into a stable, deduplicated
// list sorted by language then name.
func NormalizeVoices(raw []Voice) []VoiceInfo {
	seen := make(map[string]bool, len(raw))
	out := make([]VoiceInfo, 0, len(raw))

	for _, v := range raw {
		if v.VoiceID == "" || seen[v.VoiceID] {
			continue
		}
		seen[v.VoiceID] = true

		name := v.DisplayName
		if name == "" {
			name = v.VoiceID
		}

		out = append(out, VoiceInfo{
			ID:       v.VoiceID,
			Name:     name,
			Language: normalizeLocale(v.Locale),
			Gender:   strings.ToLower(v.Gender),
			Styles:   v.Styles,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Language != out[j].Language {
			return out[i].Language < out[j].Language
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// normalizeLocale maps vendor locale spellings (en_US, en-us) to the
// canonical en-US form.
func normalizeLocale(locale string) string {
	locale = strings.ReplaceAll(locale, "_", "-")
	parts := strings.SplitN(locale, "-", 2)
	if len(parts) != 2 {
		return strings.ToLower(locale)
	}
	return strings.ToLower(parts[0]) + "-" + strings.ToUpper(parts[1])
}
