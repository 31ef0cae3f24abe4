package agent

import (
	"math/rand"
	"strings"
)

// personaStyle rewrites neutral skill output into a persona's voice. The
// base facts always survive; only framing words change.
type personaStyle struct {
	prefixes     []string
	replacements map[string]string
	suffixes     []string
}

var weatherStyles = map[string]personaStyle{
	"pirate": {
		prefixes: []string{
			"Arrr, let me check the skies for ye! ",
			"By me compass, here be the weather report! ",
			"Shiver me timbers, the weather looks like this: ",
		},
		replacements: map[string]string{
			"temperature": "temp on deck",
			"humidity":    "moisture in the air",
			"wind":        "winds for sailin'",
		},
		suffixes: []string{
			" May fair winds fill yer sails!",
			" Perfect weather for plunderin', says I!",
			" Keep yer spyglass handy, matey!",
		},
	},
	"cowboy": {
		prefixes: []string{
			"Well partner, let me wrangle up that weather for ya. ",
			"Howdy! Here's what the sky's lookin' like out yonder. ",
		},
		replacements: map[string]string{
			"wind": "prairie wind",
		},
		suffixes: []string{
			" Happy trails out there, partner!",
			" Don't forget yer hat!",
		},
	},
	"robot": {
		prefixes: []string{
			"ATMOSPHERIC DATA RETRIEVED. ",
			"PROCESSING METEOROLOGICAL QUERY. ",
		},
		suffixes: []string{
			" END OF WEATHER REPORT.",
			" DATA TRANSMISSION COMPLETE.",
		},
	},
	"wizard": {
		prefixes: []string{
			"The mystical forces reveal the skies to me... ",
			"By my crystal orb, I divine the weather! ",
		},
		suffixes: []string{
			" So say the ancient winds!",
			" The elements have spoken!",
		},
	},
	"surfer": {
		prefixes: []string{
			"Dude, check out these conditions! ",
			"Yo, here's the scoop on the weather, brah. ",
		},
		suffixes: []string{
			" Stay stoked!",
			" Catch you on the flip side!",
		},
	},
}

var productivityStyles = map[string]personaStyle{
	"pirate": {
		prefixes: []string{
			"Aye, yer duties be logged in the ship's ledger! ",
			"Arrr, consider it marked on the map! ",
		},
		suffixes: []string{
			" No slackin' on deck, matey!",
		},
	},
	"cowboy": {
		prefixes: []string{
			"Consider it done, partner. ",
			"I've got that wrangled for ya. ",
		},
		suffixes: []string{
			" Now get back to ridin'!",
		},
	},
	"robot": {
		prefixes: []string{
			"TASK SUBSYSTEM UPDATED. ",
		},
		suffixes: []string{
			" OPERATION COMPLETE.",
		},
	},
	"wizard": {
		prefixes: []string{
			"It is inscribed in the great tome! ",
		},
		suffixes: []string{
			" The prophecy shall be fulfilled!",
		},
	},
}

// styleText applies a persona's style table to neutral text. Unknown
// personas and the default persona pass through unchanged.
func styleText(styles map[string]personaStyle, personaID, text string) string {
	style, ok := styles[personaID]
	if !ok {
		return text
	}

	for plain, flavored := range style.replacements {
		text = replaceWordInsensitive(text, plain, flavored)
	}

	var b strings.Builder
	if len(style.prefixes) > 0 {
		b.WriteString(style.prefixes[rand.Intn(len(style.prefixes))])
	}
	b.WriteString(text)
	if len(style.suffixes) > 0 {
		b.WriteString(style.suffixes[rand.Intn(len(style.suffixes))])
	}
	return b.String()
}

// StyleWeather renders a weather report in the persona's voice.
func StyleWeather(personaID, text string) string {
	return styleText(weatherStyles, personaID, text)
}

// StyleProductivity renders a task, timer or time reply in the persona's
// voice.
func StyleProductivity(personaID, text string) string {
	return styleText(productivityStyles, personaID, text)
}

// replaceWordInsensitive swaps whole-word occurrences of plain regardless of
// case, preserving the rest of the sentence.
func replaceWordInsensitive(text, plain, flavored string) string {
	lower := strings.ToLower(text)
	plain = strings.ToLower(plain)

	var b strings.Builder
	for {
		idx := strings.Index(lower, plain)
		if idx < 0 {
			b.WriteString(text)
			return b.String()
		}

		end := idx + len(plain)
		boundedLeft := idx == 0 || !isWordChar(lower[idx-1])
		boundedRight := end == len(lower) || !isWordChar(lower[end])
		if boundedLeft && boundedRight {
			b.WriteString(text[:idx])
			b.WriteString(flavored)
		} else {
			b.WriteString(text[:end])
		}
		text = text[end:]
		lower = lower[end:]
	}
}

func isWordChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
