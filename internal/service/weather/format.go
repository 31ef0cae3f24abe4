package weather

import (
	"fmt"
	"sort"
	"strings"
)

var conditionEmojis = map[string]string{
	"clear":        "☀️",
	"clouds":       "☁️",
	"rain":         "🌧️",
	"drizzle":      "🌦️",
	"thunderstorm": "⛈️",
	"snow":         "❄️",
	"mist":         "🌫️",
	"fog":          "🌫️",
	"haze":         "🌫️",
}

// ConditionEmoji returns a pictogram for an OpenWeatherMap condition name,
// or empty when there is none.
func ConditionEmoji(condition string) string {
	return conditionEmojis[strings.ToLower(condition)]
}

// FormatCurrent renders present conditions as a spoken-style sentence.
func FormatCurrent(cur *Current) string {
	desc := cur.Description
	if desc == "" {
		desc = strings.ToLower(cur.Condition)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The weather in %s is currently %s with a temperature of %.1f°C (feels like %.1f°C).",
		cur.Location, desc, cur.TempC, cur.FeelsLikeC)
	fmt.Fprintf(&b, " Humidity is at %d%% with wind speeds of %.1f m/s.", cur.Humidity, cur.WindSpeed)
	if cur.TempMinC != cur.TempMaxC {
		fmt.Fprintf(&b, " Today's range is %.1f°C to %.1f°C.", cur.TempMinC, cur.TempMaxC)
	}
	if emoji := ConditionEmoji(cur.Condition); emoji != "" {
		b.WriteString(" " + emoji)
	}
	return b.String()
}

// FormatForecast renders a forecast as one line per day, picking the midday
// slot of each day as representative.
func FormatForecast(fc *Forecast) string {
	if len(fc.Entries) == 0 {
		return fmt.Sprintf("No forecast data is available for %s right now.", fc.Location)
	}

	type daySummary struct {
		label string
		entry ForecastEntry
	}

	byDay := map[string]ForecastEntry{}
	var order []string
	for _, e := range fc.Entries {
		day := e.At.Format("2006-01-02")
		existing, seen := byDay[day]
		if !seen {
			byDay[day] = e
			order = append(order, day)
			continue
		}
		// Prefer the midday slot as the day's representative reading.
		if middayDistance(e.At.Hour()) < middayDistance(existing.At.Hour()) {
			byDay[day] = e
		}
	}
	sort.Strings(order)

	var days []daySummary
	for _, day := range order {
		e := byDay[day]
		days = append(days, daySummary{label: e.At.Format("Monday"), entry: e})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here's the forecast for %s:", fc.Location)
	for _, d := range days {
		desc := d.entry.Description
		if desc == "" {
			desc = strings.ToLower(d.entry.Condition)
		}
		fmt.Fprintf(&b, "\n%s: %s, around %.1f°C", d.label, desc, d.entry.TempC)
		if emoji := ConditionEmoji(d.entry.Condition); emoji != "" {
			b.WriteString(" " + emoji)
		}
	}
	return b.String()
}

func middayDistance(hour int) int {
	d := hour - 13
	if d < 0 {
		d = -d
	}
	return d
}
