package weather

import "strings"

// DefaultIcon is used when no rule matches the provider's condition text.
const DefaultIcon = "cloud.sun.fill"

// iconRule maps condition keywords to an icon key. Rules are checked in order;
// thunderstorm and snow come before rain so compound descriptions like
// "thunderstorm with light rain" resolve to the dominant condition.
type iconRule struct {
	keywords []string
	icon     string
}

var iconRules = []iconRule{
	{[]string{"thunderstorm"}, "cloud.bolt.fill"},
	{[]string{"snow"}, "cloud.snow.fill"},
	{[]string{"rain", "drizzle"}, "cloud.rain.fill"},
	{[]string{"mist", "fog", "haze"}, "cloud.fog.fill"},
	{[]string{"clear"}, "sun.max.fill"},
	{[]string{"clouds"}, "cloud.fill"},
}

// IconFor maps the provider's free-text condition to an icon key via
// case-insensitive substring matching against the priority-ordered rule table.
func IconFor(condition string) string {
	c := strings.ToLower(condition)
	for _, rule := range iconRules {
		for _, kw := range rule.keywords {
			if strings.Contains(c, kw) {
				return rule.icon
			}
		}
	}
	return DefaultIcon
}
