package enrich

import "github.com/mileusna/useragent"

// UserAgent resolves a user-agent string to one of a small set of named
// attributes. It implements predicate.UAResolver.
type UserAgent struct{}

// Attr projects ua through the requested attribute name. Unknown attribute
// names resolve to not-found rather than an error, keeping the evaluator
// pure — a typo'd attribute name just never matches.
func (UserAgent) Attr(ua, attr string) (string, bool) {
	parsed := useragent.Parse(ua)
	switch attr {
	case "browser":
		if parsed.Name == "" {
			return "", false
		}
		return parsed.Name, true
	case "os":
		if parsed.OS == "" {
			return "", false
		}
		return parsed.OS, true
	case "device":
		switch {
		case parsed.Mobile:
			return "mobile", true
		case parsed.Tablet:
			return "tablet", true
		case parsed.Desktop:
			return "desktop", true
		case parsed.Bot:
			return "bot", true
		default:
			return "", false
		}
	case "version":
		if parsed.Version == "" {
			return "", false
		}
		return parsed.Version, true
	default:
		return "", false
	}
}
