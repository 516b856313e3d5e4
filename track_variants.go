package forseti

import (
	"strings"
)

// trackVariantRule maps a heuristic name predicate onto a canonical track
// ID. Rules are evaluated in order; the first match wins. Unmatched names
// fall back to a normalized form of the reported name, so an unknown track
// never fails a session, it just keys its own history.
type trackVariantRule struct {
	matches func(name string) bool
	trackID string
}

func nameContains(parts ...string) func(string) bool {
	return func(name string) bool {
		for _, part := range parts {
			if !strings.Contains(name, part) {
				return false
			}
		}

		return true
	}
}

// trackVariantRules covers the track names the bridge reports with multiple
// spellings or layouts that should share one history bucket. Layout-specific
// suffixes ("- Full Course", "Grand Prix") distinguish variants that must
// NOT share history, so they come first.
var trackVariantRules = []trackVariantRule{
	{nameContains("nürburgring", "nordschleife"), "nurburgring-nordschleife"},
	{nameContains("nurburgring", "nordschleife"), "nurburgring-nordschleife"},
	{nameContains("nürburgring", "combined"), "nurburgring-combined"},
	{nameContains("nurburgring", "combined"), "nurburgring-combined"},
	{nameContains("nürburgring"), "nurburgring-gp"},
	{nameContains("nurburgring"), "nurburgring-gp"},
	{nameContains("spa-francorchamps"), "spa-francorchamps"},
	{nameContains("spa francorchamps"), "spa-francorchamps"},
	{nameContains("silverstone", "national"), "silverstone-national"},
	{nameContains("silverstone"), "silverstone-gp"},
	{nameContains("brands hatch", "indy"), "brands-hatch-indy"},
	{nameContains("brands hatch"), "brands-hatch-gp"},
	{nameContains("okayama", "short"), "okayama-short"},
	{nameContains("okayama"), "okayama-full"},
	{nameContains("le mans", "24"), "le-mans-24h"},
	{nameContains("monza", "oval"), "monza-oval"},
	{nameContains("monza"), "monza-gp"},
	{nameContains("suzuka", "east"), "suzuka-east"},
	{nameContains("suzuka", "west"), "suzuka-west"},
	{nameContains("suzuka"), "suzuka-gp"},
	{nameContains("daytona", "road"), "daytona-road"},
	{nameContains("daytona"), "daytona-oval"},
}

// ResolveTrackVariant maps a bridge-reported track display name to the
// canonical track ID used to key session history.
func ResolveTrackVariant(name string) string {
	lowered := strings.ToLower(strings.TrimSpace(name))

	for _, rule := range trackVariantRules {
		if rule.matches(lowered) {
			return rule.trackID
		}
	}

	return normalizeTrackName(lowered)
}

// normalizeTrackName is the documented default for names no rule claims:
// lowercase, spaces collapsed to single hyphens, punctuation dropped.
func normalizeTrackName(name string) string {
	var b strings.Builder

	lastHyphen := false

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case r == ' ' || r == '-' || r == '_':
			if !lastHyphen && b.Len() > 0 {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}

	return strings.TrimSuffix(b.String(), "-")
}
