package match

import (
	"regexp"
	"strings"
)

// defaultCityPrefixes are the first words of multi-word NFL city names.
// A team name starting with one of these keeps its second word as part of
// the city token, so "green bay packers" and "green bay" both reduce to
// "green bay" rather than colliding with other "green ..." names.
var defaultCityPrefixes = []string{"new", "los", "san", "las", "kansas", "green", "tampa"}

// suffixWords are generic franchise words that carry no identity. They are
// stripped before comparison so rebrands like "Washington Football Team"
// still line up with "Washington Commanders".
var suffixWords = regexp.MustCompile(`\b(football|team|club|fc)\b`)

// Normalizer compares team names that may differ in casing, spacing, branding
// suffixes, or nickname.
type Normalizer struct {
	cityPrefixes map[string]struct{}
}

// NewNormalizer builds a normalizer with the given gazetteer of multi-word
// city prefixes. A nil or empty slice selects the built-in list.
func NewNormalizer(cityPrefixes []string) *Normalizer {
	if len(cityPrefixes) == 0 {
		cityPrefixes = defaultCityPrefixes
	}

	prefixes := make(map[string]struct{}, len(cityPrefixes))
	for _, p := range cityPrefixes {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			prefixes[p] = struct{}{}
		}
	}

	return &Normalizer{cityPrefixes: prefixes}
}

// Normalize lowercases a name and collapses runs of whitespace.
func (n *Normalizer) Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// StripSuffixes removes generic franchise words from a normalized name.
func (n *Normalizer) StripSuffixes(name string) string {
	return strings.Join(strings.Fields(suffixWords.ReplaceAllString(name, " ")), " ")
}

// City extracts the city token from a normalized name: the first word, plus
// the second word when the first is a known multi-word prefix, so "green bay
// packers" and "green bay" both reduce to "green bay". A single-word name is
// its own city token.
func (n *Normalizer) City(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	if _, ok := n.cityPrefixes[parts[0]]; ok {
		return parts[0] + " " + parts[1]
	}
	return parts[0]
}

// FuzzyMatch reports whether two team names refer to the same team. Names
// match when they are equal after normalization, equal after suffix
// stripping, or share a city token. The comparison is symmetric.
func (n *Normalizer) FuzzyMatch(a, b string) bool {
	na := n.Normalize(a)
	nb := n.Normalize(b)
	if na == nb {
		return true
	}

	sa := n.StripSuffixes(na)
	sb := n.StripSuffixes(nb)
	if sa != "" && sa == sb {
		return true
	}

	ca := n.City(sa)
	cb := n.City(sb)
	return ca != "" && ca == cb
}
