package match

import (
	"strings"
	"unicode"
)

// suffixExpansions maps common street-address abbreviations to their long
// forms. Applied token-wise after punctuation stripping, so "123 Main St"
// and "123 Main Street" normalize identically.
var suffixExpansions = map[string]string{
	"st":   "street",
	"ave":  "avenue",
	"av":   "avenue",
	"rd":   "road",
	"blvd": "boulevard",
	"dr":   "drive",
	"ln":   "lane",
	"ct":   "court",
	"pl":   "place",
	"ter":  "terrace",
	"hwy":  "highway",
	"pkwy": "parkway",
	"cir":  "circle",
	"sq":   "square",
	"apt":  "apartment",
	"ste":  "suite",
	"fl":   "floor",
	"n":    "north",
	"s":    "south",
	"e":    "east",
	"w":    "west",
	"ne":   "northeast",
	"nw":   "northwest",
	"se":   "southeast",
	"sw":   "southwest",
}

// NormalizeName canonicalizes a name for comparison: case folding, trimming,
// and whitespace collapsing.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeKey canonicalizes a logical identifier into natural-key form.
// Same folding as names; kept separate because keys and display names can
// diverge later without touching every caller.
func NormalizeKey(s string) string {
	return NormalizeName(s)
}

// NormalizeStreet canonicalizes a street address line: punctuation stripped,
// case folded, abbreviations expanded token by token.
func NormalizeStreet(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteByte(' ')
		}
	}
	tokens := strings.Fields(b.String())
	for i, tok := range tokens {
		if long, ok := suffixExpansions[tok]; ok {
			tokens[i] = long
		}
	}
	return strings.Join(tokens, " ")
}

// NormalizePhone strips a phone number to bare digits. An 11-digit number
// with a leading 1 (NANP country code) drops the prefix so "+1 (303)
// 555-0101" and "303-555-0101" compare equal.
func NormalizePhone(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}

// FirstToken returns the first whitespace-separated token of the normalized
// name, or "" when the name is empty.
func FirstToken(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// emailKey lowercases and trims an email address for exact comparison.
func emailKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// emailDomain returns the domain part of an email address, or "".
func emailDomain(s string) string {
	at := strings.LastIndexByte(s, '@')
	if at < 0 || at == len(s)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s[at+1:]))
}

// streetNumber returns the leading house number of a street line, or "".
func streetNumber(street string) string {
	tok := FirstToken(street)
	if tok == "" {
		return ""
	}
	for _, r := range tok {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return tok
}
