package anonymizer

import (
	"regexp"
	"strings"
)

// Entity types detected by the built-in pattern set.
const (
	EntityEmail      = "email"
	EntityPhone      = "phone"
	EntityCreditCard = "credit_card"
	EntitySSN        = "ssn"
	EntityIBAN       = "iban"
	EntityIP         = "ip_address"
	EntityURL        = "url"
	EntityDateTime   = "date_time"
	EntityPerson     = "person"
	EntityLocation   = "location"
)

// Entity is one detected PII span. Start/End are byte offsets into the
// original text. The original text itself is never carried here.
type Entity struct {
	Type  string  `json:"type"`
	Score float64 `json:"score"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

// detector pairs a compiled pattern with its type, base confidence, and an
// optional validator that can adjust or reject a match.
type detector struct {
	entityType string
	regex      *regexp.Regexp
	score      float64
	// validate returns the final score for a match, or a negative value to
	// reject it. Nil means the base score stands.
	validate func(match string) float64
}

// builtinDetectors compiles the standard detector set. Scores reflect how
// unambiguous each pattern is: checksum-validated formats score high,
// heuristics score near the typical minScore threshold.
func builtinDetectors() []detector {
	return []detector{
		{
			entityType: EntityEmail,
			regex:      regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
			score:      0.95,
		},
		{
			entityType: EntityURL,
			regex:      regexp.MustCompile(`\bhttps?://[^\s<>"]+`),
			score:      0.9,
		},
		{
			entityType: EntityIP,
			regex:      regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`),
			score:      0.9,
		},
		{
			entityType: EntityIBAN,
			regex:      regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`),
			score:      0.6,
			validate: func(match string) float64 {
				if validIBAN(match) {
					return 0.98
				}
				return -1
			},
		},
		{
			entityType: EntityCreditCard,
			regex:      regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`),
			score:      0.5,
			validate: func(match string) float64 {
				digits := strings.Map(keepDigits, match)
				if len(digits) < 13 || len(digits) > 19 {
					return -1
				}
				if luhnValid(digits) {
					return 0.95
				}
				return -1
			},
		},
		{
			entityType: EntitySSN,
			regex:      regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			score:      0.85,
		},
		{
			entityType: EntityPhone,
			regex:      regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(\d{2,4}\)[ .-]?)?\d{3}[ .-]?\d{2,4}[ .-]?\d{2,4}\b`),
			score:      0.55,
			validate: func(match string) float64 {
				digits := strings.Map(keepDigits, match)
				// Too short to be a dialable number, or long enough to be a
				// card number (which the card detector owns).
				if len(digits) < 7 || len(digits) > 15 {
					return -1
				}
				return 0.7
			},
		},
		{
			entityType: EntityDateTime,
			regex: regexp.MustCompile(`\b(?:\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2})?)?` +
				`|\d{1,2}/\d{1,2}/\d{2,4}` +
				`|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]* \d{1,2},? \d{4})\b`),
			score: 0.75,
		},
		{
			entityType: EntityPerson,
			regex:      regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr|Prof)\.? [A-Z][a-z]+(?: [A-Z][a-z]+)?\b`),
			score:      0.65,
		},
		{
			entityType: EntityLocation,
			regex:      regexp.MustCompile(`\b\d{1,5} [A-Z][a-z]+(?: [A-Z][a-z]+)* (?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr)\.?\b`),
			score:      0.7,
		},
	}
}

func keepDigits(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}

// luhnValid checks the Luhn checksum over a digit string.
func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// validIBAN checks the ISO 13616 mod-97 checksum.
func validIBAN(iban string) bool {
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	rem := 0
	for _, r := range rearranged {
		var v int
		switch {
		case r >= '0' && r <= '9':
			v = int(r - '0')
		case r >= 'A' && r <= 'Z':
			v = int(r-'A') + 10
		default:
			return false
		}
		if v >= 10 {
			rem = (rem*100 + v) % 97
		} else {
			rem = (rem*10 + v) % 97
		}
	}
	return rem == 1
}
