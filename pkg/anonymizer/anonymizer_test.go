package anonymizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paydesk/paydesk/pkg/config"
)

func testSettings() config.PIISettings {
	return config.PIISettings{
		Enabled:         config.BoolPtr(true),
		DefaultStrategy: config.PIIStrategyReplace,
		Placeholder:     "[REDACTED]",
		MinScore:        0.5,
	}
}

func TestAnonymize_Email(t *testing.T) {
	a := New(testSettings())
	res, err := a.Anonymize("contact jane.doe@example.com about the refund")
	require.NoError(t, err)
	assert.Equal(t, "contact [REDACTED] about the refund", res.Text)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, EntityEmail, res.Entities[0].Type)
	assert.GreaterOrEqual(t, res.Entities[0].Score, 0.9)
}

func TestAnonymize_Strategies(t *testing.T) {
	a := New(testSettings())
	text := "send to jane@example.com today"

	tests := []struct {
		strategy config.PIIStrategy
		check    func(t *testing.T, out string)
	}{
		{config.PIIStrategyRedact, func(t *testing.T, out string) {
			assert.Equal(t, "send to  today", out)
		}},
		{config.PIIStrategyReplace, func(t *testing.T, out string) {
			assert.Equal(t, "send to [X] today", out)
		}},
		{config.PIIStrategyMask, func(t *testing.T, out string) {
			// separators preserved, letters and digits starred
			assert.Equal(t, "send to ****@*******.*** today", out)
		}},
		{config.PIIStrategyHash, func(t *testing.T, out string) {
			assert.Contains(t, out, "pii_")
			assert.NotContains(t, out, "jane@example.com")
		}},
		{config.PIIStrategyKeep, func(t *testing.T, out string) {
			assert.Equal(t, text, out)
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			res, err := a.AnonymizeWith(text, tt.strategy, "[X]", 0.5)
			require.NoError(t, err)
			tt.check(t, res.Text)
		})
	}
}

func TestAnonymize_HashIsDeterministic(t *testing.T) {
	a := New(testSettings())
	r1, err := a.AnonymizeWith("mail jane@example.com", config.PIIStrategyHash, "", 0.5)
	require.NoError(t, err)
	r2, err := a.AnonymizeWith("mail jane@example.com", config.PIIStrategyHash, "", 0.5)
	require.NoError(t, err)
	assert.Equal(t, r1.Text, r2.Text)
}

func TestAnonymize_MinScoreFilters(t *testing.T) {
	a := New(testSettings())
	// phone heuristic scores 0.7; with minScore above that nothing happens
	text := "call 555-123-4567 now"
	res, err := a.AnonymizeWith(text, config.PIIStrategyReplace, "[X]", 0.9)
	require.NoError(t, err)
	assert.Equal(t, text, res.Text)

	res, err = a.AnonymizeWith(text, config.PIIStrategyReplace, "[X]", 0.5)
	require.NoError(t, err)
	assert.NotEqual(t, text, res.Text)
}

func TestAnonymize_CreditCardLuhn(t *testing.T) {
	a := New(testSettings())

	// 4532015112830366 passes Luhn
	res, err := a.Anonymize("card 4532015112830366 charged")
	require.NoError(t, err)
	assert.NotContains(t, res.Text, "4532015112830366")
	require.NotEmpty(t, res.Entities)
	assert.Equal(t, EntityCreditCard, res.Entities[0].Type)

	// 4532015112830367 fails Luhn; left alone
	res, err = a.Anonymize("ref 4532015112830367 noted")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "4532015112830367")
}

func TestAnonymize_IBANChecksum(t *testing.T) {
	a := New(testSettings())

	// valid German IBAN test number
	res, err := a.Anonymize("pay DE89370400440532013000 please")
	require.NoError(t, err)
	assert.NotContains(t, res.Text, "DE89370400440532013000")
	require.NotEmpty(t, res.Entities)
	assert.Equal(t, EntityIBAN, res.Entities[0].Type)
	assert.GreaterOrEqual(t, res.Entities[0].Score, 0.95)

	// broken checksum
	res, err = a.Anonymize("pay DE89370400440532013001 please")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "DE89370400440532013001")
}

func TestAnonymize_MultipleSpansRightToLeft(t *testing.T) {
	a := New(testSettings())
	res, err := a.Anonymize("from a@x.com to b@y.org and c@z.net")
	require.NoError(t, err)
	assert.Equal(t, "from [REDACTED] to [REDACTED] and [REDACTED]", res.Text)
	require.Len(t, res.Entities, 3)
	// entities sorted by offset, offsets refer to the original text
	assert.Less(t, res.Entities[0].Start, res.Entities[1].Start)
	assert.Less(t, res.Entities[1].Start, res.Entities[2].Start)
}

func TestAnonymize_EntitiesNeverCarryText(t *testing.T) {
	a := New(testSettings())
	res, err := a.Anonymize("ssn 123-45-6789 on file")
	require.NoError(t, err)
	for _, e := range res.Entities {
		assert.NotContains(t, []string{"123-45-6789"}, e.Type)
	}
	assert.NotContains(t, res.Text, "123-45-6789")
}

func TestAnonymize_CustomPattern(t *testing.T) {
	settings := testSettings()
	settings.CustomPatterns = []config.CustomPIIPattern{
		{Name: "ticket_id", Regex: `\bPAY-\d{6}\b`, Score: 0.9},
	}
	a := New(settings)

	res, err := a.Anonymize("see PAY-123456 for details")
	require.NoError(t, err)
	assert.Equal(t, "see [REDACTED] for details", res.Text)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, "ticket_id", res.Entities[0].Type)
}

func TestAnonymize_InvalidCustomPatternSkipped(t *testing.T) {
	settings := testSettings()
	settings.CustomPatterns = []config.CustomPIIPattern{
		{Name: "broken", Regex: `([`, Score: 0.9},
	}
	a := New(settings)
	res, err := a.Anonymize("plain text")
	require.NoError(t, err)
	assert.Equal(t, "plain text", res.Text)
}

func TestAnonymize_UnknownStrategy(t *testing.T) {
	a := New(testSettings())
	_, err := a.AnonymizeWith("text", "scramble", "", 0.5)
	require.Error(t, err)
}

func TestAnonymize_OverlapHigherScoreWins(t *testing.T) {
	a := New(testSettings())
	// a URL containing an email-like string: both patterns can match; the
	// output must not contain either
	res, err := a.Anonymize("visit https://example.com/u/jane@example.com now")
	require.NoError(t, err)
	assert.NotContains(t, res.Text, "example.com")
	for i, e := range res.Entities {
		for _, other := range res.Entities[i+1:] {
			disjoint := e.End <= other.Start || other.End <= e.Start
			assert.True(t, disjoint, "entities must not overlap")
		}
	}
}

func TestMaskSpan(t *testing.T) {
	assert.Equal(t, "***-**-****", maskSpan("123-45-6789"))
	assert.Equal(t, "**** **** **** ****", maskSpan("4532 0151 1283 0366"))
}

func TestLuhn(t *testing.T) {
	assert.True(t, luhnValid("4532015112830366"))
	assert.False(t, luhnValid("4532015112830367"))
}

func TestIBAN(t *testing.T) {
	assert.True(t, validIBAN("DE89370400440532013000"))
	assert.True(t, validIBAN("GB82WEST12345698765432"))
	assert.False(t, validIBAN("DE89370400440532013001"))
	assert.False(t, validIBAN(strings.Repeat("A", 40)))
}
