package phone

import "strings"

// Normalize reduces a phone number to its digit-only form. This is the sole
// key used for duplicate comparisons everywhere; raw display forms differ by
// punctuation ("010-1234-5678" vs "01012345678").
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Rule accepts digit strings with a given prefix and a length inside
// [MinLen, MaxLen].
type Rule struct {
	Prefix string
	MinLen int
	MaxLen int
}

// Plan is a numbering-plan table. The accepted prefix set is configuration,
// not logic, so it can be swapped per deployment region.
type Plan struct {
	Rules []Rule
}

// DefaultPlan is the Korean numbering plan: 010 mobile (11 digits), legacy
// 01x mobile (10 or 11), Seoul 02 landline, three-digit regional area codes,
// and the +82 international mobile form.
var DefaultPlan = Plan{Rules: []Rule{
	{Prefix: "010", MinLen: 11, MaxLen: 11},
	{Prefix: "011", MinLen: 10, MaxLen: 11},
	{Prefix: "016", MinLen: 10, MaxLen: 11},
	{Prefix: "017", MinLen: 10, MaxLen: 11},
	{Prefix: "018", MinLen: 10, MaxLen: 11},
	{Prefix: "019", MinLen: 10, MaxLen: 11},
	{Prefix: "02", MinLen: 9, MaxLen: 10},
	{Prefix: "031", MinLen: 10, MaxLen: 11},
	{Prefix: "032", MinLen: 10, MaxLen: 11},
	{Prefix: "033", MinLen: 10, MaxLen: 11},
	{Prefix: "041", MinLen: 10, MaxLen: 11},
	{Prefix: "042", MinLen: 10, MaxLen: 11},
	{Prefix: "043", MinLen: 10, MaxLen: 11},
	{Prefix: "044", MinLen: 10, MaxLen: 11},
	{Prefix: "051", MinLen: 10, MaxLen: 11},
	{Prefix: "052", MinLen: 10, MaxLen: 11},
	{Prefix: "053", MinLen: 10, MaxLen: 11},
	{Prefix: "054", MinLen: 10, MaxLen: 11},
	{Prefix: "055", MinLen: 10, MaxLen: 11},
	{Prefix: "061", MinLen: 10, MaxLen: 11},
	{Prefix: "062", MinLen: 10, MaxLen: 11},
	{Prefix: "063", MinLen: 10, MaxLen: 11},
	{Prefix: "064", MinLen: 10, MaxLen: 11},
	{Prefix: "8210", MinLen: 12, MaxLen: 12},
}}

// Valid reports whether the number matches the plan after normalization.
// Longer prefixes win over shorter ones so "02" never shadows "010".
func (p Plan) Valid(s string) bool {
	digits := Normalize(s)
	matched := false
	matchedLen := 0
	for _, r := range p.Rules {
		if !strings.HasPrefix(digits, r.Prefix) {
			continue
		}
		if len(r.Prefix) < matchedLen {
			continue
		}
		matchedLen = len(r.Prefix)
		matched = len(digits) >= r.MinLen && len(digits) <= r.MaxLen
	}
	return matched
}

// Valid checks s against the default plan.
func Valid(s string) bool {
	return DefaultPlan.Valid(s)
}

// Format hyphenates a number for display by digit-count bucket. It only
// inserts separators: Normalize(Format(x)) == Normalize(x).
func Format(s string) string {
	d := Normalize(s)
	switch {
	case len(d) == 11:
		return d[:3] + "-" + d[3:7] + "-" + d[7:]
	case len(d) == 10:
		return d[:2] + "-" + d[2:6] + "-" + d[6:]
	case len(d) == 9:
		return d[:3] + "-" + d[3:6] + "-" + d[6:]
	case len(d) >= 8:
		return d[:3] + "-" + d[3:7] + "-" + d[7:]
	case len(d) >= 7:
		return d[:3] + "-" + d[3:]
	default:
		return d
	}
}
