package grammar

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ParseAmount parses a numeric string using the grammar's locale separators.
// A value wrapped in parentheses is negative when parenNegative is set, the
// accounting convention used by several statement layouts.
func ParseAmount(s, decimal, thousands string, parenNegative bool) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, eris.New("grammar: empty amount")
	}

	neg := false
	if parenNegative && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}

	if thousands != "" {
		s = strings.ReplaceAll(s, thousands, "")
	}
	if decimal != "" && decimal != "." {
		s = strings.ReplaceAll(s, decimal, ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "grammar: parse amount %q", s)
	}
	if neg {
		v = -v
	}
	return v, nil
}
