package style

import (
	"fmt"
	"strconv"
)

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case uint64:
		return FormatAmount(x)
	case int:
		return strconv.Itoa(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// FormatAmount groups thousands with underscores: 1_000_000.
func FormatAmount(v uint64) string {
	s := strconv.FormatUint(v, 10)
	if len(s) <= 3 {
		return s
	}
	head := len(s) % 3
	if head == 0 {
		head = 3
	}
	out := s[:head]
	for i := head; i < len(s); i += 3 {
		out += "_" + s[i:i+3]
	}
	return out
}
