package types

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeCategory canonicalizes a weakness category id.
// "121", "cwe121", "CWE-121" and "CWE_121" all become "CWE121";
// numbers are zero-padded to three digits ("78" -> "CWE078").
// Ids without a numeric part are upper-cased and returned as is.
func NormalizeCategory(id string) string {
	s := strings.ToUpper(strings.TrimSpace(id))
	if s == "" {
		return ""
	}

	num := strings.TrimPrefix(s, "CWE")
	num = strings.TrimLeft(num, "-_ ")
	n, err := strconv.Atoi(num)
	if err != nil || n < 0 {
		return s
	}
	return fmt.Sprintf("CWE%03d", n)
}
