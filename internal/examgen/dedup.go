package examgen

import (
	"fmt"
	"strings"
)

// buildDedup formats earlier stems for the prompt, keeping the most recent
// max. Returns "Ninguna" when there are none.
func buildDedup(prior []string, max int) string {
	if len(prior) == 0 {
		return "Ninguna"
	}

	if max > 0 && len(prior) > max {
		prior = prior[len(prior)-max:]
	}

	var b strings.Builder
	for i, q := range prior {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return strings.TrimRight(b.String(), "\n")
}
