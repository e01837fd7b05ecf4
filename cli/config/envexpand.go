// Package config loads the burrow CLI's YAML configuration.
package config

import (
	"os"
	"regexp"
	"strings"
)

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in input. ${NAME} takes
// the variable's value and ${NAME:-fallback} takes fallback when NAME is
// unset or empty. A reference with nothing to substitute becomes the
// empty string; Validate reports the settings that leaves missing.
func ExpandEnv(input string) string {
	refs := envRef.FindAllStringSubmatchIndex(input, -1)
	if len(refs) == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input))
	last := 0
	for _, ref := range refs {
		b.WriteString(input[last:ref[0]])
		var fallback string
		if ref[4] >= 0 {
			fallback = input[ref[4]:ref[5]]
		}
		b.WriteString(envOr(input[ref[2]:ref[3]], fallback))
		last = ref[1]
	}
	b.WriteString(input[last:])
	return b.String()
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
