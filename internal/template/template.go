// Package template provides argument substitution for command and prompt definitions.
//
// Substitution is a single linear pass over the body. There is no escaping
// syntax, no recursion and no conditional logic; text inserted from an
// argument is never scanned again.
package template

import (
	"regexp"
	"strconv"
	"strings"
)

// Placeholders recognized by Render.
const (
	// AllArguments is replaced by every argument joined with a single space.
	AllArguments = "$ARGUMENTS"

	// AllArgumentsShort is an alias of AllArguments.
	AllArgumentsShort = "$ARGS"
)

// placeholderPattern matches $ARGUMENTS, $ARGS and positional $N placeholders.
var placeholderPattern = regexp.MustCompile(`\$(ARGUMENTS|ARGS|[0-9]+)`)

// Render substitutes argument placeholders in body.
//
// $ARGUMENTS and $ARGS expand to the space-joined argument list. $1, $2, ...
// expand to the matching argument, or to the empty string when the index is
// past the end of args. $0 is treated as out of range.
//
// Parameters:
//   - body: The definition text
//   - args: Invocation arguments in order
//
// Returns:
//   - string: The substituted text, otherwise verbatim (no HTML escaping)
func Render(body string, args []string) string {
	if body == "" || !strings.Contains(body, "$") {
		return body
	}

	joined := strings.Join(args, " ")

	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := match[1:]
		switch name {
		case "ARGUMENTS", "ARGS":
			return joined
		}

		idx, err := strconv.Atoi(name)
		if err != nil || idx < 1 || idx > len(args) {
			return ""
		}
		return args[idx-1]
	})
}

// Placeholders returns the distinct placeholders referenced by body, in order of
// first appearance. Useful for usage hints in listings.
func Placeholders(body string) []string {
	matches := placeholderPattern.FindAllString(body, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}
