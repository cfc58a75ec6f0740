package program

import (
	"fmt"
	"regexp"

	"github.com/roach88/luma/internal/ir"
)

// templateVarPattern matches ${name} references. Names follow variable
// syntax: anything but the closing brace.
var templateVarPattern = regexp.MustCompile(`\$\{([^{}]+)\}`)

// Expand substitutes every ${name} in template with its bound value.
//
// Substitution is all-or-nothing: if any referenced name is unbound, no
// text is produced and the error names the first missing variable.
func Expand(template string, b ir.Binding) (string, error) {
	var missing string
	out := templateVarPattern.ReplaceAllStringFunc(template, func(ref string) string {
		name := templateVarPattern.FindStringSubmatch(ref)[1]
		v, ok := b.Lookup(name)
		if !ok {
			if missing == "" {
				missing = name
			}
			return ref
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("binding variable %q not found (referenced in %q)", missing, template)
	}
	return out, nil
}

// References returns the variable names a template refers to, in order.
func References(template string) []string {
	matches := templateVarPattern.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// HasReferences reports whether template contains any ${name}.
func HasReferences(template string) bool {
	return templateVarPattern.MatchString(template)
}
