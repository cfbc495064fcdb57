// Package mangler converts between a symbol's ordinary decorated name
// and the "$$h"-infixed or "#"-prefixed spelling ARM64EC object files
// use to mark a function as callable from both the emulated x64 and
// native ARM64 halves of an ARM64X binary.
package mangler

import "strings"

// Mangle rewrites name into its ARM64EC form. It returns ok=false when
// name is already mangled: a C++ name (leading '?') that already
// contains "$$h", or a plain name that already starts with '#'.
func Mangle(name string) (string, bool) {
	if strings.HasPrefix(name, "?") {
		if strings.Contains(name, "$$h") {
			return "", false
		}
		return mangleCXXName(name), true
	}
	if strings.HasPrefix(name, "#") {
		return "", false
	}
	return "#" + name, true
}

// mangleCXXName splices "$$h" into a C++ mangled name immediately after
// the symbol's qualified-name terminator: the first "@@" that doesn't
// start a three-"@" class/namespace terminator, or just past the
// first '@' if no such terminator exists.
func mangleCXXName(name string) string {
	insertAt := -1
	for i := 0; i+1 < len(name); i++ {
		if name[i] != '@' || name[i+1] != '@' {
			continue
		}
		if i+2 < len(name) && name[i+2] == '@' {
			continue
		}
		insertAt = i + 2
		break
	}
	if insertAt < 0 {
		insertAt = len(name)
		if idx := strings.IndexByte(name, '@'); idx >= 0 {
			insertAt = idx + 1
		}
	}
	return name[:insertAt] + "$$h" + name[insertAt:]
}

// Demangle reverses Mangle. It returns ok=false for a name with no
// recognizable ARM64EC marker, or a C++ name whose "$$h" marker has
// nothing to its right (an invariant the reference mangler never
// produces, so such input is treated as malformed rather than decoded).
func Demangle(name string) (string, bool) {
	if strings.HasPrefix(name, "#") {
		return name[1:], true
	}
	if strings.HasPrefix(name, "?") {
		if idx := strings.Index(name, "$$h"); idx >= 0 {
			rest := name[idx+3:]
			if rest == "" {
				return "", false
			}
			return name[:idx] + rest, true
		}
	}
	return "", false
}
