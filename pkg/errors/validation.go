package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// identifierRegex matches knot and layer identifiers. Identifiers double as
// variable names in operation-knot expressions, so they follow the same
// lexical rules as expression identifiers.
var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(-[A-Za-z_][A-Za-z0-9_]*)*$`)

// reservedIdentifiers cannot be used as knot ids because the expression
// evaluator binds them itself.
var reservedIdentifiers = map[string]bool{
	"prevResult": true,
	"min":        true,
	"max":        true,
	"abs":        true,
}

// ValidateIdentifier validates a knot or layer identifier.
//
// The validation rules are intentionally conservative:
//   - No empty identifiers
//   - Maximum length of 128 characters
//   - Must start with a letter or underscore
//   - Only letters, digits, underscores and inner dashes followed by a letter
//   - Not one of the names reserved by the expression evaluator
func ValidateIdentifier(kind, id string) error {
	if id == "" {
		return New(ErrCodeInvalidSpec, "%s id cannot be empty", kind)
	}
	if len(id) > 128 {
		return New(ErrCodeInvalidSpec, "%s id too long (max 128 characters)", kind)
	}
	if !identifierRegex.MatchString(id) {
		return New(ErrCodeInvalidSpec, "invalid %s id: %q", kind, id)
	}
	if reservedIdentifiers[id] {
		return New(ErrCodeInvalidSpec, "%s id %q is reserved", kind, id)
	}
	return nil
}

// ValidatePath validates a file path referenced from a project file.
// It prevents path traversal out of the project directory and ensures
// reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative to the project file)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}
