package errors

import (
	"slices"
	"strings"
	"unicode"
)

// ValidateGraph checks that a DOT source was supplied.
// Anything non-empty is accepted here; syntax is the layout engine's job.
func ValidateGraph(dot string) error {
	if dot == "" {
		return New(ErrCodeInvalidInput, "graph is required")
	}
	return nil
}

// ValidateEngine checks name against the list of known layout engines.
func ValidateEngine(name string, known []string) error {
	if name == "" {
		return New(ErrCodeInvalidEngine, "engine name cannot be empty")
	}
	if !slices.Contains(known, name) {
		return New(ErrCodeInvalidEngine, "invalid engine %s (supported: %s)", name, strings.Join(known, ", "))
	}
	return nil
}

// ValidateFormat checks that format is one of the output formats the CLI
// writes. The HTTP surface never rejects formats: anything but "png" is SVG.
func ValidateFormat(format string) error {
	switch format {
	case "svg", "png":
		return nil
	default:
		return New(ErrCodeInvalidFormat, "invalid format %q: supported formats are svg, png", format)
	}
}

// ValidatePath validates a local output path for the CLI.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidInput, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "path contains invalid characters")
		}
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
