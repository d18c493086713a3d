package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// maxImportPathLength bounds import paths and dependency names.
const maxImportPathLength = 256

// importPathRegex matches slash-separated import paths made of the characters
// the go command accepts in module paths.
var importPathRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._~+-]*(/[A-Za-z0-9._~+-]+)*$`)

// ValidateImportPath validates a package import path or dependency name.
// It rejects names that could escape the vendor directory once turned into
// nested directories:
//   - No empty names
//   - No control characters
//   - No path traversal sequences (.., //, etc.)
//   - No leading or trailing slash
//   - Maximum length of 256 characters
func ValidateImportPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidImport, "import path cannot be empty")
	}

	if len(path) > maxImportPathLength {
		return New(ErrCodeInvalidImport, "import path too long (max %d characters)", maxImportPathLength)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidImport, "import path contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}
	for _, pattern := range dangerousPatterns {
		if strings.Contains(path, pattern) {
			return New(ErrCodeInvalidImport, "import path contains invalid characters: %q", pattern)
		}
	}

	if !importPathRegex.MatchString(path) {
		return New(ErrCodeInvalidImport, "invalid import path: %q", path)
	}

	return nil
}

// ValidatePath validates a relative file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
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

// remoteSchemes lists the URL schemes accepted for repository URLs.
var remoteSchemes = []string{"https://", "http://", "ssh://", "git://", "git@", "file://"}

// ValidateURL validates a repository URL. Local filesystem paths are accepted
// as well since git can clone from them.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}
	if strings.ContainsAny(rawURL, " \t\n") {
		return New(ErrCodeInvalidInput, "URL cannot contain whitespace: %q", rawURL)
	}
	if strings.HasPrefix(rawURL, "/") {
		return nil
	}
	for _, s := range remoteSchemes {
		if strings.HasPrefix(rawURL, s) {
			return nil
		}
	}
	return New(ErrCodeInvalidInput, "unsupported URL scheme: %q", rawURL)
}
