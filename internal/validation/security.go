// Package validation provides the name and path checks shared by the entry
// facade and the scaffold engine.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// illegalFilenameChars are rejected on every platform so generated trees stay
// portable.
const illegalFilenameChars = `<>:"/\|?*`

var reservedWindowsNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// ValidateFilename checks a single path element.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("filename %q is not allowed", name)
	}
	if i := strings.IndexAny(name, illegalFilenameChars); i >= 0 {
		return fmt.Errorf("filename %q contains illegal character %q", name, name[i])
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("filename %q contains a control character", name)
		}
	}
	if strings.HasSuffix(name, " ") || strings.HasSuffix(name, ".") {
		return fmt.Errorf("filename %q cannot end with a space or dot", name)
	}
	base := strings.ToUpper(strings.SplitN(name, ".", 2)[0])
	if reservedWindowsNames[base] {
		return fmt.Errorf("filename %q uses a reserved device name", name)
	}
	return nil
}

// ValidatePath validates a project-relative path to prevent path traversal.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.ToSlash(filepath.Clean(filepath.FromSlash(path)))
	if cleanPath == ".." || strings.HasPrefix(cleanPath, "../") {
		return fmt.Errorf("path traversal detected: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "<", ">"}
	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}

// SanitizeInput removes null bytes and control characters other than common
// whitespace from user input.
func SanitizeInput(input string) string {
	var sanitized strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}
	return sanitized.String()
}
