package util

import "fmt"

// TruncateBytes trims a string to maxBytes if needed.
func TruncateBytes(input string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(input) <= maxBytes {
		return input, false
	}
	return input[:maxBytes], true
}

// ClampOutput trims process output to maxBytes and appends a marker so
// the caller can tell the tail was dropped.
func ClampOutput(input string, maxBytes int) string {
	trimmed, did := TruncateBytes(input, maxBytes)
	if !did {
		return trimmed
	}
	return trimmed + fmt.Sprintf("\n... [truncated at %d bytes]", maxBytes)
}
