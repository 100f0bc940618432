package core

// clean.go normalizes free-text values before they reach storage.
//
// Cleaned strings are in Postgres COPY text form: a lone backslash is doubled
// so the bulk loader reads it back literally. Tabs, new lines and carriage
// returns would break the row framing of that format, so they are replaced by
// a space and reported as illegal field values.

import "strings"

type illegalSequence struct {
	sequence    string
	replacement string
	description string
	isError     bool
}

// Order matters: backslashes are escaped before any replacement can add one.
var illegalSequences = []illegalSequence{
	{sequence: `\`, replacement: `\\`, description: "Unescaped backslash", isError: false},
	{sequence: "\t", replacement: " ", description: "Tab", isError: true},
	{sequence: "\n", replacement: " ", description: "New line", isError: true},
	{sequence: "\r", replacement: " ", description: "Carriage return", isError: true},
}

// CleanString escapes and replaces illegal sequences in raw. One
// ILLEGAL_FIELD_VALUE error is recorded per kind of sequence found, however
// often it occurs. The result is always valid.
func CleanString(raw string) ValidationResult[string] {
	result := validResult(raw)
	for _, seq := range illegalSequences {
		if !strings.Contains(result.Value, seq.sequence) {
			continue
		}
		result.Value = strings.ReplaceAll(result.Value, seq.sequence, seq.replacement)
		if seq.isError {
			result.Errors.Add(NewError(IllegalFieldValue, seq.description))
		}
	}
	return result
}

// UnescapeCopyText reverses the backslash escaping applied by CleanString, for
// stores that bind values as parameters instead of streaming COPY text.
func UnescapeCopyText(s string) string {
	if !strings.Contains(s, `\\`) {
		return s
	}
	return strings.ReplaceAll(s, `\\`, `\`)
}
