// Package placeholder protects iOS format placeholders across a
// translation pass.
//
// Translatable text may embed the integer substitution marker %d and the
// object substitution marker %@. Translation services mangle such markers,
// so before submission each occurrence is replaced with a positional token
// {0}, {1}, ... and after translation the original literals are spliced
// back in, in their original order.
package placeholder

import (
	"fmt"
	"regexp"
	"strings"
)

// pattern matches the recognized placeholder literals. The set is closed:
// only the integer and the object substitution markers are protected.
var pattern = regexp.MustCompile(`%d|%@`)

// tokenPattern matches the positional tokens inserted by Tokenize.
var tokenPattern = regexp.MustCompile(`\{\d+\}`)

// MismatchError reports that translated text does not carry the expected
// number of positional tokens: the translation service altered, dropped,
// duplicated or reordered them. The affected language's output must not be
// written.
type MismatchError struct {
	// Want is the expected token count, Got the count actually found.
	Want, Got int
	// Text is the offending translated text.
	Text string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("placeholder count mismatch: want %d tokens, got %d in %q",
		e.Want, e.Got, e.Text)
}

// Tokenize replaces each placeholder occurrence, left to right, with a
// positional token {i}. It returns the rewritten text and the ordered list
// of original literals. Text without placeholders comes back unchanged
// with an empty (length zero) list, so absence is never mistaken for a
// single occurrence.
func Tokenize(text string) (string, []string) {
	spans := []string{}
	i := 0
	tokenized := pattern.ReplaceAllStringFunc(text, func(match string) string {
		spans = append(spans, match)
		token := fmt.Sprintf("{%d}", i)
		i++
		return token
	})
	return tokenized, spans
}

// Restore splices the original placeholder literals back into translated
// tokenized text. The text is split on the positional-token pattern; the
// number of fragments must be exactly len(spans)+1, otherwise a
// *MismatchError is returned. Literals are reinserted unchanged in their
// original order.
func Restore(translated string, spans []string) (string, error) {
	fragments := tokenPattern.Split(translated, -1)
	if len(fragments) != len(spans)+1 {
		return "", &MismatchError{Want: len(spans), Got: len(fragments) - 1, Text: translated}
	}

	var b strings.Builder
	for i, frag := range fragments {
		b.WriteString(frag)
		if i < len(spans) {
			b.WriteString(spans[i])
		}
	}
	return b.String(), nil
}
