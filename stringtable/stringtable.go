// Package stringtable implements reading and writing of iOS
// Localizable.strings tables: sequences of
//
//	/* comment */ "key" = "value";
//
// records, optionally spanning multiple physical lines, in UTF-16 or
// UTF-8 encoding.
package stringtable

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Record is a single key/value pair with an optional translator comment.
type Record struct {
	// Key is the translation key. In the master table it doubles as the
	// displayed text.
	Key string
	// Value is the localized text.
	Value string
	// Comment is the translator hint between the comment delimiters.
	Comment string
	// HasComment distinguishes an empty comment from an absent one.
	HasComment bool
}

// DuplicatePolicy controls how Parse treats duplicate keys within one table.
type DuplicatePolicy int

const (
	// DuplicateKeepLast accepts duplicates; lookups return the last
	// occurrence, matching how genstrings output behaves in practice.
	DuplicateKeepLast DuplicatePolicy = iota
	// DuplicateError rejects tables containing duplicate keys.
	DuplicateError
)

// Options controls parsing behavior.
type Options struct {
	Duplicates DuplicatePolicy
}

// ParseError reports a malformed record. The parser does not attempt
// partial recovery: the first bad record aborts the whole file.
type ParseError struct {
	// Index is the zero-based record index within the file.
	Index int
	// Raw is the record text as split from the file, before any rewriting.
	Raw string
	// Reason describes which marker was missing or misplaced.
	Reason string
}

func (e *ParseError) Error() string {
	raw := e.Raw
	if len(raw) > 120 {
		raw = raw[:120] + "..."
	}
	return fmt.Sprintf("record %d: %s: %q", e.Index, e.Reason, raw)
}

// File is a parsed string table.
type File struct {
	// Records in original file order. Never deduplicated.
	Records []Record
}

// NewFile creates an empty string table.
func NewFile() *File {
	return &File{Records: make([]Record, 0)}
}

// Keys returns all keys in file order, duplicates included.
func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.Records))
	for _, r := range f.Records {
		keys = append(keys, r.Key)
	}
	return keys
}

// Get returns the record for key. When the key occurs more than once the
// last occurrence wins.
func (f *File) Get(key string) (Record, bool) {
	for i := len(f.Records) - 1; i >= 0; i-- {
		if f.Records[i].Key == key {
			return f.Records[i], true
		}
	}
	return Record{}, false
}

// Stats returns the record count and how many records carry a comment.
func (f *File) Stats() (total, commented int) {
	for _, r := range f.Records {
		total++
		if r.HasComment {
			commented++
		}
	}
	return
}

// recordSeparator returns the statement-terminator + line-break sequence
// used by text. The Windows-style variant is probed first; a file using
// the other convention would otherwise collapse into a single unparsed
// record.
func recordSeparator(text string) string {
	if strings.Contains(text, ";\r\n") {
		return ";\r\n"
	}
	return ";\n"
}

// Parse parses the full text of one string table.
func Parse(text string, opts Options) (*File, error) {
	f := NewFile()
	sep := recordSeparator(text)

	seen := make(map[string]int)
	index := 0
	for _, raw := range strings.Split(text, sep) {
		// Multi-line comments and values are legal: interior line breaks
		// fold back into the statement terminator.
		record := strings.ReplaceAll(raw, "\r\n", "\n")
		record = strings.ReplaceAll(record, "\n", ";")

		if strings.TrimSpace(strings.Trim(record, ";")) == "" {
			continue // trailing separator
		}

		rec, reason := parseRecord(record)
		if reason != "" {
			return nil, &ParseError{Index: index, Raw: raw, Reason: reason}
		}
		if prev, dup := seen[rec.Key]; dup && opts.Duplicates == DuplicateError {
			return nil, &ParseError{
				Index:  index,
				Raw:    raw,
				Reason: fmt.Sprintf("duplicate key %q (first at record %d)", rec.Key, prev),
			}
		}
		if _, dup := seen[rec.Key]; !dup {
			seen[rec.Key] = index
		}
		f.Records = append(f.Records, rec)
		index++
	}

	return f, nil
}

// parseRecord extracts key, value and optional comment from one record.
// An empty reason means success.
func parseRecord(record string) (Record, string) {
	var rec Record

	scanFrom := 0
	commentStart := strings.Index(record, "/*")
	commentEnd := strings.Index(record, "*/")
	if commentStart >= 0 || commentEnd >= 0 {
		if commentStart < 0 || commentEnd < commentStart {
			return rec, "unbalanced comment delimiters"
		}
		rec.Comment = strings.TrimSpace(record[commentStart+2 : commentEnd])
		rec.HasComment = true
		scanFrom = commentEnd + 2
	}

	keyStart := indexFrom(record, '"', scanFrom)
	if keyStart < 0 {
		return rec, "starting quote for key not found"
	}
	keyEnd := indexFrom(record, '"', keyStart+1)
	if keyEnd < 0 {
		return rec, "ending quote for key not found"
	}
	rec.Key = record[keyStart+1 : keyEnd]

	valueStart := indexFrom(record, '"', keyEnd+1)
	if valueStart < 0 {
		return rec, "starting quote for value not found"
	}
	valueEnd := indexFrom(record, '"', valueStart+1)
	if valueEnd < 0 {
		return rec, "ending quote for value not found"
	}
	rec.Value = record[valueStart+1 : valueEnd]

	// Anything but terminators and whitespace after the value means the
	// record separator was not what we assumed and several statements got
	// glued together. Refusing here keeps that from passing silently.
	rest := strings.TrimFunc(record[valueEnd+1:], func(r rune) bool {
		return r == ';' || r == ' ' || r == '\t' || r == '\r'
	})
	if rest != "" {
		return rec, "trailing content after value"
	}

	return rec, ""
}

func indexFrom(s string, c byte, from int) int {
	if from >= len(s) {
		return -1
	}
	idx := strings.IndexByte(s[from:], c)
	if idx < 0 {
		return -1
	}
	return from + idx
}

// Serialize renders the table in the canonical format: a comment line when
// present, then the statement line, one blank line between records. The
// output round-trips losslessly through Parse.
func (f *File) Serialize() string {
	var b strings.Builder
	for i, r := range f.Records {
		if i > 0 {
			b.WriteString("\n")
		}
		if r.HasComment {
			fmt.Fprintf(&b, "/* %s */\n", r.Comment)
		}
		// Values are written verbatim: the format carries no escaping for
		// embedded quotes, and the parser reads none back.
		fmt.Fprintf(&b, "\"%s\" = \"%s\";\n", r.Key, r.Value)
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Encoding
//
// Xcode ships Localizable.strings as UTF-16; hand-edited tables are often
// UTF-8. Encoding is detected by BOM sniffing rather than asserted, with a
// zero-byte heuristic for BOM-less UTF-16.
// ---------------------------------------------------------------------------

var (
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
)

// Decode converts raw file bytes to a string, honoring a UTF-16 or UTF-8
// byte-order mark when present.
func Decode(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF16BE), bytes.HasPrefix(data, bomUTF16LE):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return "", fmt.Errorf("decoding UTF-16: %w", err)
		}
		return string(out), nil
	case bytes.HasPrefix(data, bomUTF8):
		return string(data[len(bomUTF8):]), nil
	}

	// No BOM. UTF-16 text over the ASCII-heavy .strings syntax has zero
	// bytes in every other position; UTF-8 never does.
	if len(data) >= 2 && (data[0] == 0x00 || data[1] == 0x00) {
		endian := unicode.LittleEndian
		if data[0] == 0x00 {
			endian = unicode.BigEndian
		}
		dec := unicode.UTF16(endian, unicode.IgnoreBOM).NewDecoder()
		out, _, err := transform.Bytes(dec, data)
		if err != nil {
			return "", fmt.Errorf("decoding UTF-16: %w", err)
		}
		return string(out), nil
	}

	return string(data), nil
}

// Encode converts text to UTF-16LE with BOM, the encoding Xcode expects.
func Encode(text string) ([]byte, error) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	out, _, err := transform.Bytes(enc, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("encoding UTF-16: %w", err)
	}
	return out, nil
}

// ParseFile reads and parses a string table from disk.
func ParseFile(path string, opts Options) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f, err := Parse(text, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// WriteFile serializes the table and writes it as UTF-16LE with BOM.
func (f *File) WriteFile(path string) error {
	data, err := Encode(f.Serialize())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
