// Native NSLocalizedString scanner.
//
// This extracts localizable strings from Swift and Objective-C sources by
// scanning for NSLocalizedString calls directly, without shelling out to
// genstrings. It handles the common Swift form
// NSLocalizedString("key", comment: "text") and the Objective-C form
// NSLocalizedString(@"key", @"text"), producing the same record shape a
// genstrings run would.
package extract

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/appfactor/strkit/stringtable"
)

// callPattern matches NSLocalizedString calls on a single line. Group 1 is
// the key literal, group 2 the comment literal (may be empty for
// comment: nil).
var callPattern = regexp.MustCompile(
	`NSLocalizedString\(\s*@?"((?:[^"\\]|\\.)*)"\s*,\s*(?:comment:\s*)?(?:@?"((?:[^"\\]|\\.)*)"|nil)\s*\)`)

// scanEntry is a single extracted localizable string.
type scanEntry struct {
	Key       string
	Comment   string
	Locations []string // "file:line" references
	seq       int      // first-seen position across the scan
}

// Scan extracts NSLocalizedString calls from the given source files and
// returns them as a strings table, in the order the keys were first seen
// across the input file list, the way genstrings output follows the
// sources. Duplicate keys are merged; the first non-empty comment wins.
// One unreadable file does not stop the scan; its error is returned in
// warns.
func Scan(files []string) (*stringtable.File, []string) {
	entries := make(map[string]*scanEntry)
	var warns []string

	for _, path := range files {
		if err := scanFile(path, entries); err != nil {
			warns = append(warns, fmt.Sprintf("skipping %s: %v", path, err))
		}
	}

	sorted := make([]*scanEntry, 0, len(entries))
	for _, e := range entries {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].seq < sorted[j].seq
	})

	f := &stringtable.File{Records: make([]stringtable.Record, 0, len(sorted))}
	for _, e := range sorted {
		rec := stringtable.Record{Key: e.Key, Value: e.Key}
		if e.Comment != "" {
			rec.Comment = e.Comment
			rec.HasComment = true
		}
		f.Records = append(f.Records, rec)
	}
	return f, warns
}

// scanFile scans a single source file line by line.
func scanFile(path string, entries map[string]*scanEntry) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		for _, m := range callPattern.FindAllStringSubmatch(scanner.Text(), -1) {
			key := unescapeLiteral(m[1])
			if key == "" {
				continue
			}
			comment := unescapeLiteral(m[2])
			location := fmt.Sprintf("%s:%d", path, lineNo)

			if existing, ok := entries[key]; ok {
				existing.Locations = append(existing.Locations, location)
				if existing.Comment == "" && comment != "" {
					existing.Comment = comment
				}
			} else {
				entries[key] = &scanEntry{
					Key:       key,
					Comment:   comment,
					Locations: []string{location},
					seq:       len(entries),
				}
			}
		}
	}
	return scanner.Err()
}

// unescapeLiteral resolves the escape sequences that appear in source
// string literals.
var literalUnescaper = strings.NewReplacer(
	`\"`, `"`,
	`\\`, `\`,
	`\n`, "\n",
	`\t`, "\t",
)

func unescapeLiteral(s string) string {
	return literalUnescaper.Replace(s)
}
