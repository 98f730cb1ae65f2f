// Package csvexport flattens Localizable.strings tables into a delimited
// text file suitable for loading into an RDBMS table, one line per record
// per locale. The field separator is the literal token <;> with every
// field double-quoted:
//
//	"lang"<;>"territory"<;>"key"<;>"value"<;>"comment"
//
// Output is UTF-16LE with BOM, matching the string tables themselves.
package csvexport

import (
	"fmt"
	"os"
	"strings"

	"github.com/appfactor/strkit/project"
	"github.com/appfactor/strkit/stringtable"
)

// FieldSeparator joins the quoted fields of one line. A multi-character
// token sidesteps quoting rules for commas and semicolons inside values.
const FieldSeparator = "<;>"

// Row is one exported record.
type Row struct {
	Lang      string
	Territory string
	Key       string
	Value     string
	Comment   string
}

// Territory extracts the region subtag from a locale identifier:
// "pt-BR" yields "BR", "zh-Hans" and plain "de" yield "".
func Territory(locale string) string {
	parts := strings.Split(locale, "-")
	for _, p := range parts[1:] {
		if isRegionSubtag(p) {
			return p
		}
	}
	return ""
}

func isRegionSubtag(s string) bool {
	if len(s) == 2 {
		return s[0] >= 'A' && s[0] <= 'Z' && s[1] >= 'A' && s[1] <= 'Z'
	}
	if len(s) == 3 {
		for i := 0; i < 3; i++ {
			if s[i] < '0' || s[i] > '9' {
				return false
			}
		}
		return true
	}
	return false
}

// FromTable converts one locale's table into rows, preserving record order.
func FromTable(lang string, f *stringtable.File) []Row {
	rows := make([]Row, 0, len(f.Records))
	for _, rec := range f.Records {
		rows = append(rows, Row{
			Lang:      lang,
			Territory: Territory(lang),
			Key:       rec.Key,
			Value:     rec.Value,
			Comment:   rec.Comment,
		})
	}
	return rows
}

// Encode renders rows as the delimited text, one line per row.
func Encode(rows []Row) string {
	var b strings.Builder
	for _, r := range rows {
		fields := []string{r.Lang, r.Territory, r.Key, r.Value, r.Comment}
		for i, f := range fields {
			if i > 0 {
				b.WriteString(FieldSeparator)
			}
			b.WriteByte('"')
			b.WriteString(f)
			b.WriteByte('"')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseLine splits one exported line back into a Row.
func ParseLine(line string) (Row, error) {
	fields := strings.Split(line, FieldSeparator)
	if len(fields) != 5 {
		return Row{}, fmt.Errorf("expected 5 fields, got %d: %q", len(fields), line)
	}
	for i, f := range fields {
		if len(f) < 2 || f[0] != '"' || f[len(f)-1] != '"' {
			return Row{}, fmt.Errorf("field %d not quoted: %q", i, line)
		}
		fields[i] = f[1 : len(f)-1]
	}
	return Row{
		Lang:      fields[0],
		Territory: fields[1],
		Key:       fields[2],
		Value:     fields[3],
		Comment:   fields[4],
	}, nil
}

// Decode parses exported text back into rows. Blank lines are skipped.
func Decode(text string) ([]Row, error) {
	var rows []Row
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		row, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseFile reads an export file, honoring the UTF-16 encoding.
func ParseFile(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, err := stringtable.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rows, err := Decode(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// ByLang groups rows into per-language tables, preserving row order
// within each language. The second result lists the languages in first-
// appearance order.
func ByLang(rows []Row) (map[string]*stringtable.File, []string) {
	tables := make(map[string]*stringtable.File)
	var langs []string
	for _, r := range rows {
		f, ok := tables[r.Lang]
		if !ok {
			f = stringtable.NewFile()
			tables[r.Lang] = f
			langs = append(langs, r.Lang)
		}
		f.Records = append(f.Records, stringtable.Record{
			Key:        r.Key,
			Value:      r.Value,
			Comment:    r.Comment,
			HasComment: r.Comment != "",
		})
	}
	return tables, langs
}

// Options controls what Export includes.
type Options struct {
	// AllLanguages includes every detected locale table in addition to
	// the master. Useful to pick up manually maintained translations.
	AllLanguages bool
	// OnLog receives progress messages.
	OnLog func(format string, args ...any)
}

func (o Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

// Export writes the project's string tables to outPath. The master table
// comes first; with AllLanguages set, the remaining locales follow in
// sorted order. Returns the number of rows written.
func Export(p *project.Project, outPath string, opts Options) (int, error) {
	langs := []string{p.SourceLang}
	if opts.AllLanguages {
		langs = append(langs, p.Languages...)
	}

	var rows []Row
	for _, lang := range langs {
		path := p.StringsPath(lang)
		f, err := stringtable.ParseFile(path, p.ParseOptions())
		if err != nil {
			if os.IsNotExist(err) && lang != p.SourceLang {
				opts.log("no table for %s, skipping", lang)
				continue
			}
			return 0, fmt.Errorf("reading %s table: %w", lang, err)
		}
		opts.log("exporting %d records from %s", len(f.Records), lang)
		rows = append(rows, FromTable(lang, f)...)
	}

	data, err := stringtable.Encode(Encode(rows))
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return 0, err
	}
	return len(rows), nil
}
