package csvexport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/appfactor/strkit/project"
	"github.com/appfactor/strkit/stringtable"
)

func TestTerritory(t *testing.T) {
	cases := map[string]string{
		"en":         "",
		"pt-BR":      "BR",
		"zh-Hans":    "",
		"es-419":     "419",
		"zh-Hant-TW": "TW",
	}
	for locale, want := range cases {
		if got := Territory(locale); got != want {
			t.Errorf("Territory(%q) = %q, want %q", locale, got, want)
		}
	}
}

func TestEncode(t *testing.T) {
	rows := []Row{
		{Lang: "en", Key: "greeting_key", Value: "Hello %@", Comment: "Shown on launch"},
		{Lang: "pt-BR", Territory: "BR", Key: "greeting_key", Value: "Olá %@"},
	}
	got := Encode(rows)
	want := `"en"<;>""<;>"greeting_key"<;>"Hello %@"<;>"Shown on launch"
"pt-BR"<;>"BR"<;>"greeting_key"<;>"Olá %@"<;>""
`
	if got != want {
		t.Errorf("Encode mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestFromTablePreservesOrder(t *testing.T) {
	f := stringtable.NewFile()
	f.Records = []stringtable.Record{
		{Key: "zebra", Value: "Zebra"},
		{Key: "apple", Value: "Apple", Comment: "fruit", HasComment: true},
	}
	rows := FromTable("de", f)
	if len(rows) != 2 || rows[0].Key != "zebra" || rows[1].Comment != "fruit" {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func writeTable(t *testing.T, dir, text string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	data, err := stringtable.Encode(text)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "Localizable.strings"), data, 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	rows := []Row{
		{Lang: "en", Key: "greeting_key", Value: "Hello %@", Comment: "Shown on launch"},
		{Lang: "de", Key: "greeting_key", Value: "Hallo %@"},
	}
	got, err := Decode(Encode(rows))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != rows[0] || got[1] != rows[1] {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestParseLineMalformed(t *testing.T) {
	for _, line := range []string{
		`"en"<;>"key"`,
		`en<;>""<;>"key"<;>"value"<;>""`,
	} {
		if _, err := ParseLine(line); err == nil {
			t.Errorf("ParseLine(%q) succeeded, want error", line)
		}
	}
}

func TestByLang(t *testing.T) {
	rows := []Row{
		{Lang: "de", Key: "a", Value: "A"},
		{Lang: "fr", Key: "a", Value: "B"},
		{Lang: "de", Key: "b", Value: "C", Comment: "note"},
	}
	tables, langs := ByLang(rows)
	if len(langs) != 2 || langs[0] != "de" || langs[1] != "fr" {
		t.Fatalf("langs = %v", langs)
	}
	de := tables["de"]
	if len(de.Records) != 2 || de.Records[1].Key != "b" || !de.Records[1].HasComment {
		t.Errorf("de table = %+v", de.Records)
	}
}

func TestExportMasterOnly(t *testing.T) {
	root := t.TempDir()
	writeTable(t, filepath.Join(root, "en.lproj"),
		"/* hint */\n\"hello_key\" = \"Hello\";\n")
	writeTable(t, filepath.Join(root, "de.lproj"),
		"\"hello_key\" = \"Hallo\";\n")

	p, err := project.Detect(root)
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(root, "strings.csv")
	n, err := Export(p, out, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	text, err := stringtable.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if text != "\"en\"<;>\"\"<;>\"hello_key\"<;>\"Hello\"<;>\"hint\"\n" {
		t.Errorf("unexpected output: %q", text)
	}
}

func TestExportAllLanguages(t *testing.T) {
	root := t.TempDir()
	writeTable(t, filepath.Join(root, "en.lproj"),
		"\"hello_key\" = \"Hello\";\n")
	writeTable(t, filepath.Join(root, "de.lproj"),
		"\"hello_key\" = \"Hallo\";\n")
	writeTable(t, filepath.Join(root, "fr.lproj"),
		"\"hello_key\" = \"Bonjour\";\n")

	p, err := project.Detect(root)
	if err != nil {
		t.Fatal(err)
	}

	var logged []string
	out := filepath.Join(root, "strings.csv")
	n, err := Export(p, out, Options{
		AllLanguages: true,
		OnLog: func(format string, args ...any) {
			logged = append(logged, format)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
	if len(logged) != 3 {
		t.Errorf("log lines = %d, want 3", len(logged))
	}

	data, _ := os.ReadFile(out)
	text, err := stringtable.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	// Master first, then remaining locales sorted.
	for i, prefix := range []string{`"en"`, `"de"`, `"fr"`} {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Errorf("line %d = %q, want prefix %s", i, lines[i], prefix)
		}
	}
}

func TestExportMissingLocaleTableSkipped(t *testing.T) {
	root := t.TempDir()
	writeTable(t, filepath.Join(root, "en.lproj"),
		"\"hello_key\" = \"Hello\";\n")
	writeTable(t, filepath.Join(root, "de.lproj"),
		"\"hello_key\" = \"Hallo\";\n")

	p, err := project.Detect(root)
	if err != nil {
		t.Fatal(err)
	}
	// Table vanishes between detection and export.
	if err := os.Remove(filepath.Join(root, "de.lproj", "Localizable.strings")); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(root, "strings.csv")
	n, err := Export(p, out, Options{AllLanguages: true})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestExportMissingMasterFails(t *testing.T) {
	root := t.TempDir()
	writeTable(t, filepath.Join(root, "de.lproj"),
		"\"hello_key\" = \"Hallo\";\n")

	p, err := project.Detect(root)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Export(p, filepath.Join(root, "strings.csv"), Options{}); err == nil {
		t.Fatal("expected error for missing master table")
	}
}
