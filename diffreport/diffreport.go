// Package diffreport compares a previously deployed locale tree against a
// newly assembled one and produces a single unified-diff report for human
// review before deployment.
//
// Directories are paired by the leading two-letter language code of their
// base name, so "de.lproj" on one side matches "de.DE" on the other.
package diffreport

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/appfactor/strkit/stringtable"
)

// ErrNoMatches is returned when no language could be paired between the
// two trees: there is nothing to review.
var ErrNoMatches = errors.New("no matching locale directories between previous and new trees")

// Pair is one matched language with its directory on each side.
type Pair struct {
	Lang    string
	PrevDir string
	NewDir  string
}

// Options controls report generation.
type Options struct {
	// StringsFile is the table file name inside each locale directory.
	// Defaults to Localizable.strings.
	StringsFile string
	// Context is the number of unchanged lines around each hunk.
	Context int
	// OnLog and OnWarn receive progress and warning messages.
	OnLog  func(format string, args ...any)
	OnWarn func(format string, args ...any)
}

func (o *Options) stringsFile() string {
	if o.StringsFile == "" {
		return "Localizable.strings"
	}
	return o.StringsFile
}

func (o *Options) context() int {
	if o.Context <= 0 {
		return 3
	}
	return o.Context
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) warn(format string, args ...any) {
	if o.OnWarn != nil {
		o.OnWarn(format, args...)
	}
}

// LangCode extracts the two-letter language code from a locale directory
// base name: "de.lproj" and "de.DE" both yield "de".
func LangCode(base string) (string, bool) {
	name := base
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	if len(name) < 2 {
		return "", false
	}
	return name[:2], true
}

// localeDirs lists the subdirectories of root containing the strings file,
// keyed by language code. Ambiguous or unrecognizable names are reported
// through warn.
func localeDirs(root, stringsFile string, warn func(format string, args ...any)) (map[string]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	dirs := make(map[string]string)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(path, stringsFile)); err != nil {
			continue
		}
		lang, ok := LangCode(e.Name())
		if !ok {
			warn("unrecognized locale directory name: %s", e.Name())
			continue
		}
		if prev, dup := dirs[lang]; dup {
			warn("both %s and %s map to language %s, keeping %s",
				filepath.Base(prev), e.Name(), lang, filepath.Base(prev))
			continue
		}
		dirs[lang] = path
	}
	return dirs, nil
}

// Match pairs the two directory sets by language code. Languages present
// on only one side become warnings, in sorted order.
func Match(prevDirs, newDirs map[string]string, warn func(format string, args ...any)) []Pair {
	var langs []string
	for lang := range prevDirs {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	var pairs []Pair
	for _, lang := range langs {
		newDir, ok := newDirs[lang]
		if !ok {
			warn("%s: present only in previous tree (%s)", lang, filepath.Base(prevDirs[lang]))
			continue
		}
		pairs = append(pairs, Pair{Lang: lang, PrevDir: prevDirs[lang], NewDir: newDir})
	}

	var extra []string
	for lang := range newDirs {
		if _, ok := prevDirs[lang]; !ok {
			extra = append(extra, lang)
		}
	}
	sort.Strings(extra)
	for _, lang := range extra {
		warn("%s: present only in new tree (%s)", lang, filepath.Base(newDirs[lang]))
	}

	return pairs
}

func readTable(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return stringtable.Decode(data)
}

// Diff produces the unified diff for one matched pair.
func Diff(p Pair, opts *Options) (string, error) {
	prevPath := filepath.Join(p.PrevDir, opts.stringsFile())
	newPath := filepath.Join(p.NewDir, opts.stringsFile())

	prevText, err := readTable(prevPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.Lang, err)
	}
	newText, err := readTable(newPath)
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.Lang, err)
	}

	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(prevText),
		B:        difflib.SplitLines(newText),
		FromFile: prevPath,
		ToFile:   newPath,
		Context:  opts.context(),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", p.Lang, err)
	}
	return text, nil
}

// Summary describes one report run.
type Summary struct {
	// Matched is the number of language pairs compared.
	Matched int
	// Changed is the number of pairs with a non-empty diff.
	Changed int
}

// Run compares the locale trees under prevRoot and newRoot and writes the
// concatenated diff report to outPath. Languages on only one side produce
// warnings; zero matched languages is an error.
func Run(prevRoot, newRoot, outPath string, opts Options) (*Summary, error) {
	prev, err := localeDirs(prevRoot, opts.stringsFile(), opts.warn)
	if err != nil {
		return nil, fmt.Errorf("reading previous tree: %w", err)
	}
	newDirs, err := localeDirs(newRoot, opts.stringsFile(), opts.warn)
	if err != nil {
		return nil, fmt.Errorf("reading new tree: %w", err)
	}

	pairs := Match(prev, newDirs, opts.warn)
	if len(pairs) == 0 {
		return nil, ErrNoMatches
	}

	sum := &Summary{Matched: len(pairs)}
	var b strings.Builder
	for _, p := range pairs {
		text, err := Diff(p, &opts)
		if err != nil {
			return nil, err
		}
		if text == "" {
			opts.log("%s: no changes", p.Lang)
			continue
		}
		sum.Changed++
		opts.log("%s: changes found", p.Lang)
		fmt.Fprintf(&b, "==== %s ====\n%s\n", p.Lang, text)
	}

	if err := os.WriteFile(outPath, []byte(b.String()), 0644); err != nil {
		return nil, err
	}
	return sum, nil
}
