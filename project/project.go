// Package project locates the locale tree of an iOS app: the per-locale
// .lproj directories holding Localizable.strings tables, the master
// (source-language) directory, and the source files genstrings scans.
//
// When a .strkit.yaml file exists in the project root it overrides
// auto-detection; see strkitfile.go.
package project

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/appfactor/strkit/stringtable"
)

// DefaultStringsFile is the string table name genstrings produces.
const DefaultStringsFile = "Localizable.strings"

// Project describes a detected (or declared) app localization tree.
type Project struct {
	// Name is the app/project name, from config or the root directory.
	Name string
	// Root is the absolute project root.
	Root string
	// AppDir is the directory scanned for .lproj locale folders.
	AppDir string
	// StringsFile is the table file name inside each locale folder.
	StringsFile string
	// SourceLang is the master language code (default "en").
	SourceLang string
	// Languages are the detected locale identifiers, master excluded,
	// sorted for deterministic output.
	Languages []string
	// LocaleDirs maps locale identifier to its .lproj directory.
	LocaleDirs map[string]string
	// SourceDirs are scanned for translatable source files.
	SourceDirs []string
	// Duplicates is the duplicate-key policy applied when parsing tables.
	Duplicates stringtable.DuplicatePolicy

	// Warnings collects non-fatal findings from detection (skipped
	// folders etc.) for the CLI to report.
	Warnings []string
}

// Detect builds a Project from the directory tree rooted at rootDir,
// applying .strkit.yaml overrides when present.
func Detect(rootDir string) (*Project, error) {
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}

	p := &Project{
		Name:        filepath.Base(absRoot),
		Root:        absRoot,
		AppDir:      absRoot,
		StringsFile: DefaultStringsFile,
		SourceLang:  "en",
		LocaleDirs:  make(map[string]string),
	}

	cfg, err := LoadConfigFile(absRoot)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		cfg.apply(p)
	}

	p.discoverLocales()

	if len(p.SourceDirs) == 0 {
		// Conventional source layouts; anything else goes in .strkit.yaml.
		for _, candidate := range []string{"Sources", "src", p.Name} {
			dir := filepath.Join(absRoot, candidate)
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				p.SourceDirs = append(p.SourceDirs, dir)
			}
		}
		if len(p.SourceDirs) == 0 {
			p.SourceDirs = []string{absRoot}
		}
	}

	return p, nil
}

// LocaleFromDir extracts the locale identifier from a locale folder base
// name. Folder names must have exactly two dot-separated components
// (e.g. "de.lproj"); the identifier is the first.
func LocaleFromDir(base string) (string, bool) {
	tokens := strings.Split(base, ".")
	if len(tokens) != 2 || tokens[0] == "" {
		return "", false
	}
	return tokens[0], true
}

// discoverLocales walks AppDir for .lproj folders carrying the strings
// file and records them by locale identifier.
func (p *Project) discoverLocales() {
	filepath.Walk(p.AppDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		base := info.Name()
		if !strings.HasSuffix(base, ".lproj") {
			return nil
		}

		lang, ok := LocaleFromDir(base)
		if !ok {
			p.Warnings = append(p.Warnings,
				"skipping locale folder with unexpected name: "+base)
			return filepath.SkipDir
		}
		if !fileExists(filepath.Join(path, p.StringsFile)) {
			return filepath.SkipDir
		}

		p.LocaleDirs[lang] = path
		if lang != p.SourceLang {
			p.Languages = append(p.Languages, lang)
		}
		return filepath.SkipDir
	})

	sort.Strings(p.Languages)
}

// MasterDir returns the master-language locale directory, or "" when the
// tree has none.
func (p *Project) MasterDir() string {
	return p.LocaleDirs[p.SourceLang]
}

// MasterPath returns the master string-table path. When no master folder
// exists yet, the conventional location under AppDir is returned so that
// extraction can create it.
func (p *Project) MasterPath() string {
	if dir := p.MasterDir(); dir != "" {
		return filepath.Join(dir, p.StringsFile)
	}
	return filepath.Join(p.AppDir, p.SourceLang+".lproj", p.StringsFile)
}

// StringsPath returns the string-table path for a locale.
func (p *Project) StringsPath(lang string) string {
	if dir, ok := p.LocaleDirs[lang]; ok {
		return filepath.Join(dir, p.StringsFile)
	}
	return filepath.Join(p.AppDir, lang+".lproj", p.StringsFile)
}

// ParseOptions returns the table parse options implied by the project
// configuration.
func (p *Project) ParseOptions() stringtable.Options {
	return stringtable.Options{Duplicates: p.Duplicates}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
