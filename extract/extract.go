// Package extract wraps Apple's genstrings utility for extracting
// NSLocalizedString calls from Swift and Objective-C sources, producing a
// Localizable.strings table. A native regex-based scanner is also provided
// for hosts where genstrings is unavailable.
package extract

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// SupportedExtensions maps file extensions to source language names.
var SupportedExtensions = map[string]string{
	".swift": "Swift",
	".m":     "ObjectiveC",
	".mm":    "ObjectiveC",
	".h":     "ObjectiveC",
}

// skipDirs contains directory names to skip during source file scanning.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".build":       true,
	".swiftpm":     true,
	"Pods":         true,
	"Carthage":     true,
	"DerivedData":  true,
	"node_modules": true,
	"vendor":       true,
	"build":        true,
}

// Result holds the outcome of an extraction.
type Result struct {
	// SourceFiles is the list of source files scanned.
	SourceFiles []string
	// Languages is the set of detected source languages.
	Languages []string
	// StringsFile is the path to the generated Localizable.strings file.
	StringsFile string
}

// FindSources recursively finds all source files with known extensions in
// dirs. Skips build and dependency directories (Pods, DerivedData, etc.).
func FindSources(dirs []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, dir := range dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			if info.IsDir() {
				if skipDirs[info.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			ext := filepath.Ext(path)
			if _, ok := SupportedExtensions[ext]; ok {
				if !seen[path] {
					seen[path] = true
					files = append(files, path)
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// DetectedLanguages returns the set of source languages found in the file list.
func DetectedLanguages(files []string) []string {
	langSet := make(map[string]bool)
	for _, f := range files {
		if lang, ok := SupportedExtensions[filepath.Ext(f)]; ok {
			langSet[lang] = true
		}
	}
	var langs []string
	for lang := range langSet {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// RunGenstrings runs genstrings on the given source files, writing
// Localizable.strings into outDir.
//
// genstrings warnings are suppressed; only errors cause failure. If no
// localizable strings were found, an empty table file is created so
// downstream steps don't error.
func RunGenstrings(files []string, outDir string) (*Result, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no source files to extract from")
	}

	genstringsPath, err := exec.LookPath("genstrings")
	if err != nil {
		return nil, fmt.Errorf("genstrings not found; install the Xcode command line tools")
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	args := append([]string{"-o", outDir}, files...)
	cmd := exec.Command(genstringsPath, args...)
	var stderrBuf strings.Builder
	cmd.Stderr = &stderrBuf

	if err := cmd.Run(); err != nil {
		if stderrBuf.Len() > 0 {
			fmt.Fprint(os.Stderr, stderrBuf.String())
		}
		return nil, fmt.Errorf("genstrings failed: %w", err)
	}

	stringsFile := filepath.Join(outDir, "Localizable.strings")
	if _, err := os.Stat(stringsFile); os.IsNotExist(err) {
		if err := os.WriteFile(stringsFile, []byte(""), 0644); err != nil {
			return nil, fmt.Errorf("creating empty strings file: %w", err)
		}
	}

	return &Result{
		SourceFiles: files,
		Languages:   DetectedLanguages(files),
		StringsFile: stringsFile,
	}, nil
}

// FindSourcesIn is a convenience function that scans a single directory.
func FindSourcesIn(dir string) ([]string, error) {
	return FindSources([]string{dir})
}

// FilesByLanguage groups source files by their source language.
func FilesByLanguage(files []string) map[string][]string {
	result := make(map[string][]string)
	for _, f := range files {
		if lang, ok := SupportedExtensions[filepath.Ext(f)]; ok {
			result[lang] = append(result[lang], f)
		}
	}
	return result
}

// DescribeFiles returns a human-readable summary of the source files found.
func DescribeFiles(files []string) string {
	byLang := FilesByLanguage(files)
	var langs []string
	for lang := range byLang {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	var parts []string
	for _, lang := range langs {
		parts = append(parts, fmt.Sprintf("%d %s", len(byLang[lang]), lang))
	}
	return strings.Join(parts, ", ")
}
