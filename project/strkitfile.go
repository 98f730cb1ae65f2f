// .strkit.yaml configuration file support.
//
// When present in the project root the file overrides auto-detection:
// declared values win, everything left out still gets detected.
package project

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/appfactor/strkit/stringtable"
)

// ConfigFileName is the configuration file name.
const ConfigFileName = ".strkit.yaml"

// ConfigFile is the top-level .strkit.yaml structure.
type ConfigFile struct {
	// Name overrides the project name shown in status output.
	Name string `yaml:"name,omitempty"`
	// SourceLang is the master language code (default "en").
	SourceLang string `yaml:"source_lang,omitempty"`
	// AppDir is the directory scanned for .lproj folders, relative to
	// the project root (default ".").
	AppDir string `yaml:"app_dir,omitempty"`
	// StringsFile overrides the table file name (default
	// "Localizable.strings").
	StringsFile string `yaml:"strings_file,omitempty"`
	// SourceDirs are directories scanned for translatable source files.
	SourceDirs []string `yaml:"source_dirs,omitempty"`
	// DuplicateKeys: "last" (default) or "error".
	DuplicateKeys string `yaml:"duplicate_keys,omitempty"`
}

// LoadConfigFile loads and validates .strkit.yaml from rootDir.
// Returns nil when no config file exists.
func LoadConfigFile(rootDir string) (*ConfigFile, error) {
	path := filepath.Join(rootDir, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cf ConfigFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	switch cf.DuplicateKeys {
	case "", "last", "error":
	default:
		return nil, fmt.Errorf("%s: duplicate_keys must be \"last\" or \"error\", got %q",
			path, cf.DuplicateKeys)
	}

	return &cf, nil
}

// apply copies declared config values onto a detected project.
func (cf *ConfigFile) apply(p *Project) {
	if cf.Name != "" {
		p.Name = cf.Name
	}
	if cf.SourceLang != "" {
		p.SourceLang = cf.SourceLang
	}
	if cf.AppDir != "" {
		p.AppDir = filepath.Join(p.Root, cf.AppDir)
	}
	if cf.StringsFile != "" {
		p.StringsFile = cf.StringsFile
	}
	for _, dir := range cf.SourceDirs {
		p.SourceDirs = append(p.SourceDirs, filepath.Join(p.Root, dir))
	}
	if cf.DuplicateKeys == "error" {
		p.Duplicates = stringtable.DuplicateError
	}
}
