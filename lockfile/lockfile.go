// Package lockfile implements strkit.lock, a lock file that tracks
// MD5 checksums of master strings per target language. This enables
// incremental translation: only new or changed strings are sent to the
// translation API, saving quota and time.
//
// The lock file is stored in the project root as strkit.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LockFileName is the default lock file name.
const LockFileName = "strkit.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile represents the strkit.lock file structure.
type LockFile struct {
	Version   int                          `yaml:"version"`
	Checksums map[string]map[string]string `yaml:"checksums"` // lang -> key -> md5

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}

	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// EntryContent builds the source content string for hashing.
// The key is included so renaming a key triggers re-translation.
func EntryContent(key, value string) string {
	return key + "\x00" + value
}

// IsChanged checks if a master string has changed since last translation.
// Returns true if the string is new or its content has changed.
func (lf *LockFile) IsChanged(lang, key, sourceContent string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	keys, ok := lf.Checksums[lang]
	if !ok {
		return true
	}
	oldHash, ok := keys[key]
	if !ok {
		return true
	}
	return oldHash != Hash(sourceContent)
}

// Update records the checksum of a master string after successful translation.
func (lf *LockFile) Update(lang, key, sourceContent string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[lang] == nil {
		lf.Checksums[lang] = make(map[string]string)
	}
	lf.Checksums[lang][key] = Hash(sourceContent)
}

// UpdateBatch records checksums for multiple keys at once.
func (lf *LockFile) UpdateBatch(lang string, entries map[string]string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[lang] == nil {
		lf.Checksums[lang] = make(map[string]string)
	}
	for key, sourceContent := range entries {
		lf.Checksums[lang][key] = Hash(sourceContent)
	}
}

// Clean removes entries from the lock file that are no longer present in
// the current master key set. This prevents stale entries from accumulating.
func (lf *LockFile) Clean(lang string, currentKeys []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[lang]
	if existing == nil {
		return
	}

	valid := make(map[string]bool, len(currentKeys))
	for _, k := range currentKeys {
		valid[k] = true
	}

	for k := range existing {
		if !valid[k] {
			delete(existing, k)
		}
	}
}

// RemoveLang removes all checksums for a language.
func (lf *LockFile) RemoveLang(lang string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	delete(lf.Checksums, lang)
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of languages and total keys in the lock file.
func (lf *LockFile) Stats() (langs, keys int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	langs = len(lf.Checksums)
	for _, m := range lf.Checksums {
		keys += len(m)
	}
	return
}

// Langs returns the sorted list of languages present in the lock file.
func (lf *LockFile) Langs() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	langs := make([]string, 0, len(lf.Checksums))
	for l := range lf.Checksums {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	return langs
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	langs, keys := lf.Stats()
	if langs == 0 {
		return "empty"
	}

	var parts []string
	for _, l := range lf.Langs() {
		n := len(lf.Checksums[l])
		parts = append(parts, fmt.Sprintf("%s: %d keys", l, n))
	}
	return fmt.Sprintf("%d languages, %d keys (%s)", langs, keys, strings.Join(parts, ", "))
}
