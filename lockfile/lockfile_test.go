package lockfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	h1 := Hash("hello world")
	h2 := Hash("hello world")
	if h1 != h2 {
		t.Errorf("Hash not deterministic: %s != %s", h1, h2)
	}
	h3 := Hash("different")
	if h1 == h3 {
		t.Errorf("Hash collision: %s == %s", h1, h3)
	}
}

func TestEntryContent(t *testing.T) {
	c1 := EntryContent("greeting_key", "Hello")
	c2 := EntryContent("greeting_key", "Hello!")
	c3 := EntryContent("farewell_key", "Hello")
	if c1 == c2 {
		t.Error("different values should produce different content")
	}
	if c1 == c3 {
		t.Error("different keys should produce different content")
	}
}

func TestLoadNonExistent(t *testing.T) {
	lf, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error for non-existent file: %v", err)
	}
	if lf.Version != Version {
		t.Errorf("Version = %d, want %d", lf.Version, Version)
	}
	if len(lf.Checksums) != 0 {
		t.Errorf("Checksums not empty: %v", lf.Checksums)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	lf, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	lf.Update("de", "greeting_key", EntryContent("greeting_key", "Hello"))
	lf.Update("de", "farewell_key", EntryContent("farewell_key", "Goodbye"))
	lf.Update("fr", "greeting_key", EntryContent("greeting_key", "Hello"))

	if err := lf.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := filepath.Join(dir, LockFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatalf("Lock file not created at %s", path)
	}

	lf2, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}

	langs, keys := lf2.Stats()
	if langs != 2 {
		t.Errorf("langs = %d, want 2", langs)
	}
	if keys != 3 {
		t.Errorf("keys = %d, want 3", keys)
	}
}

func TestIsChanged(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	// New entry is always changed
	if !lf.IsChanged("de", "greeting_key", "Hello") {
		t.Error("new entry should be changed")
	}

	// After update, same content is not changed
	lf.Update("de", "greeting_key", "Hello")
	if lf.IsChanged("de", "greeting_key", "Hello") {
		t.Error("unchanged entry should not be changed")
	}

	// Modified content is changed
	if !lf.IsChanged("de", "greeting_key", "Hello!") {
		t.Error("modified entry should be changed")
	}

	// Different language is changed
	if !lf.IsChanged("fr", "greeting_key", "Hello") {
		t.Error("different language should be changed")
	}
}

func TestUpdateBatch(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	entries := map[string]string{
		"greeting_key": "Hello",
		"farewell_key": "Goodbye",
	}
	lf.UpdateBatch("de", entries)

	if lf.IsChanged("de", "greeting_key", "Hello") {
		t.Error("greeting_key should not be changed after batch update")
	}
	if lf.IsChanged("de", "farewell_key", "Goodbye") {
		t.Error("farewell_key should not be changed after batch update")
	}
}

func TestClean(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	lf.Update("de", "greeting_key", "Hello")
	lf.Update("de", "farewell_key", "Goodbye")
	lf.Update("de", "removed_key", "Gone")

	lf.Clean("de", []string{"greeting_key", "farewell_key"})

	if lf.IsChanged("de", "greeting_key", "Hello") {
		t.Error("greeting_key should still be tracked")
	}
	if !lf.IsChanged("de", "removed_key", "Gone") {
		t.Error("removed_key should be removed by Clean")
	}
}

func TestRemoveLang(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	lf.Update("de", "greeting_key", "Hello")
	lf.RemoveLang("de")

	langs, _ := lf.Stats()
	if langs != 0 {
		t.Errorf("langs after RemoveLang = %d, want 0", langs)
	}
}

func TestLangs(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	lf.Update("fr", "greeting_key", "Hello")
	lf.Update("de", "greeting_key", "Hello")
	lf.Update("zh-Hans", "greeting_key", "Hello")

	langs := lf.Langs()
	expected := []string{"de", "fr", "zh-Hans"}
	if len(langs) != len(expected) {
		t.Fatalf("langs len = %d, want %d", len(langs), len(expected))
	}
	for i, want := range expected {
		if langs[i] != want {
			t.Errorf("langs[%d] = %q, want %q", i, langs[i], want)
		}
	}
}

func TestSummary(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	if lf.Summary() != "empty" {
		t.Errorf("empty summary = %q, want %q", lf.Summary(), "empty")
	}

	lf.Update("de", "greeting_key", "Hello")
	lf.Update("fr", "greeting_key", "Hello")
	s := lf.Summary()
	if s == "empty" {
		t.Error("summary should not be empty after updates")
	}
}

func TestConcurrentAccess(t *testing.T) {
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
	}

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			key := "key" + string(rune('0'+n))
			lf.Update("de", key, "value")
			lf.IsChanged("de", key, "value")
			lf.Stats()
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	_, keys := lf.Stats()
	if keys != 10 {
		t.Errorf("keys after concurrent writes = %d, want 10", keys)
	}
}
