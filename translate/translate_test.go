package translate

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/appfactor/strkit/gcloud"
	"github.com/appfactor/strkit/lockfile"
	"github.com/appfactor/strkit/placeholder"
	"github.com/appfactor/strkit/stringtable"
)

// fakeTranslator records requests and answers via a configurable function.
type fakeTranslator struct {
	respond func(req *gcloud.Request) (*gcloud.Response, error)
	calls   []*gcloud.Request
}

func (f *fakeTranslator) Translate(_ context.Context, req *gcloud.Request) (*gcloud.Response, error) {
	f.calls = append(f.calls, req)
	return f.respond(req)
}

// echoTranslator prefixes every query with the target code, keeping tokens.
func echoTranslator() *fakeTranslator {
	return &fakeTranslator{
		respond: func(req *gcloud.Request) (*gcloud.Response, error) {
			items := make([]string, len(req.Q))
			for i, q := range req.Q {
				items[i] = req.Target + ":" + q
			}
			return &gcloud.Response{Items: items}, nil
		},
	}
}

func masterRecords() []stringtable.Record {
	return []stringtable.Record{
		{Key: "greeting_key", Value: "Hello %@", Comment: "Greeting", HasComment: true},
		{Key: "file_count_key", Value: "%d files selected"},
		{Key: "plain_key", Value: "Done"},
	}
}

// ---------------------------------------------------------------------------
// Batch building
// ---------------------------------------------------------------------------

func TestBuildItems(t *testing.T) {
	items := BuildItems(masterRecords())
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].Tokenized != "Hello {0}" {
		t.Errorf("items[0].Tokenized = %q", items[0].Tokenized)
	}
	if len(items[0].Spans) != 1 || items[0].Spans[0] != "%@" {
		t.Errorf("items[0].Spans = %v", items[0].Spans)
	}
	if items[1].Tokenized != "{0} files selected" {
		t.Errorf("items[1].Tokenized = %q", items[1].Tokenized)
	}
	if items[2].Tokenized != "Done" || len(items[2].Spans) != 0 {
		t.Errorf("items[2] = %q spans %v", items[2].Tokenized, items[2].Spans)
	}
}

func TestBuildRequest(t *testing.T) {
	items := BuildItems(masterRecords())
	req := BuildRequest(items, "en", "de")

	if req.Source != "en" || req.Target != "de" {
		t.Errorf("source/target = %q/%q", req.Source, req.Target)
	}
	if req.Format != "text" {
		t.Errorf("format = %q, want text", req.Format)
	}
	if len(req.Q) != 3 || req.Q[0] != "Hello {0}" || req.Q[2] != "Done" {
		t.Errorf("q = %v", req.Q)
	}
}

func TestBuildRequest_GoogleCodeMapping(t *testing.T) {
	req := BuildRequest(nil, "en", "zh-Hans")
	if req.Target != "zh-CN" {
		t.Errorf("target = %q, want zh-CN", req.Target)
	}
}

// ---------------------------------------------------------------------------
// Assemble
// ---------------------------------------------------------------------------

func TestAssemble_RestoresMarkers(t *testing.T) {
	items := BuildItems(masterRecords())
	translated := []string{"Hallo {0}", "{0} Dateien ausgewählt", "Fertig"}

	recs, err := Assemble(items, translated)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if recs[0].Value != "Hallo %@" {
		t.Errorf("recs[0].Value = %q", recs[0].Value)
	}
	if recs[1].Value != "%d Dateien ausgewählt" {
		t.Errorf("recs[1].Value = %q", recs[1].Value)
	}
	if recs[0].Comment != "Greeting" || !recs[0].HasComment {
		t.Errorf("comment not carried: %+v", recs[0])
	}
}

func TestAssemble_CountMismatch(t *testing.T) {
	items := BuildItems(masterRecords())
	_, err := Assemble(items, []string{"only one"})
	if err == nil {
		t.Fatal("expected error for short translation list")
	}
}

func TestAssemble_DroppedToken(t *testing.T) {
	items := BuildItems(masterRecords())
	// Token lost in the first translation
	_, err := Assemble(items, []string{"Hallo", "{0} Dateien", "Fertig"})

	var mismatch *placeholder.MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected MismatchError, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

func TestRun_WritesAllLanguages(t *testing.T) {
	dir := t.TempDir()
	tr := echoTranslator()
	tasks := []Task{
		{Lang: "de", Path: filepath.Join(dir, "de.strings")},
		{Lang: "fr", Path: filepath.Join(dir, "fr.strings")},
	}

	outcomes, err := Run(context.Background(), masterRecords(), tasks, Options{
		Translator: tr,
		SourceLang: "en",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes", len(outcomes))
	}
	for _, out := range outcomes {
		if out.Failed() {
			t.Errorf("[%s] unexpected failure: %v", out.Lang, out.Err)
		}
		if out.Translated != 3 {
			t.Errorf("[%s] translated = %d, want 3", out.Lang, out.Translated)
		}
	}

	f, err := stringtable.ParseFile(tasks[0].Path, stringtable.Options{})
	if err != nil {
		t.Fatalf("parsing de table: %v", err)
	}
	if v, _ := f.Get("greeting_key"); v.Value != "de:Hello %@" {
		t.Errorf("greeting_key = %q", v.Value)
	}
	if v, _ := f.Get("file_count_key"); v.Value != "de:%d files selected" {
		t.Errorf("file_count_key = %q", v.Value)
	}
}

func TestRun_LanguageIsolation(t *testing.T) {
	dir := t.TempDir()
	tr := &fakeTranslator{}
	tr.respond = func(req *gcloud.Request) (*gcloud.Response, error) {
		if req.Target == "de" {
			return nil, &gcloud.CountMismatchError{Target: "de", Want: len(req.Q), Got: 0}
		}
		items := make([]string, len(req.Q))
		for i, q := range req.Q {
			items[i] = req.Target + ":" + q
		}
		return &gcloud.Response{Items: items}, nil
	}

	tasks := []Task{
		{Lang: "de", Path: filepath.Join(dir, "de.strings")},
		{Lang: "fr", Path: filepath.Join(dir, "fr.strings")},
	}

	outcomes, err := Run(context.Background(), masterRecords(), tasks, Options{
		Translator: tr,
		SourceLang: "en",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !outcomes[0].Failed() {
		t.Error("de should have failed")
	}
	var mismatch *gcloud.CountMismatchError
	if !errors.As(outcomes[0].Err, &mismatch) {
		t.Errorf("de error = %v, want CountMismatchError", outcomes[0].Err)
	}
	if outcomes[1].Failed() {
		t.Errorf("fr should have succeeded: %v", outcomes[1].Err)
	}
	if _, err := stringtable.ParseFile(tasks[1].Path, stringtable.Options{}); err != nil {
		t.Errorf("fr table should exist: %v", err)
	}
}

func TestRun_TokenRefreshAborts(t *testing.T) {
	dir := t.TempDir()
	tr := &fakeTranslator{
		respond: func(req *gcloud.Request) (*gcloud.Response, error) {
			return nil, gcloud.ErrTokenRefreshed
		},
	}
	tasks := []Task{
		{Lang: "de", Path: filepath.Join(dir, "de.strings")},
		{Lang: "fr", Path: filepath.Join(dir, "fr.strings")},
	}

	outcomes, err := Run(context.Background(), masterRecords(), tasks, Options{
		Translator: tr,
		SourceLang: "en",
	})
	if !errors.Is(err, gcloud.ErrTokenRefreshed) {
		t.Fatalf("Run err = %v, want ErrTokenRefreshed", err)
	}
	if len(outcomes) != 1 {
		t.Errorf("got %d outcomes, want 1 (run aborted)", len(outcomes))
	}
	if len(tr.calls) != 1 {
		t.Errorf("translator called %d times, want 1", len(tr.calls))
	}
}

func TestRun_SkipsExistingKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "de.strings")

	existing := &stringtable.File{Records: []stringtable.Record{
		{Key: "greeting_key", Value: "Hallo %@"},
	}}
	if err := existing.WriteFile(path); err != nil {
		t.Fatalf("seeding table: %v", err)
	}

	tr := echoTranslator()
	outcomes, err := Run(context.Background(), masterRecords(), []Task{{Lang: "de", Path: path}}, Options{
		Translator: tr,
		SourceLang: "en",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcomes[0].Translated != 2 || outcomes[0].Skipped != 1 {
		t.Errorf("translated/skipped = %d/%d, want 2/1", outcomes[0].Translated, outcomes[0].Skipped)
	}
	if len(tr.calls[0].Q) != 2 {
		t.Errorf("request carried %d strings, want 2", len(tr.calls[0].Q))
	}

	f, err := stringtable.ParseFile(path, stringtable.Options{})
	if err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if v, _ := f.Get("greeting_key"); v.Value != "Hallo %@" {
		t.Errorf("existing translation overwritten: %q", v.Value)
	}
	if v, _ := f.Get("plain_key"); v.Value != "de:Done" {
		t.Errorf("new key missing: %q", v.Value)
	}
	// Output keeps master record order
	if f.Records[0].Key != "greeting_key" || f.Records[2].Key != "plain_key" {
		t.Errorf("record order broken: %v", f.Keys())
	}
}

func TestRun_RetranslateOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "de.strings")

	existing := &stringtable.File{Records: []stringtable.Record{
		{Key: "greeting_key", Value: "Hallo %@"},
	}}
	if err := existing.WriteFile(path); err != nil {
		t.Fatalf("seeding table: %v", err)
	}

	tr := echoTranslator()
	outcomes, err := Run(context.Background(), masterRecords(), []Task{{Lang: "de", Path: path}}, Options{
		Translator:  tr,
		SourceLang:  "en",
		Retranslate: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcomes[0].Translated != 3 {
		t.Errorf("translated = %d, want 3", outcomes[0].Translated)
	}

	f, _ := stringtable.ParseFile(path, stringtable.Options{})
	if v, _ := f.Get("greeting_key"); v.Value != "de:Hello %@" {
		t.Errorf("greeting_key = %q, want fresh translation", v.Value)
	}
}

func TestRun_IncrementalRetranslatesChangedMaster(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "de.strings")
	master := masterRecords()

	existing := &stringtable.File{Records: []stringtable.Record{
		{Key: "greeting_key", Value: "Hallo %@"},
		{Key: "file_count_key", Value: "%d Dateien"},
		{Key: "plain_key", Value: "Fertig"},
	}}
	if err := existing.WriteFile(path); err != nil {
		t.Fatalf("seeding table: %v", err)
	}

	lock, err := lockfile.Load(dir)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	// greeting_key and plain_key checksummed at current master text;
	// file_count_key checksummed at an older text, so it must re-translate.
	lock.Update("de", "greeting_key", lockfile.EntryContent("greeting_key", master[0].Value))
	lock.Update("de", "file_count_key", lockfile.EntryContent("file_count_key", "%d files"))
	lock.Update("de", "plain_key", lockfile.EntryContent("plain_key", master[2].Value))

	tr := echoTranslator()
	outcomes, err := Run(context.Background(), master, []Task{{Lang: "de", Path: path}}, Options{
		Translator:  tr,
		SourceLang:  "en",
		Incremental: true,
		Lock:        lock,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcomes[0].Translated != 1 || outcomes[0].Skipped != 2 {
		t.Errorf("translated/skipped = %d/%d, want 1/2", outcomes[0].Translated, outcomes[0].Skipped)
	}
	if len(tr.calls[0].Q) != 1 || tr.calls[0].Q[0] != "{0} files selected" {
		t.Errorf("request q = %v", tr.calls[0].Q)
	}

	// Lock now reflects the new master text
	if lock.IsChanged("de", "file_count_key", lockfile.EntryContent("file_count_key", master[1].Value)) {
		t.Error("lock should have been updated for file_count_key")
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := echoTranslator()
	_, err := Run(ctx, masterRecords(), []Task{{Lang: "de", Path: "unused"}}, Options{
		Translator: tr,
		SourceLang: "en",
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(tr.calls) != 0 {
		t.Errorf("translator should not have been called")
	}
}
