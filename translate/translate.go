// Package translate orchestrates translation of Localizable.strings tables
// through the Google Cloud Translation API. The master table is tokenized
// once, then each target language is translated with a single batched API
// request. Languages run strictly in sequence and are isolated from each
// other: a failure in one language is recorded and the run moves on.
package translate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/appfactor/strkit/gcloud"
	"github.com/appfactor/strkit/langmeta"
	"github.com/appfactor/strkit/lockfile"
	"github.com/appfactor/strkit/placeholder"
	"github.com/appfactor/strkit/stringtable"
)

// Translator sends one batched translation request. *gcloud.Client
// satisfies this; tests substitute a fake.
type Translator interface {
	Translate(ctx context.Context, req *gcloud.Request) (*gcloud.Response, error)
}

// ---------------------------------------------------------------------------
// Batch building
// ---------------------------------------------------------------------------

// Item is a master record prepared for translation: the value with format
// markers replaced by index tokens, plus the extracted marker spans.
type Item struct {
	Record    stringtable.Record
	Tokenized string
	Spans     []string
}

// BuildItems tokenizes every master record once, in table order. The same
// items are reused for every target language.
func BuildItems(records []stringtable.Record) []Item {
	items := make([]Item, len(records))
	for i, rec := range records {
		tokenized, spans := placeholder.Tokenize(rec.Value)
		items[i] = Item{Record: rec, Tokenized: tokenized, Spans: spans}
	}
	return items
}

// BuildRequest assembles the API payload for one target language. Query
// strings keep the order of items, so responses zip back positionally.
func BuildRequest(items []Item, sourceLang, targetLang string) *gcloud.Request {
	q := make([]string, len(items))
	for i, it := range items {
		q[i] = it.Tokenized
	}
	return &gcloud.Request{
		Q:      q,
		Source: langmeta.GoogleCode(sourceLang),
		Target: langmeta.GoogleCode(targetLang),
		Format: "text",
	}
}

// Assemble zips translated strings back with their master records,
// restoring format markers into each translation. Any marker token lost
// or duplicated by the API surfaces as a placeholder.MismatchError.
func Assemble(items []Item, translated []string) ([]stringtable.Record, error) {
	if len(translated) != len(items) {
		return nil, fmt.Errorf("expected %d translations, got %d", len(items), len(translated))
	}

	out := make([]stringtable.Record, len(items))
	for i, it := range items {
		restored, err := placeholder.Restore(translated[i], it.Spans)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", it.Record.Key, err)
		}
		out[i] = stringtable.Record{
			Key:        it.Record.Key,
			Value:      restored,
			Comment:    it.Record.Comment,
			HasComment: it.Record.HasComment,
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Run options
// ---------------------------------------------------------------------------

// Task names one target language and the path its table is written to.
type Task struct {
	Lang string
	Path string
}

// Outcome reports the result for one language.
type Outcome struct {
	Lang       string
	Translated int
	Skipped    int
	Err        error
}

// Failed reports whether the language's translation failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// Options controls a translation run.
type Options struct {
	// Translator performs the API calls.
	Translator Translator
	// SourceLang is the master language code (e.g. "en").
	SourceLang string
	// Retranslate re-translates keys already present in the target table.
	Retranslate bool
	// Incremental re-translates existing keys whose master text changed
	// since the lock file was last updated. Requires Lock.
	Incremental bool
	// Lock tracks master checksums per language. Optional.
	Lock *lockfile.LockFile
	// ParseOptions applies when reading existing target tables.
	ParseOptions stringtable.Options
	// OnProgress is called after each language completes.
	OnProgress func(lang string, done, total int)
	// OnLog emits log messages during translation.
	OnLog func(format string, args ...any)
	// OnError emits error messages during translation.
	OnError func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

// ---------------------------------------------------------------------------
// Run
// ---------------------------------------------------------------------------

// Run translates the master records into every task language, in order.
// Each language gets its own Outcome; a failed language never blocks the
// ones after it. The one exception is gcloud.ErrTokenRefreshed, which
// aborts the whole run so the operator can rerun with the fresh token.
func Run(ctx context.Context, master []stringtable.Record, tasks []Task, opts Options) ([]Outcome, error) {
	items := BuildItems(master)
	outcomes := make([]Outcome, 0, len(tasks))

	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		out := translateLang(ctx, items, task, opts)
		outcomes = append(outcomes, out)

		if errors.Is(out.Err, gcloud.ErrTokenRefreshed) {
			return outcomes, out.Err
		}
		if opts.OnProgress != nil {
			opts.OnProgress(task.Lang, i+1, len(tasks))
		}
	}

	return outcomes, nil
}

// translateLang handles a single target language end to end. Any error is
// captured in the Outcome; the target file is only written after the whole
// batch translated and restored cleanly.
func translateLang(ctx context.Context, items []Item, task Task, opts Options) Outcome {
	out := Outcome{Lang: task.Lang}

	existing := loadExisting(task.Path, task.Lang, opts)
	pending := selectPending(items, existing, task.Lang, opts)
	out.Skipped = len(items) - len(pending)

	if len(pending) == 0 {
		opts.log("[%s] up to date, nothing to translate", task.Lang)
		return out
	}

	opts.log("[%s] translating %d of %d strings", task.Lang, len(pending), len(items))

	req := BuildRequest(pending, opts.SourceLang, task.Lang)
	resp, err := opts.Translator.Translate(ctx, req)
	if err != nil {
		out.Err = err
		opts.logError("[%s] translation request failed: %v", task.Lang, err)
		return out
	}

	translated, err := Assemble(pending, resp.Items)
	if err != nil {
		out.Err = err
		opts.logError("[%s] %v", task.Lang, err)
		return out
	}

	final := mergeTranslated(items, existing, translated)

	result := &stringtable.File{Records: final}
	if err := result.WriteFile(task.Path); err != nil {
		out.Err = fmt.Errorf("writing %s: %w", task.Path, err)
		opts.logError("[%s] %v", task.Lang, out.Err)
		return out
	}

	out.Translated = len(pending)
	updateLock(task.Lang, items, pending, opts)
	return out
}

// loadExisting reads the current target table if one exists. An unreadable
// or malformed table is treated as absent so the language gets a full
// fresh translation.
func loadExisting(path, lang string, opts Options) *stringtable.File {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	f, err := stringtable.ParseFile(path, opts.ParseOptions)
	if err != nil {
		opts.logError("[%s] existing table unreadable, re-translating: %v", lang, err)
		return nil
	}
	return f
}

// selectPending picks the items that need an API call. Keys missing from
// the target are always pending; keys already translated are skipped
// unless Retranslate is set or Incremental detects a changed master.
func selectPending(items []Item, existing *stringtable.File, lang string, opts Options) []Item {
	if opts.Retranslate || existing == nil {
		return items
	}

	var pending []Item
	for _, it := range items {
		if _, ok := existing.Get(it.Record.Key); !ok {
			pending = append(pending, it)
			continue
		}
		if opts.Incremental && opts.Lock != nil &&
			opts.Lock.IsChanged(lang, it.Record.Key, lockfile.EntryContent(it.Record.Key, it.Record.Value)) {
			pending = append(pending, it)
		}
	}
	return pending
}

// mergeTranslated builds the final record list in master order: freshly
// translated values where available, existing target values otherwise.
func mergeTranslated(items []Item, existing *stringtable.File, translated []stringtable.Record) []stringtable.Record {
	fresh := make(map[string]stringtable.Record, len(translated))
	for _, rec := range translated {
		fresh[rec.Key] = rec
	}

	final := make([]stringtable.Record, 0, len(items))
	for _, it := range items {
		if rec, ok := fresh[it.Record.Key]; ok {
			final = append(final, rec)
			continue
		}
		value := it.Record.Value
		if existing != nil {
			if v, ok := existing.Get(it.Record.Key); ok {
				value = v.Value
			}
		}
		final = append(final, stringtable.Record{
			Key:        it.Record.Key,
			Value:      value,
			Comment:    it.Record.Comment,
			HasComment: it.Record.HasComment,
		})
	}
	return final
}

// updateLock records master checksums for the translated keys and drops
// lock entries for keys no longer in the master table.
func updateLock(lang string, items, pending []Item, opts Options) {
	if opts.Lock == nil {
		return
	}

	for _, it := range pending {
		opts.Lock.Update(lang, it.Record.Key, lockfile.EntryContent(it.Record.Key, it.Record.Value))
	}

	keys := make([]string, 0, len(items))
	for _, it := range items {
		keys = append(keys, it.Record.Key)
	}
	sort.Strings(keys)
	opts.Lock.Clean(lang, keys)
}
