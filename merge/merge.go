// Package merge implements syncing a target strings table against the
// master table, keeping existing translations.
package merge

import (
	"github.com/appfactor/strkit/stringtable"
)

// Stats summarizes what a merge did.
type Stats struct {
	Added   int
	Kept    int
	Removed int
}

// Merge updates a target table with records from the master table.
// - New keys from the master are added with the untranslated master value.
// - Existing keys keep their translation; comments come from the master.
// - Keys no longer in the master are dropped.
// The result follows the master's record order.
func Merge(target, master *stringtable.File) (*stringtable.File, Stats) {
	var stats Stats

	existing := make(map[string]stringtable.Record)
	for _, rec := range target.Records {
		existing[rec.Key] = rec
	}

	result := &stringtable.File{Records: make([]stringtable.Record, 0, len(master.Records))}
	matched := make(map[string]bool)

	for _, m := range master.Records {
		if prev, ok := existing[m.Key]; ok {
			result.Records = append(result.Records, stringtable.Record{
				Key:        m.Key,
				Value:      prev.Value,
				Comment:    m.Comment,
				HasComment: m.HasComment,
			})
			matched[m.Key] = true
			stats.Kept++
		} else {
			result.Records = append(result.Records, m)
			stats.Added++
		}
	}

	for _, rec := range target.Records {
		if !matched[rec.Key] {
			stats.Removed++
		}
	}

	return result, stats
}

// Untranslated returns the keys whose target value still equals the
// master value, in master order.
func Untranslated(target, master *stringtable.File) []string {
	var keys []string
	for _, m := range master.Records {
		v, ok := target.Get(m.Key)
		if !ok || v.Value == m.Value {
			keys = append(keys, m.Key)
		}
	}
	return keys
}
