// Package projector derives query results from store snapshots. Every
// function is pure: identical store state and identical parameters yield
// identical results, and nothing here mutates or caches store data.
package projector

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harrier-systems/harrierwatch/internal/category"
	"github.com/harrier-systems/harrierwatch/internal/models"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// EventSource is the read surface the projector needs from the store.
type EventSource interface {
	Events(cat string) ([]models.EventRecord, bool)
	Baseline(class string) (models.Baseline, time.Time)
}

// Query filters, orders, and pages one category's event log.
type Query struct {
	Category        string
	Types           []string
	SubjectContains string
	Facets          map[string]string
	SortBy          string // received (default), source, subject, or a category sort
	Desc            *bool  // nil means the sort's natural direction
	Offset          int
	Limit           int
}

// Result is a filtered page plus the total match count before paging.
type Result struct {
	Items []models.EventRecord `json:"items"`
	Total int                  `json:"total"`
}

// Events evaluates q against src.
func Events(src EventSource, q Query) (Result, error) {
	profile, ok := category.ByName(q.Category)
	if !ok {
		return Result{}, fmt.Errorf("unknown category %q", q.Category)
	}
	for facet := range q.Facets {
		if _, ok := profile.Facets[facet]; !ok {
			return Result{}, fmt.Errorf("category %s has no facet %q", q.Category, facet)
		}
	}
	less, natural, err := comparator(profile, q.SortBy)
	if err != nil {
		return Result{}, err
	}

	all, _ := src.Events(q.Category)
	matched := make([]models.EventRecord, 0, len(all))
	for _, rec := range all {
		if !matchTypes(rec, q.Types) {
			continue
		}
		if q.SubjectContains != "" && !strings.Contains(rec.SubjectKey, q.SubjectContains) {
			continue
		}
		if !matchFacets(profile, rec, q.Facets) {
			continue
		}
		matched = append(matched, rec)
	}

	desc := natural
	if q.Desc != nil {
		desc = *q.Desc
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if desc == natural {
			return less(matched[i], matched[j])
		}
		return less(matched[j], matched[i])
	})

	total := len(matched)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return Result{Items: matched[offset:end], Total: total}, nil
}

// comparator resolves a sort name to its ordering and natural direction
// (true when the natural order is descending).
func comparator(profile *category.Profile, sortBy string) (category.CompareFunc, bool, error) {
	switch sortBy {
	case "", "received":
		return func(a, b models.EventRecord) bool { return a.SequenceID > b.SequenceID }, true, nil
	case "source":
		return func(a, b models.EventRecord) bool {
			if !a.SourceTimestamp.Equal(b.SourceTimestamp) {
				return a.SourceTimestamp.After(b.SourceTimestamp)
			}
			return a.SequenceID > b.SequenceID
		}, true, nil
	case "subject":
		return func(a, b models.EventRecord) bool {
			if a.SubjectKey != b.SubjectKey {
				return a.SubjectKey < b.SubjectKey
			}
			return a.SequenceID > b.SequenceID
		}, false, nil
	}
	if cmp, ok := profile.Comparators[sortBy]; ok {
		return cmp, true, nil
	}
	return nil, false, fmt.Errorf("unknown sort %q", sortBy)
}

func matchTypes(rec models.EventRecord, types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if rec.Type == t {
			return true
		}
	}
	return false
}

func matchFacets(profile *category.Profile, rec models.EventRecord, facets map[string]string) bool {
	for name, want := range facets {
		if !profile.Facets[name](rec, want) {
			return false
		}
	}
	return true
}

// BaselineView lists a class baseline sorted by subject key.
func BaselineView(src EventSource, class string) ([]models.BaselineEntry, time.Time, error) {
	if !models.ValidClass(class) {
		return nil, time.Time{}, fmt.Errorf("unknown class %q", class)
	}
	baseline, takenAt := src.Baseline(class)
	out := make([]models.BaselineEntry, 0, len(baseline))
	for key, meta := range baseline {
		out = append(out, models.BaselineEntry{SubjectKey: key, Meta: meta})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectKey < out[j].SubjectKey })
	return out, takenAt, nil
}
