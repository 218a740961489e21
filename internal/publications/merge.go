// Package publications merges every contributor's bibliography into the
// group's publication list, filtering old or incomplete records and
// removing duplicates.
package publications

import (
	"context"
	"sort"
	"strings"

	"github.com/avitech-lab/labsite/internal/bibtex"
	"github.com/avitech-lab/labsite/internal/config"
	"go.uber.org/zap"
)

// Drop reasons.
const (
	ReasonNoYear          = "no_year"
	ReasonIncompleteMisc  = "incomplete_misc"
	ReasonInvalidYear     = "invalid_year"
	ReasonBeforeMinYear   = "before_min_year"
	ReasonManualDuplicate = "manual_duplicate"
	ReasonDuplicate       = "duplicate"
)

// Options controls a merge.
type Options struct {
	MinYear          int
	Threshold        float64
	ManualDuplicates map[string]string // duplicate key -> kept key
	Title            string
	Logger           *zap.Logger
}

// OptionsFromConfig builds merge options from the tree configuration.
func OptionsFromConfig(cfg config.MergeConfig) Options {
	return Options{
		MinYear:          cfg.MinYear,
		Threshold:        cfg.SimilarityThreshold,
		ManualDuplicates: cfg.ManualDuplicates,
		Title:            cfg.Title,
	}
}

// Record is an entry together with the file it came from.
type Record struct {
	bibtex.Entry
	Source string `json:"source"`
}

// Drop records why an entry was left out.
type Drop struct {
	Key    string `json:"key"`
	Source string `json:"source"`
	Reason string `json:"reason"`
	Other  string `json:"other,omitempty"` // key of the entry it duplicates
	Year   string `json:"year,omitempty"`
}

// Stats counts the outcome of a merge.
type Stats struct {
	Total          int `json:"total"`
	Kept           int `json:"kept"`
	Duplicates     int `json:"duplicates"`
	BeforeMinYear  int `json:"before_min_year"`
	IncompleteMisc int `json:"incomplete_misc"`
	NoYear         int `json:"no_year"` // missing or non-integer year
}

// Result is the outcome of Merge.
type Result struct {
	Kept    []Record `json:"-"`
	Dropped []Drop   `json:"dropped"`
	Stats   Stats    `json:"stats"`
}

// Merge combines the entries of all files. Files are taken in the order
// given; within that order books are considered before other entries and
// chapters last, so a chapter is dropped in favour of its book.
func Merge(ctx context.Context, files []*bibtex.File, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var all []Record
	for _, f := range files {
		for _, e := range f.Entries {
			all = append(all, Record{Entry: e, Source: f.Path})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return priority(all[i].Entry) < priority(all[j].Entry)
	})

	res := &Result{Stats: Stats{Total: len(all)}}
	drop := func(r Record, reason, other string) {
		res.Dropped = append(res.Dropped, Drop{
			Key:    r.Key,
			Source: r.Source,
			Reason: reason,
			Other:  other,
			Year:   r.Field("year"),
		})
		logger.Debug("Filtered entry",
			zap.String("key", r.Key),
			zap.String("reason", reason),
			zap.String("other", other))
	}

	for _, r := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if r.Field("year") == "" {
			res.Stats.NoYear++
			drop(r, ReasonNoYear, "")
			continue
		}
		if isIncompleteMisc(r.Entry) {
			res.Stats.IncompleteMisc++
			drop(r, ReasonIncompleteMisc, "")
			continue
		}
		year, ok := bibtex.Year(r.Entry)
		if !ok {
			res.Stats.NoYear++
			drop(r, ReasonInvalidYear, "")
			continue
		}
		if year < opts.MinYear {
			res.Stats.BeforeMinYear++
			drop(r, ReasonBeforeMinYear, "")
			continue
		}
		if kept, ok := opts.ManualDuplicates[r.Key]; ok {
			res.Stats.Duplicates++
			drop(r, ReasonManualDuplicate, kept)
			continue
		}

		dup := ""
		for _, k := range res.Kept {
			if IsDuplicate(r.Entry, k.Entry, opts.Threshold) {
				dup = k.Key
				break
			}
		}
		if dup != "" {
			res.Stats.Duplicates++
			drop(r, ReasonDuplicate, dup)
			continue
		}
		res.Kept = append(res.Kept, r)
	}

	res.Stats.Kept = len(res.Kept)
	logger.Info("Merged publications",
		zap.Int("total", res.Stats.Total),
		zap.Int("kept", res.Stats.Kept),
		zap.Int("duplicates", res.Stats.Duplicates))
	return res, nil
}

func priority(e bibtex.Entry) int {
	switch e.Kind() {
	case "book":
		return 0
	case "incollection":
		return 2
	default:
		return 1
	}
}

// isIncompleteMisc reports a @misc with nothing to say where it appeared:
// no venue, no DOI, and only a citation count or note to go with it.
func isIncompleteMisc(e bibtex.Entry) bool {
	if e.Kind() != "misc" {
		return false
	}
	f := e.Fields
	hasVenue := f["journal"] != "" || f["booktitle"] != "" || f["publisher"] != "" || f["howpublished"] != ""
	if hasVenue || f["doi"] != "" {
		return false
	}
	_, citation := f["citation"]
	_, note := f["note"]
	return citation || note
}

// IsDuplicate reports whether a and b describe the same publication. A
// chapter of a book counts as a duplicate of the book; otherwise the mean
// similarity of author, title, and venue must reach threshold.
func IsDuplicate(a, b bibtex.Entry, threshold float64) bool {
	switch {
	case a.Kind() == "book" && b.Kind() == "incollection":
		if IsChapterOf(b, a) {
			return true
		}
	case a.Kind() == "incollection" && b.Kind() == "book":
		if IsChapterOf(a, b) {
			return true
		}
	}

	authorSim := bibtex.Similarity(a.Field("author"), b.Field("author"))
	titleSim := bibtex.Similarity(a.Field("title"), b.Field("title"))
	venueSim := bibtex.Similarity(bibtex.Venue(a), bibtex.Venue(b))

	return (authorSim+titleSim+venueSim)/3 >= threshold
}

// IsChapterOf reports whether chapter (an @incollection) belongs to book.
// The check survives the two being written in different languages: it
// falls back from authors and year to shared title words.
func IsChapterOf(chapter, book bibtex.Entry) bool {
	if chapter.Kind() != "incollection" || book.Kind() != "book" {
		return false
	}

	bookAuthors := book.Field("author")
	if bookAuthors == "" {
		bookAuthors = book.Field("editor")
	}
	authorSim := bibtex.Similarity(chapter.Field("author"), bookAuthors)
	chapterYear, bookYear := chapter.Field("year"), book.Field("year")
	sameYear := chapterYear != "" && bookYear != "" && chapterYear == bookYear
	if authorSim > 0.7 && sameYear {
		return true
	}

	booktitle := bibtex.NormalizeText(chapter.Field("booktitle"))
	title := bibtex.NormalizeText(book.Field("title"))
	if booktitle == "" || title == "" {
		return false
	}

	var words []string
	for _, w := range strings.Fields(title) {
		if len([]rune(w)) > 3 {
			words = append(words, w)
		}
	}
	matching := 0
	for _, w := range words {
		if strings.Contains(booktitle, w) {
			matching++
		}
	}
	if len(words) > 0 && matching >= min(2, len(words)) {
		return true
	}

	return bibtex.Similarity(booktitle, title) > 0.8
}
