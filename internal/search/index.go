// Package search is the in-memory retrieval index behind the quilting
// assistant. Documents are catalog entries and paragraphs of the optional
// knowledge guide; a query returns the closest documents by Jaccard
// similarity over lowercase word tokens: score = |Q ∩ D| / |Q ∪ D|.
//
// An index is immutable once built. Live wraps one so the catalog can be
// re-indexed after admin writes while readers keep querying.
package search

import (
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

// Document is one retrievable unit.
type Document struct {
	ID    string // e.g. "pattern:7", "guide:3"
	Title string
	Text  string
}

// Result is a ranked document with its similarity score.
type Result struct {
	ID      string
	Title   string
	Snippet string
	Score   float64
}

// Index is implemented by every index in this package.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	minRunes  int
	stopwords map[string]struct{}
	maxDocs   int
}

func defaultConfig() config {
	return config{minRunes: 20, stopwords: defaultStopwords()}
}

// WithMinRunes drops documents whose text is shorter than n runes.
func WithMinRunes(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minRunes = n
		}
	}
}

// WithStopwords replaces the default English stop-word list. An empty list
// disables stop-word removal.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		c.stopwords = m
	}
}

// WithMaxDocs caps the number of indexed documents.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

func defaultStopwords() map[string]struct{} {
	m := map[string]struct{}{}
	for _, w := range strings.Fields("a an and are as at be but by can do for from have how i in is it me my of on or so that the this to what which with you your") {
		m[w] = struct{}{}
	}
	return m
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	Document
	tokens map[string]struct{}
	runes  int
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an index over docs. Title and text are both tokenized.
func NewIndex(docs []Document, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	out := make([]doc, 0, len(docs))
	for _, d := range docs {
		d.Text = strings.TrimSpace(normalizeWhitespace(d.Text))
		d.Title = strings.TrimSpace(d.Title)
		if d.Text == "" {
			continue
		}
		n := utf8.RuneCountInString(d.Text)
		if cfg.minRunes > 0 && n < cfg.minRunes {
			continue
		}
		toks := tokenize(d.Title+" "+d.Text, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		out = append(out, doc{Document: d, tokens: toks, runes: n})
		if cfg.maxDocs > 0 && len(out) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: out}
}

func (i *index) Len() int { return len(i.docs) }

// TopK returns up to k documents with a positive score, best first. Ties
// prefer shorter text, then lexical ID order.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	type scored struct {
		d     *doc
		score float64
	}
	buf := make([]scored, 0, minInt(k*4, len(i.docs)))
	for n := range i.docs {
		d := &i.docs[n]
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(len(qTokens) + len(d.tokens) - over)
		buf = append(buf, scored{d: d, score: float64(over) / union})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].d.runes != buf[b].d.runes {
			return buf[a].d.runes < buf[b].d.runes
		}
		return buf[a].d.ID < buf[b].d.ID
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for n := 0; n < k; n++ {
		d := buf[n].d
		out[n] = Result{ID: d.ID, Title: d.Title, Snippet: d.Text, Score: buf[n].score}
	}
	return out
}

// ----------------------------------------------------------------------------
// Live

type holder struct{ idx Index }

// Live is an Index whose contents can be replaced atomically.
type Live struct {
	p atomic.Pointer[holder]
}

// NewLive returns a Live serving idx (nil means empty).
func NewLive(idx Index) *Live {
	l := &Live{}
	l.Swap(idx)
	return l
}

// Swap installs idx for subsequent queries.
func (l *Live) Swap(idx Index) {
	if idx == nil {
		idx = &index{cfg: defaultConfig()}
	}
	l.p.Store(&holder{idx: idx})
}

// TopK queries the current index.
func (l *Live) TopK(q string, k int) []Result { return l.p.Load().idx.TopK(q, k) }

// Len reports the size of the current index.
func (l *Live) Len() int { return l.p.Load().idx.Len() }

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
