// Package docpath reconstructs document paths from parent references and
// looks documents up by path within one category.
package docpath

import (
	"errors"
	"strings"

	"github.com/dgallion1/docsite/internal/content"
)

var (
	// ErrNotFound means no document in the index has the requested path.
	ErrNotFound = errors.New("docpath: no document at path")
	// ErrUnresolvable means the parent chain loops and has no top.
	ErrUnresolvable = errors.New("docpath: parent chain does not terminate")
)

// Index is a read-only view over the documents of a single category. It keeps
// the input order, which decides which document wins when paths collide.
type Index struct {
	docs []content.Document
	byID map[string]int
}

// NewIndex indexes docs by id. The slice is not copied and must not be
// modified while the index is in use.
func NewIndex(docs []content.Document) *Index {
	ix := &Index{
		docs: docs,
		byID: make(map[string]int, len(docs)),
	}
	for i, d := range docs {
		if _, dup := ix.byID[d.ID]; !dup {
			ix.byID[d.ID] = i
		}
	}
	return ix
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	return len(ix.docs)
}

// Path returns the slug segments of d from the top of its tree down, skipping
// "index" segments. A parent id missing from the index ends the walk as if
// the top had been reached.
func (ix *Index) Path(d content.Document) ([]string, error) {
	var segs []string
	seen := make(map[string]bool, 8)
	cur := d

	// A chain can visit each indexed document at most once, plus d itself
	// when d is not part of the index.
	for hops := 0; hops <= len(ix.docs); hops++ {
		if seen[cur.ID] {
			return nil, ErrUnresolvable
		}
		seen[cur.ID] = true

		if cur.Slug != content.IndexSlug {
			segs = append(segs, cur.Slug)
		}
		if cur.ParentID == "" {
			return reverse(segs), nil
		}
		i, ok := ix.byID[cur.ParentID]
		if !ok {
			return reverse(segs), nil
		}
		cur = ix.docs[i]
	}
	return nil, ErrUnresolvable
}

func reverse(segs []string) []string {
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	if segs == nil {
		return []string{}
	}
	return segs
}

// Join builds the comparison string for a path.
func Join(segs []string) string {
	return strings.Join(segs, "/")
}

// JoinedPath returns Join(Path(d)).
func (ix *Index) JoinedPath(d content.Document) (string, error) {
	segs, err := ix.Path(d)
	if err != nil {
		return "", err
	}
	return Join(segs), nil
}

// Lookup returns the first document, in input order, whose joined path equals
// path exactly. Documents with unresolvable paths never match.
func (ix *Index) Lookup(path string) (content.Document, error) {
	for _, d := range ix.docs {
		p, err := ix.JoinedPath(d)
		if err != nil {
			continue
		}
		if p == path {
			return d, nil
		}
	}
	return content.Document{}, ErrNotFound
}

// Entry is a document with its computed path.
type Entry struct {
	Doc    content.Document
	Path   string
	Err    error
	Shadow bool // another document earlier in input order has the same path
}

// Entries computes the path of every document in input order.
func (ix *Index) Entries() []Entry {
	out := make([]Entry, 0, len(ix.docs))
	first := make(map[string]bool, len(ix.docs))
	for _, d := range ix.docs {
		p, err := ix.JoinedPath(d)
		e := Entry{Doc: d, Path: p, Err: err}
		if err == nil {
			e.Shadow = first[p]
			first[p] = true
		}
		out = append(out, e)
	}
	return out
}

// Duplicates reports every path shared by more than one document, mapped to
// the ids of those documents in input order. Lookup returns the first of them.
func (ix *Index) Duplicates() map[string][]string {
	byPath := make(map[string][]string)
	for _, e := range ix.Entries() {
		if e.Err != nil {
			continue
		}
		byPath[e.Path] = append(byPath[e.Path], e.Doc.ID)
	}
	for p, ids := range byPath {
		if len(ids) < 2 {
			delete(byPath, p)
		}
	}
	return byPath
}
