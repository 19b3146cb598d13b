// Package richtext models the structured documents authored in the CMS editor
// and flattens them into plain or Markdown-like text.
package richtext

// Kind names a node variant as stored by the editor.
type Kind string

const (
	KindRoot      Kind = "root"
	KindHeading   Kind = "heading"
	KindParagraph Kind = "paragraph"
	KindList      Kind = "list"
	KindListItem  Kind = "listitem"
	KindQuote     Kind = "quote"
	KindCode      Kind = "code"
	KindText      Kind = "text"
	KindLineBreak Kind = "linebreak"
)

// MaxDepth bounds recursion over a tree. Subtrees nested deeper than this
// contribute nothing to any rendering.
const MaxDepth = 64

// Node is one of the concrete node types in this package. The set is closed:
// anything the editor stores that is not a known kind decodes as *Unknown.
type Node interface {
	Kind() Kind
	node()
}

// Root is the top of a document tree.
type Root struct {
	Children []Node
}

// Heading is a section heading. Level is 1-6; zero means the stored tag was
// absent or unparseable.
type Heading struct {
	Level    int
	Children []Node
}

type Paragraph struct {
	Children []Node
}

// List holds ListItem children. ListType is the editor's list flavour
// ("bullet", "number", "check"); rendering ignores it.
type List struct {
	ListType string
	Children []Node
}

type ListItem struct {
	Children []Node
}

type Quote struct {
	Children []Node
}

// Code is a fenced code block.
type Code struct {
	Language string
	Children []Node
}

// Text is a run of literal text.
type Text struct {
	Text string
}

type LineBreak struct{}

// Unknown carries a node of an unrecognized or extension type. Its children
// are kept so renderers can still reach their text.
type Unknown struct {
	Type     string
	Children []Node
}

func (*Root) Kind() Kind      { return KindRoot }
func (*Heading) Kind() Kind   { return KindHeading }
func (*Paragraph) Kind() Kind { return KindParagraph }
func (*List) Kind() Kind      { return KindList }
func (*ListItem) Kind() Kind  { return KindListItem }
func (*Quote) Kind() Kind     { return KindQuote }
func (*Code) Kind() Kind      { return KindCode }
func (*Text) Kind() Kind      { return KindText }
func (*LineBreak) Kind() Kind { return KindLineBreak }
func (u *Unknown) Kind() Kind {
	if u == nil {
		return ""
	}
	return Kind(u.Type)
}

func (*Root) node()      {}
func (*Heading) node()   {}
func (*Paragraph) node() {}
func (*List) node()      {}
func (*ListItem) node()  {}
func (*Quote) node()     {}
func (*Code) node()      {}
func (*Text) node()      {}
func (*LineBreak) node() {}
func (*Unknown) node()   {}

// Children returns the ordered children of n. Leaves and nil nodes have none.
func Children(n Node) []Node {
	switch v := n.(type) {
	case *Root:
		if v != nil {
			return v.Children
		}
	case *Heading:
		if v != nil {
			return v.Children
		}
	case *Paragraph:
		if v != nil {
			return v.Children
		}
	case *List:
		if v != nil {
			return v.Children
		}
	case *ListItem:
		if v != nil {
			return v.Children
		}
	case *Quote:
		if v != nil {
			return v.Children
		}
	case *Code:
		if v != nil {
			return v.Children
		}
	case *Unknown:
		if v != nil {
			return v.Children
		}
	}
	return nil
}

// IsEmpty reports whether r is nil or has no children.
func (r *Root) IsEmpty() bool {
	return r == nil || len(r.Children) == 0
}
