package richtext

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Decode parses editor JSON, either the stored {"root": {...}} envelope or a
// bare node. Only invalid JSON is an error; shape problems degrade to empty
// subtrees. A JSON null decodes to a nil root.
func Decode(data []byte) (*Root, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode rich text: %w", err)
	}
	return FromValue(v), nil
}

// FromValue converts a generic decoded value (from JSON, YAML or BSON
// extended JSON) into a tree. Non-root top-level nodes are wrapped in a Root.
func FromValue(v any) *Root {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if inner, ok := m["root"]; ok {
		m, ok = inner.(map[string]any)
		if !ok {
			return nil
		}
	}
	n := fromMap(m, 0)
	if r, ok := n.(*Root); ok {
		return r
	}
	return &Root{Children: []Node{n}}
}

func fromMap(m map[string]any, depth int) Node {
	typ, _ := m["type"].(string)

	var kids []Node
	if depth < MaxDepth {
		kids = childrenOf(m, depth)
	}

	switch Kind(typ) {
	case KindRoot:
		return &Root{Children: kids}
	case KindHeading:
		tag, _ := m["tag"].(string)
		return &Heading{Level: headingLevel(tag), Children: kids}
	case KindParagraph:
		return &Paragraph{Children: kids}
	case KindList:
		lt, _ := m["listType"].(string)
		return &List{ListType: lt, Children: kids}
	case KindListItem:
		return &ListItem{Children: kids}
	case KindQuote:
		return &Quote{Children: kids}
	case KindCode:
		lang, _ := m["language"].(string)
		return &Code{Language: lang, Children: kids}
	case KindText, "code-highlight":
		text, _ := m["text"].(string)
		return &Text{Text: text}
	case KindLineBreak:
		return &LineBreak{}
	}
	return &Unknown{Type: typ, Children: kids}
}

func childrenOf(m map[string]any, depth int) []Node {
	raw, ok := m["children"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	kids := make([]Node, 0, len(raw))
	for _, c := range raw {
		cm, ok := c.(map[string]any)
		if !ok {
			continue
		}
		kids = append(kids, fromMap(cm, depth+1))
	}
	return kids
}

// headingLevel maps a stored tag such as "h3" to 3, or 0 when the tag is
// absent or not h1-h6.
func headingLevel(tag string) int {
	if !strings.HasPrefix(tag, "h") {
		return 0
	}
	n, err := strconv.Atoi(tag[1:])
	if err != nil || n < 1 || n > 6 {
		return 0
	}
	return n
}

// Encode renders r as editor JSON in the {"root": {...}} envelope.
func Encode(r *Root) ([]byte, error) {
	if r == nil {
		r = &Root{}
	}
	return json.Marshal(map[string]any{"root": toMap(r, 0)})
}

func toMap(n Node, depth int) map[string]any {
	m := map[string]any{
		"type":    string(n.Kind()),
		"version": 1,
	}
	switch v := n.(type) {
	case *Heading:
		level := v.Level
		if level < 1 || level > 6 {
			level = 2
		}
		m["tag"] = "h" + strconv.Itoa(level)
	case *List:
		lt := v.ListType
		if lt == "" {
			lt = "bullet"
		}
		m["listType"] = lt
		m["tag"] = "ul"
		if lt == "number" {
			m["tag"] = "ol"
		}
	case *Code:
		m["language"] = v.Language
	case *Text:
		m["text"] = v.Text
		m["format"] = 0
		m["mode"] = "normal"
		return m
	case *LineBreak:
		return m
	}

	kids := Children(n)
	out := make([]map[string]any, 0, len(kids))
	if depth < MaxDepth {
		for i, c := range kids {
			if c == nil {
				continue
			}
			cm := toMap(c, depth+1)
			if _, ok := n.(*List); ok {
				cm["value"] = i + 1
			}
			out = append(out, cm)
		}
	}
	m["children"] = out
	return m
}
