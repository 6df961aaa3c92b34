package univalue

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/dpup/oauthkit/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/net/html/charset"
)

// xmlNode is an element being assembled while decoding.
type xmlNode struct {
	name     string
	attrs    []Member
	children *orderedmap.OrderedMap[string, []Value]
	text     strings.Builder
}

// parseXML maps a document onto an object keyed by the root element name.
// Elements holding only text become strings, attributes become "@name"
// members, repeated children become arrays and text mixed with children is
// kept under "#text". Documents declaring a non UTF-8 encoding are
// transcoded.
func parseXML(data []byte) (Value, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	var stack []*xmlNode
	var root Value
	var rootName string

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Missing, errors.WrapPrefix(ErrParse, "invalid xml: "+err.Error(), 0)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 && rootName != "" {
				return Missing, errors.WrapPrefix(ErrParse, "invalid xml: content after root element", 0)
			}
			n := &xmlNode{name: t.Name.Local, children: orderedmap.New[string, []Value]()}
			for _, a := range t.Attr {
				n.attrs = append(n.attrs, Member{Key: "@" + a.Name.Local, Value: NewString(a.Value)})
			}
			stack = append(stack, n)
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			} else if len(bytes.TrimSpace(t)) > 0 {
				return Missing, errors.WrapPrefix(ErrParse, "invalid xml: text outside root element", 0)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return Missing, errors.WrapPrefix(ErrParse, "invalid xml: unexpected end element", 0)
			}
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			v := n.value()
			if len(stack) == 0 {
				root, rootName = v, n.name
				continue
			}
			parent := stack[len(stack)-1]
			existing, _ := parent.children.Get(n.name)
			parent.children.Set(n.name, append(existing, v))
		}
	}

	if len(stack) > 0 || rootName == "" {
		return Missing, errors.WrapPrefix(ErrParse, "invalid xml: no complete root element", 0)
	}
	return NewObject(Member{Key: rootName, Value: root}), nil
}

func (n *xmlNode) value() Value {
	text := strings.TrimSpace(n.text.String())
	if len(n.attrs) == 0 && n.children.Len() == 0 {
		return NewString(text)
	}
	m := orderedmap.New[string, Value]()
	for _, a := range n.attrs {
		m.Set(a.Key, a.Value)
	}
	for pair := n.children.Oldest(); pair != nil; pair = pair.Next() {
		if len(pair.Value) == 1 {
			m.Set(pair.Key, pair.Value[0])
		} else {
			m.Set(pair.Key, NewArray(pair.Value...))
		}
	}
	if text != "" {
		m.Set("#text", NewString(text))
	}
	return Value{kind: Object, obj: m}
}
