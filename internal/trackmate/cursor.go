package trackmate

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

type eventKind int

const (
	startEvent eventKind = iota
	endEvent
)

// event is one structural step of the document.
type event struct {
	kind  eventKind
	name  string
	attrs []xml.Attr
	depth int
	line  int
}

func (e event) attr(name string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// cursor is a forward-only pull parser over start and end element events.
// Character data is only kept when text is asked for, and skip discards the
// rest of the element just entered without materialising it.
type cursor struct {
	dec   *xml.Decoder
	depth int
}

func newCursor(r io.Reader) *cursor {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	return &cursor{dec: dec}
}

// next returns the next start or end event. It returns io.EOF at the end.
func (c *cursor) next() (event, error) {
	for {
		tok, err := c.dec.Token()
		if err != nil {
			return event{}, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			c.depth++
			line, _ := c.dec.InputPos()
			return event{kind: startEvent, name: t.Name.Local, attrs: t.Attr, depth: c.depth, line: line}, nil
		case xml.EndElement:
			c.depth--
			return event{kind: endEvent, name: t.Name.Local, depth: c.depth + 1}, nil
		}
	}
}

// skip discards the remainder of the element just entered.
func (c *cursor) skip() error {
	if err := c.dec.Skip(); err != nil {
		return err
	}
	c.depth--
	return nil
}

// text consumes the element just entered and returns its direct character
// data. Nested elements are skipped.
func (c *cursor) text() (string, error) {
	var b strings.Builder
	for {
		tok, err := c.dec.Token()
		if err != nil {
			return "", unexpected(err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.StartElement:
			if err := c.dec.Skip(); err != nil {
				return "", err
			}
		case xml.EndElement:
			c.depth--
			return b.String(), nil
		}
	}
}

// each calls fn for every child element of the element just entered.
// fn must consume the child it is given.
func (c *cursor) each(fn func(event) error) error {
	depth := c.depth
	for {
		ev, err := c.next()
		if err != nil {
			return unexpected(err)
		}
		if ev.kind == endEvent {
			if c.depth < depth {
				return nil
			}
			continue
		}
		if err := fn(ev); err != nil {
			return err
		}
		if c.depth != depth {
			return fmt.Errorf("element %s at line %d was not consumed", ev.name, ev.line)
		}
	}
}

// raw consumes the element just entered and returns it re-encoded as XML.
func (c *cursor) raw(start event) ([]byte, error) {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: start.name}, Attr: localAttrs(start.attrs)}); err != nil {
		return nil, err
	}
	depth := 1
	for depth > 0 {
		tok, err := c.dec.Token()
		if err != nil {
			return nil, unexpected(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			tok = xml.StartElement{Name: xml.Name{Local: t.Name.Local}, Attr: localAttrs(t.Attr)}
		case xml.EndElement:
			depth--
			tok = xml.EndElement{Name: xml.Name{Local: t.Name.Local}}
		case xml.ProcInst, xml.Directive:
			continue
		}
		if err := enc.EncodeToken(xml.CopyToken(tok)); err != nil {
			return nil, err
		}
	}
	c.depth--
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func localAttrs(attrs []xml.Attr) []xml.Attr {
	out := make([]xml.Attr, 0, len(attrs))
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		out = append(out, xml.Attr{Name: xml.Name{Local: a.Name.Local}, Value: a.Value})
	}
	return out
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
