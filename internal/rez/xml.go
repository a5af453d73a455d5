package rez

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/jward/mclens/internal/ast"
)

// sectionOf maps resource element names to their Rez section.
var sectionOf = map[string]string{
	"string":        SectionStrings,
	"drawable":      SectionDrawables,
	"bitmap":        SectionDrawables,
	"drawable-list": SectionDrawables,
	"animation":     SectionDrawables,
	"layout":        SectionLayouts,
	"menu":          SectionMenus,
	"menu2":         SectionMenus,
	"checkbox-menu": SectionMenus,
	"action-menu":   SectionMenus,
	"font":          SectionFonts,
	"jsonData":      SectionJsonData,
}

var (
	idAttrRe          = regexp.MustCompile(`\bid\s*=\s*"([^"]*)"`)
	personalityAttrRe = regexp.MustCompile(`\bpersonality\s*=\s*"([^"]*)"`)
	atRefRe           = regexp.MustCompile(`@(\w+)\.(\w+)`)
	wordRe            = regexp.MustCompile(`[^\s]+`)
)

// ParseXML extracts entries and references from an XML resource file.
func ParseXML(path string, src []byte) (*Doc, error) {
	doc := &Doc{Path: path}
	lines := newLineIndex(src)
	dec := xml.NewDecoder(bytes.NewReader(src))
	for {
		start := int(dec.InputOffset())
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var se *xml.SyntaxError
			if errors.As(err, &se) {
				return nil, &ast.ParseError{File: path, Line: se.Line, Col: 1, Msg: se.Msg}
			}
			return nil, err
		}
		end := int(dec.InputOffset())
		raw := src[start:end]
		switch t := tok.(type) {
		case xml.StartElement:
			if section, ok := sectionOf[t.Name.Local]; ok {
				if m := idAttrRe.FindSubmatchIndex(raw); m != nil && m[3] > m[2] {
					name := string(raw[m[2]:m[3]])
					doc.Entries = append(doc.Entries, Entry{
						Section: section,
						ID:      lines.ident(name, start+m[2], start+m[3]),
					})
				}
			}
			doc.personalityRefs(lines, raw, start)
			doc.atRefs(lines, raw, start)
		case xml.CharData:
			doc.atRefs(lines, raw, start)
		}
	}
	return doc, nil
}

func (d *Doc) atRefs(lines *lineIndex, raw []byte, base int) {
	for _, m := range atRefRe.FindAllSubmatchIndex(raw, -1) {
		d.Refs = append(d.Refs, Ref{
			Section: string(raw[m[2]:m[3]]),
			ID:      lines.ident(string(raw[m[4]:m[5]]), base+m[4], base+m[5]),
		})
	}
}

// personalityRefs handles `personality="a Barrel:b"`. A barrel prefix is
// not part of the identifier.
func (d *Doc) personalityRefs(lines *lineIndex, raw []byte, base int) {
	m := personalityAttrRe.FindSubmatchIndex(raw)
	if m == nil {
		return
	}
	value := raw[m[2]:m[3]]
	for _, w := range wordRe.FindAllIndex(value, -1) {
		word := string(value[w[0]:w[1]])
		off := base + m[2] + w[0]
		if i := strings.LastIndexByte(word, ':'); i >= 0 {
			off += i + 1
			word = word[i+1:]
		}
		if word == "" {
			continue
		}
		d.Refs = append(d.Refs, Ref{
			Section: SectionStyles,
			ID:      lines.ident(word, off, off+len(word)),
		})
	}
}
