// Package xmlutil holds the small helpers shared by the alphabet, library and tree codecs.
package xmlutil

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ParseBool accepts yes/no, true/false, on/off and 1/0 in any case.
// ok is false when the text is not a recognized boolean.
func ParseBool(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "true", "on", "1", "y":
		return true, true
	case "no", "false", "off", "0", "n":
		return false, true
	}
	return false, false
}

// YesNo formats b the way all studio files store booleans.
func YesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Attr returns the trimmed value of attribute key, or "".
func Attr(el *etree.Element, key string) string {
	return strings.TrimSpace(el.SelectAttrValue(key, ""))
}

// HasAttr reports whether el carries attribute key.
func HasAttr(el *etree.Element, key string) bool {
	return el.SelectAttr(key) != nil
}

// BoolAttr reads a yes/no attribute, returning def when it is absent or unreadable.
func BoolAttr(el *etree.Element, key string, def bool) bool {
	v, ok := ParseBool(el.SelectAttrValue(key, ""))
	if !ok {
		return def
	}
	return v
}

// IntAttr reads an integer attribute. ok is false when absent or malformed.
func IntAttr(el *etree.Element, key string) (int, bool) {
	raw := Attr(el, key)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// FloatAttr reads a float attribute, returning def when absent or malformed.
func FloatAttr(el *etree.Element, key string, def float64) float64 {
	raw := Attr(el, key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}

// FormatFloat writes floats in their shortest round-trippable form.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// NewDocument creates a document with the XML declaration every studio file starts with.
func NewDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	return doc
}

// Bytes serializes doc with two-space indentation.
func Bytes(doc *etree.Document) ([]byte, error) {
	doc.Indent(2)
	return doc.WriteToBytes()
}

// SplitList splits a separator-delimited attribute value, dropping empty items.
func SplitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
