package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var initialisms = map[string]string{
	"api": "API", "ascii": "ASCII", "cpu": "CPU", "css": "CSS", "dns": "DNS", "eof": "EOF",
	"guid": "GUID", "html": "HTML", "http": "HTTP", "https": "HTTPS", "id": "ID", "ip": "IP",
	"json": "JSON", "sql": "SQL", "ssh": "SSH", "tcp": "TCP", "tls": "TLS", "ttl": "TTL",
	"udp": "UDP", "ui": "UI", "uid": "UID", "uri": "URI", "url": "URL", "utf8": "UTF8",
	"uuid": "UUID", "vm": "VM", "xml": "XML",
}

// Words splits an identifier-ish string on separators and case changes.
// "petStore_v2" yields [pet Store v2]; "HTTPServer" yields [HTTP Server].
func Words(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}
	rs := []rune(s)
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 && unicode.IsUpper(r) {
			prev := cur[len(cur)-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// Pascal converts s to an exported-style identifier. The result never starts with a digit.
func Pascal(s string) string {
	title := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	for _, w := range Words(s) {
		if up, ok := initialisms[strings.ToLower(w)]; ok {
			b.WriteString(up)
			continue
		}
		b.WriteString(title.String(w))
	}
	out := b.String()
	if out == "" {
		return ""
	}
	if unicode.IsDigit([]rune(out)[0]) {
		out = "N" + out
	}
	return out
}

// Camel is Pascal with a lower-case first word.
func Camel(s string) string {
	p := Pascal(s)
	if p == "" {
		return ""
	}
	first := Words(p)[0]
	if strings.ToUpper(first) == first {
		return strings.ToLower(first) + strings.TrimPrefix(p, first)
	}
	rs := []rune(p)
	return string(unicode.ToLower(rs[0])) + string(rs[1:])
}

// SplitOperationID splits "Group_Name" style operation ids into a group and a name.
// Ids without an underscore yield an empty group.
func SplitOperationID(id string) (group, name string) {
	if i := strings.Index(id, "_"); i > 0 && i < len(id)-1 {
		return id[:i], id[i+1:]
	}
	return "", id
}

// FallbackOperationName derives a name from the HTTP verb and the path segments.
// GET /pets/{petId}/toys yields GetPetsByPetIDToys.
func FallbackOperationName(method, path string) string {
	var b strings.Builder
	b.WriteString(Pascal(strings.ToLower(method)))
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			b.WriteString("By")
			b.WriteString(Pascal(strings.Trim(seg, "{}")))
			continue
		}
		b.WriteString(Pascal(seg))
	}
	return b.String()
}
