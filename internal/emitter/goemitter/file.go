package goemitter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/swagger2client/internal/emitter"
)

const generatedHeader = emitter.GeneratedMarker + "\n\n"

// file accumulates one Go source file and the imports its body uses.
type file struct {
	pkg     string
	body    strings.Builder
	imports map[string]bool
}

func newFile(pkg string) *file {
	return &file{pkg: pkg, imports: make(map[string]bool)}
}

func (f *file) use(path string) { f.imports[path] = true }

func (f *file) p(format string, args ...any) {
	fmt.Fprintf(&f.body, format, args...)
	f.body.WriteByte('\n')
}

func (f *file) blank() { f.body.WriteByte('\n') }

// doc writes a comment block. The first line starts with name when name is set.
func (f *file) doc(indent, name, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	lines := strings.Split(text, "\n")
	if name != "" && !strings.HasPrefix(lines[0], name+" ") {
		lines[0] = name + ": " + lines[0]
	}
	for _, l := range lines {
		l = strings.TrimRight(l, " \t\r")
		if l == "" {
			f.p("%s//", indent)
			continue
		}
		f.p("%s// %s", indent, strings.ReplaceAll(l, "*/", "* /"))
	}
}

func (f *file) bytes() []byte {
	var b strings.Builder
	b.WriteString(generatedHeader)
	fmt.Fprintf(&b, "package %s\n", f.pkg)
	if len(f.imports) > 0 {
		paths := make([]string, 0, len(f.imports))
		for p := range f.imports {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		b.WriteString("\nimport (\n")
		for _, p := range paths {
			fmt.Fprintf(&b, "\t%q\n", p)
		}
		b.WriteString(")\n")
	}
	if f.body.Len() > 0 {
		b.WriteByte('\n')
		b.WriteString(strings.TrimRight(f.body.String(), "\n"))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
