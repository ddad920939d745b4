package directive

import (
	"bytes"
	"io"
	"strings"
)

const indentStep = 2

// Render writes dirs to w, prefixing every line with indent spaces.
// Nested block children are rendered two spaces deeper than their parent.
func Render(w io.Writer, dirs []Directive, indent int) error {
	var b bytes.Buffer
	writeDirectives(&b, dirs, indent)
	_, err := w.Write(b.Bytes())
	return err
}

// Format renders dirs starting at indent 0.
func Format(dirs []Directive) []byte {
	var b bytes.Buffer
	writeDirectives(&b, dirs, 0)
	return b.Bytes()
}

func writeDirectives(b *bytes.Buffer, dirs []Directive, indent int) {
	pad := strings.Repeat(" ", indent)
	for _, d := range dirs {
		switch d.Kind {
		case KindComment:
			b.WriteString(pad)
			b.WriteString(strings.Join(d.Tokens, " "))
			b.WriteByte('\n')
		case KindBlock:
			b.WriteString(pad)
			b.WriteString(strings.Join(d.Tokens, " "))
			b.WriteString(" {\n")
			writeDirectives(b, d.Children, indent+indentStep)
			b.WriteString(pad)
			b.WriteString("}\n")
		default:
			b.WriteString(pad)
			b.WriteString(strings.Join(d.Tokens, " "))
			b.WriteString(";\n")
		}
	}
}
