// Package directive models nginx configuration output as a tree of
// statements, blocks and comments, and renders that tree as text.
package directive

// CommentMarker is the leading token of a comment directive.
const CommentMarker = "#"

// Kind distinguishes the three directive shapes.
type Kind uint8

const (
	KindStatement Kind = iota
	KindBlock
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindStatement:
		return "statement"
	case KindBlock:
		return "block"
	case KindComment:
		return "comment"
	default:
		return "unknown"
	}
}

// Directive is one configuration statement, block or comment.
//
// Children is only meaningful for KindBlock. A block with no children still
// renders as an empty "{ }" pair.
type Directive struct {
	Kind     Kind
	Tokens   []string
	Children []Directive
}

// Statement returns a simple statement, e.g. Statement("gzip", "on").
func Statement(tokens ...string) Directive {
	return Directive{Kind: KindStatement, Tokens: tokens}
}

// Block returns a block directive whose header is tokens.
func Block(tokens []string, children []Directive) Directive {
	if children == nil {
		children = []Directive{}
	}
	return Directive{Kind: KindBlock, Tokens: tokens, Children: children}
}

// Comment returns a comment directive. The marker is prepended.
func Comment(text ...string) Directive {
	tokens := make([]string, 0, len(text)+1)
	tokens = append(tokens, CommentMarker)
	tokens = append(tokens, text...)
	return Directive{Kind: KindComment, Tokens: tokens}
}

// IsBlock reports whether d carries nested children.
func (d Directive) IsBlock() bool { return d.Kind == KindBlock }

// IsComment reports whether d is a comment.
func (d Directive) IsComment() bool { return d.Kind == KindComment }

// Name returns the leading token, or "" for an empty directive.
func (d Directive) Name() string {
	if len(d.Tokens) == 0 {
		return ""
	}
	return d.Tokens[0]
}

// Find returns the first top-level directive in dirs named name.
func Find(dirs []Directive, name string) (Directive, bool) {
	for _, d := range dirs {
		if d.Kind != KindComment && d.Name() == name {
			return d, true
		}
	}
	return Directive{}, false
}

// FindAll returns every top-level directive in dirs named name, in order.
func FindAll(dirs []Directive, name string) []Directive {
	var out []Directive
	for _, d := range dirs {
		if d.Kind != KindComment && d.Name() == name {
			out = append(out, d)
		}
	}
	return out
}
