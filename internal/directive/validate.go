package directive

import "fmt"

// ValidateTokens rejects tokens that would break the rendered file's
// line/statement structure. Directive names and values themselves are not
// checked against nginx's grammar.
func ValidateTokens(tokens []string) error {
	if len(tokens) == 0 {
		return fmt.Errorf("directive must not be empty")
	}
	for _, tok := range tokens {
		if tok == "" {
			return fmt.Errorf("directive %q has an empty token", tokens[0])
		}
		if !validTokenValue(tok) {
			return fmt.Errorf("directive %q has a token with control characters", tokens[0])
		}
	}
	return nil
}

// ValidHostName reports whether name is usable as a server_name value and in
// the strict host check expression.
func ValidHostName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isHostByte(name[i]) {
			return false
		}
	}
	return true
}

func isHostByte(b byte) bool {
	if b >= '0' && b <= '9' {
		return true
	}
	if b >= 'A' && b <= 'Z' {
		return true
	}
	if b >= 'a' && b <= 'z' {
		return true
	}
	switch b {
	case '-', '.', '_', '*', ':', '[', ']':
		return true
	default:
		return false
	}
}

func validTokenValue(value string) bool {
	for i := 0; i < len(value); i++ {
		b := value[i]
		if b == '\r' || b == '\n' || b == 0x7f {
			return false
		}
		if b < 0x20 && b != '\t' {
			return false
		}
	}
	return true
}
