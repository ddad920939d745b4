package config

import "bytes"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// normalizeInput strips a UTF-8 BOM and folds CRLF/CR line endings to LF
// before decoding, so documents edited on Windows produce identical output.
func normalizeInput(in []byte) []byte {
	in = bytes.TrimPrefix(in, utf8BOM)
	if bytes.IndexByte(in, '\r') < 0 {
		return in
	}
	out := bytes.ReplaceAll(in, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(out, []byte("\r"), []byte("\n"))
}
