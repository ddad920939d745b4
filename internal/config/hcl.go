package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ParseHCL decodes an input document written as HCL attributes:
//
//	servers = {
//	  app = {
//	    server_name = "example.com"
//	    tls         = false
//	    upstream    = "http://127.0.0.1:8000"
//	  }
//	}
//	http_raw_options = ["gzip off"]
//
// HCL objects are unordered, so servers are emitted in key order.
func ParseHCL(input []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(normalizeInput(input), filename)
	if diags.HasErrors() {
		return nil, &Error{Kind: KindDocument, Msg: fmt.Sprintf("parse %s: %s", filename, diags.Error())}
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, &Error{Kind: KindDocument, Msg: fmt.Sprintf("decode %s: %s", filename, diags.Error())}
	}

	vals := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, &Error{Kind: KindDocument, Field: name, Msg: fmt.Sprintf("evaluate %s: %s", name, diags.Error())}
		}
		vals[name] = v
	}

	// Round-trip through JSON so HCL documents share the YAML decode path.
	doc := cty.EmptyObjectVal
	if len(vals) > 0 {
		doc = cty.ObjectVal(vals)
	}
	js, err := ctyjson.SimpleJSONValue{Value: doc}.MarshalJSON()
	if err != nil {
		return nil, &Error{Kind: KindDocument, Msg: fmt.Sprintf("convert %s: %v", filename, err)}
	}
	return Parse(js)
}
