package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// Config is the parsed, user-authored input document.
//
// Server field values keep the loosely typed shape produced by the decoder
// (yaml.MapSlice, []any, string, bool, numbers). Compile turns them into the
// closed model in model.go.
type Config struct {
	// Servers keeps document order; it drives upstream naming and the order
	// of generated server blocks.
	Servers []ServerSection

	HTTPRawOptions    any
	HTTPRawOptionsSet bool

	// UnknownKeys lists top-level keys other than servers/http_raw_options.
	UnknownKeys []string
}

// ServerSection is one entry of the servers mapping.
type ServerSection struct {
	Name   string
	Fields yaml.MapSlice
}

// Parse decodes a YAML (or JSON) input document.
func Parse(input []byte) (*Config, error) {
	norm := normalizeInput(input)
	var root any
	if err := yaml.UnmarshalWithOptions(norm, &root, yaml.UseOrderedMap()); err != nil {
		return nil, &Error{Kind: KindDocument, Msg: fmt.Sprintf("parse document: %v", err)}
	}
	return fromTree(root)
}

// Load reads and parses the document at path. Files ending in .hcl are read
// with ParseHCL; everything else is treated as YAML/JSON.
//
// A missing file is reported with an error wrapping fs.ErrNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".hcl") {
		return ParseHCL(data, path)
	}
	return Parse(data)
}

func fromTree(root any) (*Config, error) {
	cfg := &Config{}
	if root == nil {
		return cfg, nil
	}
	top, ok := root.(yaml.MapSlice)
	if !ok {
		return nil, &Error{Kind: KindDocument, Msg: "document must be a mapping"}
	}

	for _, item := range top {
		key := keyString(item.Key)
		switch key {
		case "servers":
			servers, err := parseServers(item.Value)
			if err != nil {
				return nil, err
			}
			cfg.Servers = servers
		case "http_raw_options":
			cfg.HTTPRawOptions = item.Value
			cfg.HTTPRawOptionsSet = item.Value != nil
		default:
			cfg.UnknownKeys = append(cfg.UnknownKeys, key)
		}
	}
	return cfg, nil
}

func parseServers(v any) ([]ServerSection, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(yaml.MapSlice)
	if !ok {
		return nil, &Error{Kind: KindType, Field: "servers", Msg: "servers must be a mapping of server name to server description"}
	}

	seen := make(map[string]struct{}, len(m))
	out := make([]ServerSection, 0, len(m))
	for _, item := range m {
		name := keyString(item.Key)
		if strings.TrimSpace(name) == "" {
			return nil, &Error{Kind: KindMissingField, Field: "servers", Msg: "server name must not be empty"}
		}
		if _, dup := seen[name]; dup {
			return nil, &Error{Kind: KindDocument, Field: "servers." + name, Msg: fmt.Sprintf("duplicate server %q", name)}
		}
		seen[name] = struct{}{}

		var fields yaml.MapSlice
		switch body := item.Value.(type) {
		case nil:
		case yaml.MapSlice:
			fields = body
		default:
			return nil, &Error{Kind: KindType, Field: "servers." + name, Msg: fmt.Sprintf("servers.%s must be a mapping", name)}
		}
		out = append(out, ServerSection{Name: name, Fields: fields})
	}
	return out, nil
}

func keyString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	if k == nil {
		return ""
	}
	return fmt.Sprint(k)
}

// Validate checks whether the config compiles.
func Validate(cfg *Config) error {
	_, err := Compile(cfg)
	return err
}

var errNilConfig = errors.New("nil config")
