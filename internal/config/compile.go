package config

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/nuetzliches/nginxgen/internal/directive"
)

// Compile validates cfg and returns the closed model. Validation stops at
// the first failure; the returned error is an *Error.
func Compile(cfg *Config) (Compiled, error) {
	if cfg == nil {
		return Compiled{}, &Error{Kind: KindDocument, Msg: errNilConfig.Error()}
	}

	var out Compiled
	for _, key := range cfg.UnknownKeys {
		out.Warnings = append(out.Warnings, fmt.Sprintf("unknown top-level key %q ignored", key))
	}

	out.Servers = make([]Server, 0, len(cfg.Servers))
	for _, sec := range cfg.Servers {
		srv, err := compileServer(sec)
		if err != nil {
			return Compiled{}, err
		}
		out.Servers = append(out.Servers, srv)
	}

	if cfg.HTTPRawOptionsSet {
		opts, err := compileRawOptions("http_raw_options", cfg.HTTPRawOptions)
		if err != nil {
			return Compiled{}, err
		}
		out.HTTPRawOptions = opts
	}

	var auto []Server
	for _, srv := range out.Servers {
		if srv.TLS.Mode == TLSAuto {
			auto = append(auto, srv)
		}
	}
	if len(auto) > 1 {
		names := make([]string, 0, len(auto))
		for _, srv := range auto {
			names = append(names, srv.Name)
		}
		last := auto[len(auto)-1]
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"servers %s request automatic TLS; the domain file handoff keeps only the last domain (%s)",
			strings.Join(names, ", "), last.ServerName))
	}

	return out, nil
}

func compileServer(sec ServerSection) (Server, error) {
	name := sec.Name
	prefix := "servers." + name
	srv := Server{
		Name:            name,
		CheckHostHeader: true,
		TLS:             TLS{Mode: TLSAuto},
	}

	var (
		tlsValue    any
		upstreamRaw any
	)
	for _, item := range sec.Fields {
		key := keyString(item.Key)
		field := prefix + "." + key
		if item.Value == nil {
			if !knownServerField(key) {
				return Server{}, errorf(KindUnknownField, field, "unknown option %s", field)
			}
			continue
		}

		switch key {
		case "server_raw_options":
			opts, err := compileRawOptions(field, item.Value)
			if err != nil {
				return Server{}, err
			}
			srv.RawOptions = append(srv.RawOptions, opts...)
		case "server_name":
			s, ok := item.Value.(string)
			if !ok {
				return Server{}, errorf(KindType, field, "%s must be a string", field)
			}
			if strings.TrimSpace(s) != "" && !directive.ValidHostName(s) {
				return Server{}, errorf(KindType, field, "%s %q is not a valid host name", field, s)
			}
			srv.ServerName = s
		case "static_files":
			mounts, err := compileStaticFiles(field, item.Value)
			if err != nil {
				return Server{}, err
			}
			srv.StaticFiles = append(srv.StaticFiles, mounts...)
		case "tls":
			tlsValue = item.Value
		case "check_host_header":
			b, ok := item.Value.(bool)
			if !ok {
				return Server{}, errorf(KindType, field, "%s must be a boolean value", field)
			}
			srv.CheckHostHeader = b
		case "upstream":
			upstreamRaw = item.Value
		default:
			return Server{}, errorf(KindUnknownField, field, "unknown option %s", field)
		}
	}

	if strings.TrimSpace(srv.ServerName) == "" {
		return Server{}, errorf(KindMissingField, prefix+".server_name", "%s.server_name is required", prefix)
	}

	tls, err := compileTLS(prefix+".tls", tlsValue)
	if err != nil {
		return Server{}, err
	}
	srv.TLS = tls

	if upstreamRaw != nil {
		ups, err := compileUpstreams(prefix+".upstream", upstreamRaw)
		if err != nil {
			return Server{}, err
		}
		srv.Upstreams = ups
	}
	return srv, nil
}

func knownServerField(key string) bool {
	switch key {
	case "server_raw_options", "server_name", "static_files", "tls", "check_host_header", "upstream":
		return true
	default:
		return false
	}
}

// compileRawOptions splits each line of a raw option sequence into tokens.
func compileRawOptions(field string, v any) ([][]string, error) {
	seq, ok := v.([]any)
	if !ok {
		return nil, errorf(KindType, field, "%s must be an array", field)
	}
	out := make([][]string, 0, len(seq))
	for i, entry := range seq {
		line, ok := entry.(string)
		if !ok {
			return nil, errorf(KindType, fmt.Sprintf("%s[%d]", field, i), "%s[%d] must be a string", field, i)
		}
		tokens := strings.Fields(line)
		if err := directive.ValidateTokens(tokens); err != nil {
			return nil, errorf(KindType, fmt.Sprintf("%s[%d]", field, i), "%s[%d]: %v", field, i, err)
		}
		out = append(out, tokens)
	}
	return out, nil
}

// compileStaticFiles accepts a bare path, a mount mapping, or a sequence of
// either.
func compileStaticFiles(field string, v any) ([]StaticMount, error) {
	entries, indexed := asEntries(v)
	out := make([]StaticMount, 0, len(entries))
	for i, entry := range entries {
		f := field
		if indexed {
			f = fmt.Sprintf("%s[%d]", field, i)
		}
		m, err := compileStaticMount(f, entry)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func compileStaticMount(field string, v any) (StaticMount, error) {
	switch d := v.(type) {
	case string:
		if strings.TrimSpace(d) == "" {
			return StaticMount{}, errorf(KindMissingField, field, "%s: path is required for static files", field)
		}
		if err := checkToken(field, d); err != nil {
			return StaticMount{}, err
		}
		return StaticMount{Path: d, Location: DefaultStaticLocation}, nil
	case yaml.MapSlice:
		var m StaticMount
		var spaSet, indexSet bool
		for _, item := range d {
			key := keyString(item.Key)
			if item.Value == nil {
				continue
			}
			s, isString := item.Value.(string)
			switch key {
			case "path":
				if !isString {
					return StaticMount{}, errorf(KindType, field+".path", "%s.path must be a string", field)
				}
				m.Path = s
			case "location":
				if !isString {
					return StaticMount{}, errorf(KindType, field+".location", "%s.location must be a string", field)
				}
				m.Location = s
			case "spa":
				if !isString {
					return StaticMount{}, errorf(KindType, field+".spa", "%s: spa must be a string", field)
				}
				m.SPA = s
				spaSet = s != ""
			case "index":
				if !isString {
					return StaticMount{}, errorf(KindType, field+".index", "%s.index must be a string", field)
				}
				m.Index = s
				indexSet = true
			default:
				return StaticMount{}, errorf(KindUnknownField, field+"."+key, "unknown option %s.%s", field, key)
			}
		}
		if m.Location == "" {
			return StaticMount{}, errorf(KindMissingField, field+".location", "%s: location is required for static files", field)
		}
		if m.Path == "" {
			return StaticMount{}, errorf(KindMissingField, field+".path", "%s: path is required for static files", field)
		}
		if spaSet && indexSet {
			return StaticMount{}, errorf(KindConflict, field, "%s: cannot use both spa and index options in static files", field)
		}
		for _, v := range []struct{ key, value string }{{"path", m.Path}, {"location", m.Location}, {"spa", m.SPA}} {
			if v.value == "" {
				continue
			}
			if err := checkToken(field+"."+v.key, v.value); err != nil {
				return StaticMount{}, err
			}
		}
		if m.Index != "" {
			// index may list several files, so spaces are allowed
			if err := directive.ValidateTokens([]string{m.Index}); err != nil || strings.TrimSpace(m.Index) == "" {
				return StaticMount{}, errorf(KindType, field+".index", "%s.index %q is not a valid index list", field, m.Index)
			}
		}
		return m, nil
	default:
		return StaticMount{}, errorf(KindType, field, "%s must be a path string or a mapping", field)
	}
}

func compileTLS(field string, v any) (TLS, error) {
	switch t := v.(type) {
	case nil:
		return TLS{Mode: TLSAuto}, nil
	case bool:
		if !t {
			return TLS{Mode: TLSDisabled}, nil
		}
		return TLS{Mode: TLSAuto}, nil
	case string:
		if t == TLSAutoValue {
			return TLS{Mode: TLSAuto}, nil
		}
		// YAML 1.1 boolean words; appconf files written for 1.1 parsers use them.
		switch strings.ToLower(t) {
		case "y", "yes", "on", "true":
			return TLS{Mode: TLSAuto}, nil
		case "n", "no", "off", "false":
			return TLS{Mode: TLSDisabled}, nil
		}
	case yaml.MapSlice:
		cert, err := compileCertificate(field, t)
		if err != nil {
			return TLS{}, err
		}
		return TLS{Mode: TLSCertificates, Certificates: []Certificate{cert}}, nil
	case []any:
		if len(t) == 0 {
			break
		}
		certs := make([]Certificate, 0, len(t))
		for i, entry := range t {
			rec, ok := entry.(yaml.MapSlice)
			if !ok {
				return TLS{}, errorf(KindTLSValue, field, "%s value is invalid", field)
			}
			cert, err := compileCertificate(fmt.Sprintf("%s[%d]", field, i), rec)
			if err != nil {
				return TLS{}, err
			}
			certs = append(certs, cert)
		}
		return TLS{Mode: TLSCertificates, Certificates: certs}, nil
	}
	return TLS{}, errorf(KindTLSValue, field, "%s value is invalid", field)
}

func compileCertificate(field string, rec yaml.MapSlice) (Certificate, error) {
	var c Certificate
	for _, item := range rec {
		key := keyString(item.Key)
		if item.Value == nil {
			continue
		}
		s, ok := item.Value.(string)
		if !ok {
			return Certificate{}, errorf(KindType, field+"."+key, "%s.%s must be a string", field, key)
		}
		switch key {
		case "certificate":
			c.Certificate = s
		case "key":
			c.Key = s
		case "root_chain":
			c.RootChain = s
		default:
			return Certificate{}, errorf(KindUnknownField, field+"."+key, "unknown option %s.%s", field, key)
		}
	}
	if c.Certificate == "" {
		return Certificate{}, errorf(KindMissingField, field+".certificate", "%s.certificate is required", field)
	}
	if c.Key == "" {
		return Certificate{}, errorf(KindMissingField, field+".key", "%s.key is required", field)
	}
	for _, v := range []struct{ key, value string }{{"certificate", c.Certificate}, {"key", c.Key}, {"root_chain", c.RootChain}} {
		if v.value == "" {
			continue
		}
		if err := checkToken(field+"."+v.key, v.value); err != nil {
			return Certificate{}, err
		}
	}
	return c, nil
}

// compileUpstreams accepts a bare URL, an upstream mapping, or a sequence of
// either.
func compileUpstreams(field string, v any) ([]UpstreamSpec, error) {
	entries, indexed := asEntries(v)
	out := make([]UpstreamSpec, 0, len(entries))
	for i, entry := range entries {
		f := field
		if indexed {
			f = fmt.Sprintf("%s[%d]", field, i)
		}
		up, err := compileUpstream(field, f, entry)
		if err != nil {
			return nil, err
		}
		out = append(out, up)
	}
	return out, nil
}

func compileUpstream(serverField, field string, v any) (UpstreamSpec, error) {
	var (
		up  UpstreamSpec
		url string
	)
	switch d := v.(type) {
	case string:
		up = UpstreamSpec{Bare: true, Location: DefaultUpstreamLocation}
		url = d
	case yaml.MapSlice:
		up.Location = DefaultUpstreamLocation
		for _, item := range d {
			key := keyString(item.Key)
			if item.Value == nil {
				continue
			}
			s, ok := item.Value.(string)
			if !ok {
				return UpstreamSpec{}, errorf(KindType, field+"."+key, "%s.%s must be a string", field, key)
			}
			switch key {
			case "name":
				up.Name = s
			case "url":
				url = s
			case "location":
				up.Location = s
			default:
				return UpstreamSpec{}, errorf(KindUnknownField, field+"."+key, "unknown option %s.%s", field, key)
			}
		}
		if url == "" {
			return UpstreamSpec{}, errorf(KindMissingField, field+".url", "%s.url is required", field)
		}
		if up.Name != "" {
			if err := directive.ValidateTokens([]string{up.Name}); err != nil || strings.ContainsAny(up.Name, " \t") {
				return UpstreamSpec{}, errorf(KindType, field+".name", "%s.name %q is not a valid upstream name", field, up.Name)
			}
		}
	default:
		return UpstreamSpec{}, errorf(KindType, field, "%s must be a url string or a mapping", field)
	}

	for _, scheme := range upstreamSchemes {
		p := string(scheme) + "://"
		if strings.HasPrefix(url, p) {
			up.Type = scheme
			up.Address = strings.TrimPrefix(url, p)
			if strings.TrimSpace(up.Address) == "" {
				return UpstreamSpec{}, errorf(KindUpstreamURL, field, "%s url has no address after %s", field, p)
			}
			if err := checkToken(field, up.Address); err != nil {
				return UpstreamSpec{}, err
			}
			if err := checkToken(field+".location", up.Location); err != nil {
				return UpstreamSpec{}, err
			}
			return up, nil
		}
	}
	return UpstreamSpec{}, errorf(KindUpstreamURL, field, "please prefix %s url with protocol name (http:// or uwsgi://)", serverField)
}

// checkToken rejects values that must render as exactly one directive token.
func checkToken(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errorf(KindMissingField, field, "%s must not be empty", field)
	}
	if err := directive.ValidateTokens([]string{value}); err != nil || strings.ContainsAny(value, " \t") {
		return errorf(KindType, field, "%s %q must be a single word without whitespace or control characters", field, value)
	}
	return nil
}

// asEntries normalizes a one-or-many field into a slice. indexed reports
// whether the document used the sequence form.
func asEntries(v any) ([]any, bool) {
	if seq, ok := v.([]any); ok {
		return seq, true
	}
	return []any{v}, false
}
