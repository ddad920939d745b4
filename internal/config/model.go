package config

const (
	DefaultStaticLocation   = "/static"
	DefaultUpstreamLocation = "/"

	// TLSAutoValue selects automatic certificate issuance.
	TLSAutoValue = "auto"
)

// Compiled is the validated, closed model of an input document.
type Compiled struct {
	Servers []Server

	// HTTPRawOptions holds http-level override lines split into tokens.
	HTTPRawOptions [][]string

	Warnings []string
}

// Server is one validated servers entry.
type Server struct {
	// Name is the servers mapping key; it is echoed as a comment in output.
	Name string
	// ServerName is the virtual host's domain.
	ServerName      string
	TLS             TLS
	CheckHostHeader bool

	RawOptions  [][]string
	StaticFiles []StaticMount
	Upstreams   []UpstreamSpec
}

type TLSMode uint8

const (
	// TLSAuto defers certificate issuance to an external ACME client.
	TLSAuto TLSMode = iota
	// TLSDisabled serves plaintext HTTP only.
	TLSDisabled
	// TLSCertificates uses certificate files named in the document.
	TLSCertificates
)

func (m TLSMode) String() string {
	switch m {
	case TLSAuto:
		return "auto"
	case TLSDisabled:
		return "disabled"
	case TLSCertificates:
		return "certificates"
	default:
		return "unknown"
	}
}

type TLS struct {
	Mode TLSMode
	// Certificates is non-empty only for TLSCertificates.
	Certificates []Certificate
}

// Enabled reports whether the server gets an HTTPS listener.
func (t TLS) Enabled() bool { return t.Mode != TLSDisabled }

// Certificate names files relative to the nginx certificate directory.
type Certificate struct {
	Certificate string
	Key         string
	RootChain   string
}

type StaticMount struct {
	Path     string
	Location string
	SPA      string
	Index    string
}

type UpstreamType string

const (
	UpstreamHTTP  UpstreamType = "http"
	UpstreamUWSGI UpstreamType = "uwsgi"
)

// upstreamSchemes is checked in order against the upstream url.
var upstreamSchemes = []UpstreamType{UpstreamHTTP, UpstreamUWSGI}

// UpstreamSpec is one backend as declared by a server.
type UpstreamSpec struct {
	// Name is empty for structured entries without an explicit name.
	Name string
	// Bare marks the plain URL string form.
	Bare     bool
	Location string
	Type     UpstreamType
	// Address is the url with its scheme prefix removed.
	Address string
}
