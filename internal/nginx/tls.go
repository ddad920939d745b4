package nginx

import (
	"path"

	"github.com/nuetzliches/nginxgen/internal/config"
	"github.com/nuetzliches/nginxgen/internal/directive"
)

// AutoCertificate returns the certificate paths an ACME client (certbot
// layout) writes for domain.
func AutoCertificate(domain string) config.Certificate {
	return config.Certificate{
		Certificate: "live/" + domain + "/fullchain.pem",
		Key:         "live/" + domain + "/privkey.pem",
		RootChain:   "live/" + domain + "/chain.pem",
	}
}

// CertificateDirectives returns the ssl_certificate group for one
// certificate record.
func CertificateDirectives(c config.Certificate) []directive.Directive {
	out := []directive.Directive{
		directive.Statement("ssl_certificate", path.Join(certDir, c.Certificate)),
		directive.Statement("ssl_certificate_key", path.Join(certDir, c.Key)),
	}
	if c.RootChain != "" {
		out = append(out, directive.Statement("ssl_trusted_certificate", path.Join(certDir, c.RootChain)))
	}
	return out
}

// tlsContent resolves a server's TLS mode into server-specific directives.
// acmeDomain is non-empty when the server requested automatic issuance.
func tlsContent(srv config.Server) (dirs []directive.Directive, acmeDomain string) {
	switch srv.TLS.Mode {
	case config.TLSDisabled:
		return nil, ""
	case config.TLSAuto:
		dirs = CertificateDirectives(AutoCertificate(srv.ServerName))
		dirs = append(dirs, directive.Block(
			[]string{"location", acmeChallengeLoc},
			[]directive.Directive{directive.Statement("root", acmeWebroot)},
		))
		return dirs, srv.ServerName
	default:
		for _, c := range srv.TLS.Certificates {
			dirs = append(dirs, CertificateDirectives(c)...)
		}
		return dirs, ""
	}
}
