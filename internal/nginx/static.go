package nginx

import (
	"github.com/nuetzliches/nginxgen/internal/config"
	"github.com/nuetzliches/nginxgen/internal/directive"
)

// StaticLocations returns one location block per mount, in input order.
func StaticLocations(mounts []config.StaticMount) []directive.Directive {
	out := make([]directive.Directive, 0, len(mounts))
	for _, m := range mounts {
		out = append(out, staticLocation(m))
	}
	return out
}

func staticLocation(m config.StaticMount) directive.Directive {
	var body []directive.Directive
	if m.SPA != "" {
		body = []directive.Directive{
			directive.Statement("root", m.Path),
			directive.Statement("try_files", "$uri", m.SPA),
		}
	} else {
		body = []directive.Directive{directive.Statement("alias", m.Path)}
		if m.Index != "" {
			body = append(body, directive.Statement("index", m.Index))
		}
	}
	return directive.Block([]string{"location", m.Location}, body)
}
