package nginx

import "github.com/nuetzliches/nginxgen/internal/directive"

// HTTPSettings merges override lines into the baseline http settings.
//
// An override whose first token matches an existing entry replaces that
// entry in place; otherwise it is appended. include lines always append.
func HTTPSettings(overrides [][]string) []directive.Directive {
	settings := httpBaseline()
	for _, tokens := range overrides {
		if len(tokens) == 0 {
			continue
		}
		d := directive.Statement(tokens...)
		if tokens[0] == "include" {
			settings = append(settings, d)
			continue
		}
		replaced := false
		for i := range settings {
			if settings[i].Name() == tokens[0] {
				settings[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			settings = append(settings, d)
		}
	}
	return settings
}
