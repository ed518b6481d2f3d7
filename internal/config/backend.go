package config

import "git.home.luguber.info/inful/docs2static/internal/foundation/normalization"

// Site backend names accepted in backend.type.
const (
	BackendNone     = "none"
	BackendZensical = "zensical"
	BackendHugo     = "hugo"
)

var backendTypes = normalization.NewEnum("backend.type", map[string]string{
	BackendNone:     BackendNone,
	BackendZensical: BackendZensical,
	BackendHugo:     BackendHugo,
})

// NormalizeBackend maps user input to a backend name. Empty input selects
// none; unknown values yield an error listing the accepted names.
func NormalizeBackend(raw string) (string, error) {
	if normalization.Clean(raw) == "" {
		return BackendNone, nil
	}
	return backendTypes.Validate(raw)
}
