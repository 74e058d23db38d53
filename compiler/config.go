package compiler

import (
	"embed"
	"encoding/json"
	"strings"

	"github.com/tidwall/jsonc"

	sberrors "judgesandbox/errors"
)

//go:embed backends/*.json
var backendFS embed.FS

// Config is a registry entry keyed by language tag ("c.gcc", "cpp.g++").
// It is immutable once loaded.
type Config struct {
	Suffix  string   `json:"suffix"`
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Timeout int      `json:"timeout"`
}

var registry map[string]Config

func init() {
	registry = make(map[string]Config)

	entries, err := backendFS.ReadDir("backends")
	if err != nil {
		panic("compiler: embedded backends directory missing: " + err.Error())
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		lang := strings.TrimSuffix(name, ".json")

		raw, err := backendFS.ReadFile("backends/" + name)
		if err != nil {
			panic("compiler: reading embedded backend " + name + ": " + err.Error())
		}

		dec := json.NewDecoder(strings.NewReader(string(jsonc.ToJSON(raw))))
		dec.DisallowUnknownFields()

		var cfg Config
		if err := dec.Decode(&cfg); err != nil {
			panic("compiler: malformed backend config " + name + ": " + err.Error())
		}

		registry[lang] = cfg
	}
}

// ForLanguage returns the registered Config for lang, or
// ErrUnknownLanguage if none is registered.
func ForLanguage(lang string) (Config, error) {
	cfg, ok := registry[lang]
	if !ok {
		return Config{}, sberrors.WrapWithDetail(sberrors.ErrUnknownLanguage, sberrors.ErrConfiguration, "compiler.ForLanguage", lang)
	}
	return cfg, nil
}
