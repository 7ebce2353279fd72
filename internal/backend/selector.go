package backend

import (
	"fmt"
	"sort"

	"github.com/agentdeck/agentdeck/internal/config"
)

// constructors maps backend names to adapter constructors. The selector is a
// plain configuration-string-to-constructor mapping; adapters are built per
// call and never shared.
var constructors = map[string]func(*config.Config) Adapter{
	"gemini":   func(cfg *config.Config) Adapter { return NewGemini(cfg.Gemini.Dir) },
	"opencode": func(cfg *config.Config) Adapter { return NewOpencode(cfg.Opencode.Dir) },
	"crush":    func(cfg *config.Config) Adapter { return NewCrush(cfg.Crush.DB) },
	"codex":    func(cfg *config.Config) Adapter { return NewCodex(cfg.Codex.Dir) },
}

// Names returns the registered backend names, sorted.
func Names() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForName builds the adapter registered under name.
func ForName(name string, cfg *config.Config) (Adapter, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q (available: %v)", name, Names())
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return ctor(cfg), nil
}

// Active builds the adapter selected by the configuration.
func Active(cfg *config.Config) (Adapter, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return ForName(cfg.Backend, cfg)
}
