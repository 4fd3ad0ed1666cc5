package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kho/lvrec/lvrecerr"
	"gopkg.in/yaml.v3"
)

// validOutFormChars are the lat_out_form field letters spec.md §6
// recognizes; anything else is a ConfigError.
const validOutFormChars = "ABtvaldmr"

// Load reads the YAML configuration file at path and returns a
// validated Config.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, lvrecerr.New(lvrecerr.ConfigError, path, err)
	}
	defer f.Close()
	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the
// result; useful in tests where configs come from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := defaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, lvrecerr.New(lvrecerr.ConfigError, "decode yaml", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// defaultConfig returns a Config with spec.md §6's named defaults
// (n_tok=32; start_word/end_word "<s>"/"</s>"; ac, pron and lm scales
// 1; everything else zero/disabled) so a YAML file only needs to name
// the fields it overrides.
func defaultConfig() *Config {
	return &Config{
		Network: NetworkConfig{
			StartWord: "<s>",
			EndWord:   "</s>",
		},
		Search: SearchConfig{
			NTok:      32,
			AcScale:   1,
			PronScale: 1,
			LmScale:   1,
		},
	}
}

// Validate checks cfg for internal consistency, returning a
// *lvrecerr.Error of kind ConfigError naming every problem found
// joined together, or nil.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Network.StartWord == "" {
		problems = append(problems, "network.start_word is required")
	}
	if cfg.Network.EndWord == "" {
		problems = append(problems, "network.end_word is required")
	}
	if cfg.Network.UseSpSilDict {
		if cfg.Network.SpModelLabel == "" {
			problems = append(problems, "network.sp_model_label is required when use_sp_sil_dict is set")
		}
		if cfg.Network.SilModelLabel == "" {
			problems = append(problems, "network.sil_model_label is required when use_sp_sil_dict is set")
		}
	}
	if cfg.Search.NTok <= 0 {
		problems = append(problems, "search.n_tok must be positive")
	}
	if cfg.Lattice.LatGen {
		for _, c := range cfg.Lattice.LatOutForm {
			if !strings.ContainsRune(validOutFormChars, c) {
				problems = append(problems, fmt.Sprintf("lattice.lat_out_form contains unrecognized field %q", c))
			}
		}
		if cfg.Lattice.LatPruneAPS < 0 {
			problems = append(problems, "lattice.lat_prune_aps must not be negative")
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return lvrecerr.New(lvrecerr.ConfigError, "", fmt.Errorf("%s", strings.Join(problems, "; ")))
}
