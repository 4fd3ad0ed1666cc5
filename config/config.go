// Package config provides the configuration schema and loader for the
// decoder: a YAML file (gopkg.in/yaml.v3) supplying defaults, overridden
// by pflag command-line flags for the larger option surface the
// decoder itself exposes.
package config

import "github.com/kho/lvrec/lm"

// Config is the root configuration structure. Fields map directly to
// the recognized options named in spec.md §6.
type Config struct {
	Network NetworkConfig `yaml:"network"`
	Search  SearchConfig  `yaml:"search"`
	Lattice LatticeConfig `yaml:"lattice"`
	Files   FilesConfig   `yaml:"files"`
}

// NetworkConfig controls lexicon network construction.
type NetworkConfig struct {
	// StartWord/EndWord are the dictionary labels bracketing every
	// utterance (e.g. "<s>"/"</s>").
	StartWord string `yaml:"start_word"`
	EndWord   string `yaml:"end_word"`

	// SpModelLabel/SilModelLabel name the short-pause and silence HMMs
	// used when UseSpSilDict is set.
	SpModelLabel  string `yaml:"sp_model_label"`
	SilModelLabel string `yaml:"sil_model_label"`

	// UseSpSilDict selects the three-pronunciation-variant (base/sp/sil)
	// dictionary convention.
	UseSpSilDict bool `yaml:"use_sp_sil_dict"`
}

// SearchConfig controls decoder search parameters; field names mirror
// search.Config's so overrides can be applied by name.
type SearchConfig struct {
	NTok         int        `yaml:"n_tok"`
	BeamWidth    lm.Weight  `yaml:"beam_width"`
	RelBeamWidth lm.Weight  `yaml:"rel_beam_width"`
	WeBeamWidth  lm.Weight  `yaml:"we_beam_width"`
	ZsBeamWidth  lm.Weight  `yaml:"zs_beam_width"`
	FastLmlaBeam lm.Weight  `yaml:"fast_lmla_beam"`
	MaxModel     int        `yaml:"max_model"`
	InsPen       lm.Weight  `yaml:"ins_pen"`
	AcScale      float32    `yaml:"ac_scale"`
	PronScale    float32    `yaml:"pron_scale"`
	LmScale      float32    `yaml:"lm_scale"`
	ModelAlign   bool       `yaml:"model_align"`
}

// LatticeConfig controls optional lattice generation.
type LatticeConfig struct {
	LatGen       bool    `yaml:"lat_gen"`
	LatOutForm   string  `yaml:"lat_out_form"`
	LatPruneBeam lm.Weight `yaml:"lat_prune_beam"`
	LatPruneAPS  float64 `yaml:"lat_prune_aps"`
}

// FilesConfig controls per-utterance input/output file naming and
// optional diagnostics.
type FilesConfig struct {
	// LatfileMask/LabfileMask are HTK-style %-substitution patterns
	// mapping a segment/utterance name to its lattice/label output path.
	LatfileMask string `yaml:"latfile_mask"`
	LabfileMask string `yaml:"labfile_mask"`

	// AlignMLF names a reference MLF for best-align diagnostics. It is
	// loaded from YAML and the align_mlf flag, but nothing in this
	// module reads it: decoding always runs a free search.
	AlignMLF string `yaml:"align_mlf"`
}
