package config

// Register adds pflag overrides for every field Config carries, long-
// option style, mirroring the teacher's flag.Var(&weight, "lm.log0",
// ...) registration for lm.Weight (lm/basic.go) but scaled from one
// option to the full surface spec.md §6 names. Call Register, run
// pflag.Parse, then call Apply(cfg) so flags only actually passed on
// the command line override the YAML-loaded defaults.

import (
	"strconv"

	"github.com/kho/lvrec/lm"
	"github.com/spf13/pflag"
)

// lmWeightValue adapts lm.Weight (a float32) to the pflag.Value
// interface, the way lm/basic.go adapts it to flag.Value for
// "-lm.log0" via (*Weight).String/(*Weight).Set.
type lmWeightValue struct{ w lm.Weight }

func (v *lmWeightValue) String() string { return strconv.FormatFloat(float64(v.w), 'g', -1, 32) }
func (v *lmWeightValue) Set(s string) error {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return err
	}
	v.w = lm.Weight(f)
	return nil
}
func (v *lmWeightValue) Type() string { return "weight" }

func newLmWeightFlag(fs *pflag.FlagSet, name, usage string) *lmWeightValue {
	v := &lmWeightValue{}
	fs.Var(v, name, usage)
	return v
}

// Overrides holds the flag values pflag.Parse populates; Apply copies
// only the ones the user actually set onto a *Config.
type Overrides struct {
	fs *pflag.FlagSet

	startWord, endWord               *string
	spModelLabel, silModelLabel      *string
	useSpSilDict                     *bool
	nTok, maxModel                   *int
	beamWidth, relBeamWidth          *lmWeightValue
	weBeamWidth, zsBeamWidth         *lmWeightValue
	fastLmlaBeam, insPen             *lmWeightValue
	acScale, pronScale, lmScale      *float64
	modelAlign                       *bool
	latGen                           *bool
	latOutForm                       *string
	latPruneBeam                     *lmWeightValue
	latPruneAPS                      *float64
	latfileMask, labfileMask         *string
	alignMLF                         *string
}

// Register adds one flag per Config field to fs (typically
// pflag.CommandLine), returning an Overrides used after fs.Parse to
// apply only the flags actually set.
func Register(fs *pflag.FlagSet) *Overrides {
	o := &Overrides{fs: fs}
	o.startWord = fs.String("start_word", "", "utterance bracketing start-word label")
	o.endWord = fs.String("end_word", "", "utterance bracketing end-word label")
	o.spModelLabel = fs.String("sp_model_label", "", "short-pause HMM label")
	o.silModelLabel = fs.String("sil_model_label", "", "silence HMM label")
	o.useSpSilDict = fs.Bool("use_sp_sil_dict", false, "dictionary carries explicit sp/sil variants")
	o.nTok = fs.Int("n_tok", 0, "max tokens per HMM state")
	o.maxModel = fs.Int("max_model", 0, "max active Model instances before dynamic beam tightening")
	o.beamWidth = newLmWeightFlag(fs, "beam_width", "main pruning beam")
	o.relBeamWidth = newLmWeightFlag(fs, "rel_beam_width", "relative-token pruning beam")
	o.weBeamWidth = newLmWeightFlag(fs, "we_beam_width", "word-end pruning beam")
	o.zsBeamWidth = newLmWeightFlag(fs, "zs_beam_width", "ZS-layer pruning beam")
	o.fastLmlaBeam = newLmWeightFlag(fs, "fast_lmla_beam", "fall back to coarse LM look-ahead below this beam")
	o.insPen = newLmWeightFlag(fs, "ins_pen", "per-word insertion penalty")
	o.acScale = fs.Float64("ac_scale", 0, "acoustic score scale")
	o.pronScale = fs.Float64("pron_scale", 0, "pronunciation-probability score scale")
	o.lmScale = fs.Float64("lm_scale", 0, "LM score scale")
	o.modelAlign = fs.Bool("model_align", false, "record per-model alignment traceback")
	o.latGen = fs.Bool("lat_gen", false, "generate word lattices")
	o.latOutForm = fs.String("lat_out_form", "", "lattice output fields, subset of "+validOutFormChars)
	o.latPruneBeam = newLmWeightFlag(fs, "lat_prune_beam", "lattice density pruning beam")
	o.latPruneAPS = fs.Float64("lat_prune_aps", 0, "max lattice arcs per second")
	o.latfileMask = fs.String("latfile_mask", "", "lattice output filename pattern")
	o.labfileMask = fs.String("labfile_mask", "", "label output filename pattern")
	o.alignMLF = fs.String("align_mlf", "", "reference MLF for best-align diagnostics")
	return o
}

// Apply copies every flag the user actually passed (fs.Changed) onto
// cfg, leaving YAML-loaded values in place otherwise.
func (o *Overrides) Apply(cfg *Config) {
	set := o.fs.Changed
	if set("start_word") {
		cfg.Network.StartWord = *o.startWord
	}
	if set("end_word") {
		cfg.Network.EndWord = *o.endWord
	}
	if set("sp_model_label") {
		cfg.Network.SpModelLabel = *o.spModelLabel
	}
	if set("sil_model_label") {
		cfg.Network.SilModelLabel = *o.silModelLabel
	}
	if set("use_sp_sil_dict") {
		cfg.Network.UseSpSilDict = *o.useSpSilDict
	}
	if set("n_tok") {
		cfg.Search.NTok = *o.nTok
	}
	if set("max_model") {
		cfg.Search.MaxModel = *o.maxModel
	}
	if set("beam_width") {
		cfg.Search.BeamWidth = o.beamWidth.w
	}
	if set("rel_beam_width") {
		cfg.Search.RelBeamWidth = o.relBeamWidth.w
	}
	if set("we_beam_width") {
		cfg.Search.WeBeamWidth = o.weBeamWidth.w
	}
	if set("zs_beam_width") {
		cfg.Search.ZsBeamWidth = o.zsBeamWidth.w
	}
	if set("fast_lmla_beam") {
		cfg.Search.FastLmlaBeam = o.fastLmlaBeam.w
	}
	if set("ins_pen") {
		cfg.Search.InsPen = o.insPen.w
	}
	if set("ac_scale") {
		cfg.Search.AcScale = float32(*o.acScale)
	}
	if set("pron_scale") {
		cfg.Search.PronScale = float32(*o.pronScale)
	}
	if set("lm_scale") {
		cfg.Search.LmScale = float32(*o.lmScale)
	}
	if set("model_align") {
		cfg.Search.ModelAlign = *o.modelAlign
	}
	if set("lat_gen") {
		cfg.Lattice.LatGen = *o.latGen
	}
	if set("lat_out_form") {
		cfg.Lattice.LatOutForm = *o.latOutForm
	}
	if set("lat_prune_beam") {
		cfg.Lattice.LatPruneBeam = o.latPruneBeam.w
	}
	if set("lat_prune_aps") {
		cfg.Lattice.LatPruneAPS = *o.latPruneAPS
	}
	if set("latfile_mask") {
		cfg.Files.LatfileMask = *o.latfileMask
	}
	if set("labfile_mask") {
		cfg.Files.LabfileMask = *o.labfileMask
	}
	if set("align_mlf") {
		cfg.Files.AlignMLF = *o.alignMLF
	}
}
