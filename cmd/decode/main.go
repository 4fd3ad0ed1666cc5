// Command decode is the LVCSR decoder entry point: it loads a
// pronunciation dictionary, an HMM inventory, and a back-off language
// model, builds the lexicon network once, then runs the token-passing
// search over one utterance per line of a script file, emitting a
// 1-best label and (optionally) an HTK-dialect lattice per utterance.
//
// Grounded structurally (not in content) on the teacher's
// cmd/scorelm/scorelm.go: the same cpuprofile/memprofile pprof flag
// pair, glog.Fatal on unrecoverable build errors, and an
// easy.Timed-wrapped processing loop ending in a one-line summary.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/kho/easy"
	"github.com/kho/lvrec/config"
	"github.com/kho/lvrec/dict"
	"github.com/kho/lvrec/hmm"
	"github.com/kho/lvrec/lexnet"
	"github.com/kho/lvrec/lm"
	"github.com/kho/lvrec/lmla"
	"github.com/kho/lvrec/lvrecerr"
	"github.com/kho/lvrec/search"
	"github.com/kho/lvrec/stats"
	"github.com/kho/lvrec/trace"
	"github.com/kho/word"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
)

// lmlaCacheSize is the per-look-ahead-node cache passed to
// lexnet.Build's AssignLmlaIndices; it is not one of spec.md §6's
// named decode-time tunables (it shapes the network build, not the
// search), so it stays a flag of its own rather than riding in Config.
var lmlaCacheSize = pflag.Int("lmla_cache_size", 4, "LM look-ahead round-robin cache entries per node")

func main() {
	configPath := pflag.String("config", "", "YAML decoder configuration")
	dictPath := pflag.String("dict", "", "pronunciation dictionary")
	hmmsPath := pflag.String("hmms", "", "HMM inventory")
	lmPath := pflag.String("lm", "", "language model (.arpa[.gz], .gob, or binary)")
	lmHashScale := pflag.Float64("lm_hash_scale", 1.5, "ARPA load-time hash table sizing factor")
	scpPath := pflag.String("scp", "", "utterance script: one \"name scorefile\" pair per line")
	outDir := pflag.String("out_dir", ".", "base directory for latfile_mask/labfile_mask substitution")
	cpuprofile := pflag.String("cpuprofile", "", "path to write a CPU profile")
	memprofile := pflag.String("memprofile", "", "path to write a heap profile")
	overrides := config.Register(pflag.CommandLine)
	pflag.Parse()

	if *cpuprofile != "" {
		w := easy.MustCreate(*cpuprofile)
		pprof.StartCPUProfile(w)
		defer func() {
			pprof.StopCPUProfile()
			w.Close()
		}()
	}
	if *memprofile != "" {
		defer func() {
			w := easy.MustCreate(*memprofile)
			pprof.WriteHeapProfile(w)
			w.Close()
		}()
	}

	if *configPath == "" || *dictPath == "" || *hmmsPath == "" || *lmPath == "" || *scpPath == "" {
		glog.Fatal("decode: -config, -dict, -hmms, -lm, and -scp are all required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		glog.Fatal(err)
	}
	overrides.Apply(cfg)
	if err := config.Validate(cfg); err != nil {
		glog.Fatal(err)
	}

	d := dict.New()
	if err := dict.LoadFile(*dictPath, d); err != nil {
		glog.Fatal(lvrecerr.New(lvrecerr.DictStructureError, *dictPath, err))
	}
	if cfg.Network.UseSpSilDict {
		d.ExpandSpSil(cfg.Network.SpModelLabel, cfg.Network.SilModelLabel)
	}

	hmms := hmm.NewSet()
	if err := hmm.LoadFile(*hmmsPath, d.Phones, hmms); err != nil {
		glog.Fatal(lvrecerr.New(lvrecerr.ResourceMissing, *hmmsPath, err))
	}

	net, err := lexnet.Build(d, hmms, lexnet.Options{
		StartWord:     cfg.Network.StartWord,
		EndWord:       cfg.Network.EndWord,
		UseSpSilDict:  cfg.Network.UseSpSilDict,
		SpLabel:       cfg.Network.SpModelLabel,
		SilLabel:      cfg.Network.SilModelLabel,
		LmlaCacheSize: *lmlaCacheSize,
	})
	if err != nil {
		glog.Fatal(wrapNetworkErr(err))
	}
	glog.Infof("lexicon network: %d nodes", net.NumNodes())

	model, mmapFile, err := loadLM(*lmPath, *lmHashScale)
	if err != nil {
		glog.Fatal(lvrecerr.New(lvrecerr.LmParseError, *lmPath, err))
	}
	if mmapFile != nil {
		defer mmapFile.Close()
	}
	lmSrc := lmla.NewBackOffSource(model, wordOfPronInLmVocab(d, net, model))

	searchCfg := search.Config{
		NTok:         cfg.Search.NTok,
		BeamWidth:    cfg.Search.BeamWidth,
		RelBeamWidth: cfg.Search.RelBeamWidth,
		WeBeamWidth:  cfg.Search.WeBeamWidth,
		ZsBeamWidth:  cfg.Search.ZsBeamWidth,
		MaxModel:     cfg.Search.MaxModel,
		InsPen:       cfg.Search.InsPen,
		AcScale:      cfg.Search.AcScale,
		PronScale:    cfg.Search.PronScale,
		LmScale:      cfg.Search.LmScale,
		FastLmlaBeam: cfg.Search.FastLmlaBeam,
	}
	var searchOpts []search.Option
	if cfg.Search.ModelAlign {
		searchOpts = append(searchOpts, search.WithModelAlignment())
	}

	shutdown, err := stats.InitMeterProvider("lvrec-decode")
	if err != nil {
		glog.Warningf("metrics disabled: %v", err)
		shutdown = nil
	} else {
		defer shutdown(context.Background())
	}
	collector := stats.NewCollector(0)
	var instruments *stats.Instruments
	if shutdown != nil {
		if instruments, err = stats.NewInstruments(otel.GetMeterProvider(), collector); err != nil {
			glog.Warningf("metric instruments disabled: %v", err)
			instruments = nil
		}
	}

	utterances, err := loadSCP(*scpPath)
	if err != nil {
		glog.Fatal(err)
	}

	var numUtterances, numWords int
	elapsed := easy.Timed(func() {
		for _, u := range utterances {
			n, err := decodeOne(u, net, hmms, lmSrc, searchCfg, searchOpts, d, cfg, *outDir, collector, instruments)
			if err != nil {
				glog.Errorf("%s: %v", u.name, err)
				continue
			}
			numUtterances++
			numWords += n
		}
	})
	glog.Infof("decoded %d utterances, %d words in %v (%.2f utt/s)",
		numUtterances, numWords, elapsed, float64(numUtterances)*float64(time.Second)/float64(elapsed))

	snap := collector.Snapshot(net.Tree)
	fmt.Printf("utterances=%d avg_tokens_per_set=%.3f avg_active_per_frame=%.3f activations=%d deactivations=%d lmla_hits=%d lmla_misses=%d prune_starvations=%d\n",
		snap.Utterances, snap.AvgTokensPerSet, snap.AvgActivePerFrame,
		snap.Activations, snap.Deactivations, snap.LmlaCacheHits, snap.LmlaCacheMisses, snap.PruneStarvations)
}

// vocabModel is the slice of lm.Model wordOfPronInLmVocab needs;
// narrowed from lm.IterableModel so it can be exercised with a small
// fake in tests instead of a full IterableModel.
type vocabModel interface {
	Vocab() (vocab *word.Vocab, bos, eos string, bosId, eosId word.Id)
}

// wordOfPronInLmVocab remaps net.WordOfPron -- word.Ids in the
// dictionary's own word.Vocab (d.Words), since lexnet is built from
// dict alone -- into the language model's independently interned
// word.Vocab, the shape lmla.NewBackOffSource requires. A word absent
// from the LM vocabulary maps to word.NIL, the model's own OOV
// convention.
func wordOfPronInLmVocab(d *dict.Dict, net *lexnet.Net, model vocabModel) []word.Id {
	lmVocab, _, _, _, _ := model.Vocab()
	out := make([]word.Id, len(net.WordOfPron))
	for i, w := range net.WordOfPron {
		out[i] = lmVocab.IdOf(d.Words.StringOf(w))
	}
	return out
}

// loadLM dispatches on path's extension: ARPA text (optionally
// gzipped), a gob-encoded Hashed, or a mmapped Hashed/Sorted binary.
// file is non-nil only for the mmapped case and must be closed by the
// caller once decoding is done.
func loadLM(path string, hashScale float64) (model lm.IterableModel, file *lm.MappedFile, err error) {
	switch {
	case strings.HasSuffix(path, ".arpa") || strings.HasSuffix(path, ".arpa.gz"):
		m, err := lm.FromARPAFile(path, hashScale)
		return m, nil, err
	case strings.HasSuffix(path, ".gob") || strings.HasSuffix(path, ".gob.gz"):
		m, err := lm.FromGobFile(path)
		return m, nil, err
	default:
		_, m, f, err := lm.FromBinaryAny(path)
		return m, f, err
	}
}

// wrapNetworkErr classifies a lexnet.Build failure into the lvrecerr
// Kind cmd-level callers branch on.
func wrapNetworkErr(err error) error {
	switch err.(type) {
	case *lexnet.PronIdOverflow:
		return lvrecerr.New(lvrecerr.NetworkTooLarge, "", err)
	case *lexnet.MissingModel, *lexnet.BadSpModel:
		return lvrecerr.New(lvrecerr.ResourceMissing, "", err)
	default:
		return lvrecerr.New(lvrecerr.ConfigError, "", err)
	}
}

// utterance is one line of the -scp script file.
type utterance struct {
	name      string
	scoreFile string
}

// loadSCP reads the "name scorefile" script format, one utterance per
// line, the same bufio.Scanner+strings.Fields idiom dict.Load and
// hmm.Load use.
func loadSCP(path string) ([]utterance, error) {
	f, err := easy.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []utterance
	in := bufio.NewScanner(f)
	lineNo := 0
	for in.Scan() {
		lineNo++
		line := strings.TrimSpace(in.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s:%d: expected \"name scorefile\"", path, lineNo)
		}
		out = append(out, utterance{name: fields[0], scoreFile: fields[1]})
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeOne runs the search to completion over one utterance's
// precomputed acoustic scores and writes its 1-best label (and
// optional lattice) to cfg.Files's mask patterns under outDir.
func decodeOne(u utterance, net *lexnet.Net, hmms *hmm.Set, lmSrc lmla.Source, searchCfg search.Config, searchOpts []search.Option, d *dict.Dict, cfg *config.Config, outDir string, collector *stats.Collector, instruments *stats.Instruments) (numWords int, err error) {
	table, err := hmm.LoadScoreTableFile(u.scoreFile)
	if err != nil {
		return 0, err
	}
	scorer := &hmm.TableScorer{Table: table}
	dec := search.New(net, hmms, lmSrc, scorer, searchCfg, searchOpts...)

	hitsBefore, missesBefore := net.Tree.CacheHits, net.Tree.CacheMisses
	start := time.Now()
	for t := 0; t < len(table); t++ {
		dec.ProcessFrame()
	}
	latency := time.Since(start)

	_, ok := dec.Final()
	starved := !ok
	if starved {
		collector.RecordPruneStarvation()
	}

	// dec is fresh per utterance, so its Stats already is this
	// utterance's delta.
	collector.RecordUtterance(dec.Stats, latency)
	if instruments != nil {
		hits := net.Tree.CacheHits - hitsBefore
		misses := net.Tree.CacheMisses - missesBefore
		instruments.Publish(context.Background(), dec.Stats, hits, misses, latency.Seconds(), starved)
	}

	if starved {
		return 0, lvrecerr.New(lvrecerr.RuntimePruneStarvation, u.name, fmt.Errorf("no surviving token reached the end node"))
	}

	tr, ok := trace.Best1FromFinal(dec, net)
	if !ok {
		return 0, fmt.Errorf("no 1-best hypothesis")
	}
	if mask := cfg.Files.LabfileMask; mask != "" {
		if err := writeLabel(outDir, mask, u.name, tr, d.Words); err != nil {
			return 0, err
		}
	}

	if cfg.Lattice.LatGen {
		latCfg := trace.LatticeConfig{
			LmScale:   cfg.Search.LmScale,
			PronScale: cfg.Search.PronScale,
			InsPen:    cfg.Search.InsPen,
			PruneBeam: cfg.Lattice.LatPruneBeam,
			PruneAPS:  cfg.Lattice.LatPruneAPS,
			OutForm:   cfg.Lattice.LatOutForm,
		}
		lat, ok := trace.BuildLattice(dec, net, latCfg)
		if ok && cfg.Files.LatfileMask != "" {
			if err := writeLattice(outDir, cfg.Files.LatfileMask, u.name, lat, d.Words, latCfg); err != nil {
				return 0, err
			}
		}
	}

	return len(tr.Words), nil
}

// maskPath substitutes "%s" in mask with name, rooted under dir.
func maskPath(dir, mask, name string) string {
	return dir + string(os.PathSeparator) + strings.ReplaceAll(mask, "%s", name)
}

func writeLabel(outDir, mask, name string, tr trace.Transcription, vocab *word.Vocab) error {
	f, err := os.Create(maskPath(outDir, mask, name))
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, ws := range tr.Words {
		fmt.Fprintf(w, "%d %d %s %s\n", ws.Start, ws.End, vocab.StringOf(ws.Word), strconv.FormatFloat(float64(ws.Score), 'g', -1, 32))
	}
	return w.Flush()
}

func writeLattice(outDir, mask, name string, lat *trace.Lattice, vocab *word.Vocab, cfg trace.LatticeConfig) error {
	f, err := os.Create(maskPath(outDir, mask, name))
	if err != nil {
		return err
	}
	defer f.Close()
	if strings.ContainsRune(cfg.OutForm, 'B') {
		return trace.WriteBinary(lat, f)
	}
	return trace.WriteHTK(lat, f, vocab, cfg)
}
