package lexnet

// Network construction: spec.md §4.1 steps 1-7. Grounded structurally
// on original_source/HTKLVRec/HLVNet.c's layer-by-layer build order
// (phone-set scan, connector sets, then per-layer Model node
// materialization) but re-architected into Go arena/index form per
// lm.Builder's own flat-slice-addressing idiom.

import (
	"sort"

	"github.com/kho/lvrec/dict"
	"github.com/kho/lvrec/hmm"
	"github.com/kho/word"
)

// Options configures a build.
type Options struct {
	StartWord, EndWord string
	UseSpSilDict       bool
	SpLabel, SilLabel  string
	LmlaCacheSize      int // per look-ahead-node cache size, passed to lmla.NewTree
}

type connKey struct{ A, B dict.PhoneId }

type builder struct {
	net  *Net
	dict *dict.Dict
	hmms *hmm.Set
	opts Options

	ab map[connKey]LexNodeIdx // AB(a,b)
	yz map[connKey]LexNodeIdx // YZ(y,z)
	sa map[connKey]LexNodeIdx // SA(z,a)
	zs map[connKey]LexNodeIdx // ZS(z,s)

	silPhone, spPhone dict.PhoneId
}

// Build runs the full step 1-9 algorithm (PronId and look-ahead index
// assignment live in pronid.go and lmlaidx.go) and returns the frozen
// network.
func Build(d *dict.Dict, hmms *hmm.Set, opts Options) (*Net, error) {
	b := &builder{
		net:  &Net{},
		dict: d,
		hmms: hmms,
		opts: opts,
		ab:   make(map[connKey]LexNodeIdx),
		yz:   make(map[connKey]LexNodeIdx),
		sa:   make(map[connKey]LexNodeIdx),
		zs:   make(map[connKey]LexNodeIdx),
	}
	b.silPhone = dict.PhoneId(d.Phones.IdOrAdd(opts.SilLabel))
	b.spPhone = dict.PhoneId(d.Phones.IdOrAdd(opts.SpLabel))

	a, z, sa, ab, yz, zs := b.scanPhoneSets()
	b.materializeConnectors(sa, ab, yz, zs)

	if err := b.buildLayerA(a, z); err != nil {
		return nil, err
	}
	if err := b.buildLayerZ(); err != nil {
		return nil, err
	}
	if err := b.buildSilenceLayer(); err != nil {
		return nil, err
	}
	if err := b.buildPrefixTree(); err != nil {
		return nil, err
	}
	if err := b.buildOnePhoneWords(); err != nil {
		return nil, err
	}
	if err := b.buildStartEnd(); err != nil {
		return nil, err
	}
	if err := AssignPronIds(b.net); err != nil {
		return nil, err
	}
	AssignLmlaIndices(b.net, opts.LmlaCacheSize)
	return b.net, nil
}

type phoneSet map[dict.PhoneId]bool

// scanPhoneSets is step 1: collect A, Z, and the four connector-pair
// sets from every dictionary pronunciation.
func (b *builder) scanPhoneSets() (a, z phoneSet, sa, ab, yz, zs map[connKey]bool) {
	a, z = phoneSet{}, phoneSet{}
	sa, ab, yz, zs = map[connKey]bool{}, map[connKey]bool{}, map[connKey]bool{}, map[connKey]bool{}
	a[b.silPhone] = true
	z[b.silPhone] = true

	b.dict.Each(func(_ word.Id, prons []dict.Pronunciation) {
		for _, p := range prons {
			if len(p.Phones) == 0 {
				continue
			}
			first, last := p.Phones[0], p.Phones[len(p.Phones)-1]
			a[first] = true
			z[last] = true
			if len(p.Phones) >= 2 {
				ab[connKey{p.Phones[0], p.Phones[1]}] = true
				yz[connKey{p.Phones[len(p.Phones)-2], last}] = true
			}
		}
	})
	for zz := range z {
		for aa := range a {
			sa[connKey{zz, aa}] = true
		}
		zs[connKey{zz, b.spPhone}] = true
		zs[connKey{zz, b.silPhone}] = true
	}
	return
}

func (b *builder) materializeConnectors(sa, ab, yz, zs map[connKey]bool) {
	for k := range sa {
		b.sa[k] = b.net.alloc(LexNode{Layer: LayerSA, Kind: KindConnector, LC: k.A, RC: k.B})
	}
	for k := range ab {
		b.ab[k] = b.net.alloc(LexNode{Layer: LayerAB, Kind: KindConnector, LC: k.A, RC: k.B})
	}
	for k := range yz {
		b.yz[k] = b.net.alloc(LexNode{Layer: LayerYZ, Kind: KindConnector, LC: k.A, RC: k.B})
	}
	for k := range zs {
		b.zs[k] = b.net.alloc(LexNode{Layer: LayerZS, Kind: KindConnector, LC: k.A, RC: k.B})
	}
}

// buildLayerA is step 2: materialize z-a+b for every SA(z,a)/AB(a,b)
// pair sharing a, linking SA -> node -> AB.
func (b *builder) buildLayerA(a, z phoneSet) error {
	for saKey, saIdx := range b.sa {
		zPhone, aPhone := saKey.A, saKey.B
		for abKey, abIdx := range b.ab {
			if abKey.A != aPhone {
				continue
			}
			bPhone := abKey.B
			id, ok := b.hmms.FindTriphone(zPhone, aPhone, bPhone)
			if !ok {
				continue // (z,a,b) triple unused by any actual pronunciation path
			}
			node := b.net.alloc(LexNode{Layer: LayerA, Kind: KindModel, Hmm: id})
			b.net.link(saIdx, node)
			b.net.link(node, abIdx)
		}
	}
	return nil
}

// buildLayerZ is step 3: materialize y-z+a for every YZ(y,z)/ZS(z,a)
// pair sharing z, linking YZ -> node -> ZS.
func (b *builder) buildLayerZ() error {
	for yzKey, yzIdx := range b.yz {
		yPhone, zPhone := yzKey.A, yzKey.B
		for zsKey, zsIdx := range b.zs {
			if zsKey.A != zPhone {
				continue
			}
			aPhone := zsKey.B
			id, ok := b.hmms.FindTriphone(yPhone, zPhone, aPhone)
			if !ok {
				continue
			}
			node := b.net.alloc(LexNode{Layer: LayerZ, Kind: KindModel, Hmm: id})
			b.net.link(yzIdx, node)
			b.net.link(node, zsIdx)
		}
	}
	return nil
}

// buildSilenceLayer is step 4: between ZS(z,s) and the SA layer,
// insert a sil or sp Model node. sil fans out to every SA(sil,a) for
// a != sil; sp connects only to SA(z,s).
func (b *builder) buildSilenceLayer() error {
	silId, ok := b.hmms.FindHmm(b.opts.SilLabel)
	if !ok {
		return &MissingModel{Label: b.opts.SilLabel}
	}
	spId, ok := b.hmms.FindHmm(b.opts.SpLabel)
	if !ok {
		return &MissingModel{Label: b.opts.SpLabel}
	}
	if b.opts.UseSpSilDict {
		if b.hmms.Hmm(spId).IsTee() {
			return &BadSpModel{Label: b.opts.SpLabel}
		}
	}

	for zsKey, zsIdx := range b.zs {
		zPhone, sPhone := zsKey.A, zsKey.B
		switch sPhone {
		case b.silPhone:
			silNode := b.net.alloc(LexNode{Layer: LayerSIL, Kind: KindModel, Hmm: silId})
			b.net.link(zsIdx, silNode)
			for saKey, saIdx := range b.sa {
				if saKey.A == b.silPhone && saKey.B != b.silPhone {
					b.net.link(silNode, saIdx)
				}
			}
			_ = zPhone
		case b.spPhone:
			spNode := b.net.alloc(LexNode{Layer: LayerSIL, Kind: KindModel, Hmm: spId})
			b.net.link(zsIdx, spNode)
			if saIdx, ok := b.sa[connKey{zPhone, sPhone}]; ok {
				b.net.link(spNode, saIdx)
				// Layer ZS special step (spec §4.3): with an sp/sil
				// dictionary, a second edge bypasses spNode entirely so
				// propagate's ordinary fan-out generates a token that
				// skips the sp Model the way a tee transition would.
				// BadSpModel above forbids sp from also being tee
				// internally, since that would double the skip.
				if b.opts.UseSpSilDict {
					b.net.link(zsIdx, saIdx)
				}
			}
		}
	}
	return nil
}

// buildPrefixTree is step 5: for each pron with >= 2 phones, walk from
// AB(p1,p2) through interior triphones, reusing a Model child of the
// same HmmId if one already exists at this point (prefix sharing),
// terminate with a WordEnd node, then link to YZ(p_{n-1},p_n).
func (b *builder) buildPrefixTree() error {
	type job struct {
		pron dict.Pronunciation
		word word.Id
	}
	var jobs []job
	b.dict.Each(func(w word.Id, prons []dict.Pronunciation) {
		for _, p := range prons {
			if len(p.Phones) >= 2 {
				jobs = append(jobs, job{p, w})
			}
		}
	})
	// Deterministic order so PronId assignment (DFS order, step 8) is
	// reproducible across builds of the same dictionary.
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].word < jobs[j].word })

	for _, j := range jobs {
		phones := j.pron.Phones
		abIdx, ok := b.ab[connKey{phones[0], phones[1]}]
		if !ok {
			continue
		}
		cur := abIdx
		// phones[0] is scored by its layer-A Model and phones[n-1] by
		// its layer-Z Model; the AB and YZ connectors carry no HMM. Every
		// phone in between (index 1 .. n-2 inclusive) gets its own
		// context-dependent Model node, context (phones[i-1],
		// phones[i], phones[i+1]).
		for i := 1; i <= len(phones)-2; i++ {
			id, ok := b.hmms.FindTriphone(phones[i-1], phones[i], phones[i+1])
			if !ok {
				return &MissingModel{Label: "interior triphone"}
			}
			cur = b.findOrCreateChild(cur, id)
		}
		we := b.net.alloc(LexNode{Layer: LayerWE, Kind: KindWordEnd, Word: j.word, PronProb: float32(j.pron.Prob)})
		b.net.link(cur, we)
		yzIdx, ok := b.yz[connKey{phones[len(phones)-2], phones[len(phones)-1]}]
		if ok {
			b.net.link(we, yzIdx)
		}
	}
	return nil
}

// findOrCreateChild searches from's successors for an existing Model
// node of the given HmmId (prefix sharing); creates and links one if
// none exists.
func (b *builder) findOrCreateChild(from LexNodeIdx, id hmm.HmmId) LexNodeIdx {
	for _, s := range b.net.Nodes[from].Succ {
		child := b.net.Nodes[s]
		if child.Kind == KindModel && child.Hmm == id {
			return s
		}
	}
	node := b.net.alloc(LexNode{Layer: LayerBY, Kind: KindModel, Hmm: id})
	b.net.link(from, node)
	return node
}

// buildOnePhoneWords is step 6: for each phone p in a one-phone word
// and each context z, SA(z,p) -> WE -> YZ(z,p).
func (b *builder) buildOnePhoneWords() error {
	type onePhoneWord struct {
		phone dict.PhoneId
		word  word.Id
		prob  float64
	}
	var words []onePhoneWord
	b.dict.Each(func(w word.Id, prons []dict.Pronunciation) {
		for _, p := range prons {
			if len(p.Phones) == 1 {
				words = append(words, onePhoneWord{p.Phones[0], w, p.Prob})
			}
		}
	})
	sort.Slice(words, func(i, j int) bool { return words[i].word < words[j].word })

	for _, ow := range words {
		p := ow.phone
		for saKey, saIdx := range b.sa {
			if saKey.B != p {
				continue
			}
			z := saKey.A
			we := b.net.alloc(LexNode{Layer: LayerWE, Kind: KindWordEnd, Word: ow.word, PronProb: float32(ow.prob)})
			b.net.link(saIdx, we)
			if yzIdx, ok := b.yz[connKey{z, p}]; ok {
				b.net.link(we, yzIdx)
			}
		}
	}
	return nil
}

// buildStartEnd is step 7: wire the start-word Model->WordEnd pair
// into every SA connector, and every ZS connector into the end-word
// sink. Neither wiring checks phone context: the start word's WordEnd
// links to each SA whatever its left context, and each ZS reaches the
// sink whatever its right context.
func (b *builder) buildStartEnd() error {
	startId, ok := b.hmms.FindHmm(b.opts.StartWord)
	if !ok {
		return &MissingModel{Label: b.opts.StartWord}
	}
	startModel := b.net.alloc(LexNode{Layer: LayerA, Kind: KindModel, Hmm: startId})
	startWE := b.net.alloc(LexNode{Layer: LayerWE, Kind: KindWordEnd, Word: b.dict.Words.IdOrAdd(b.opts.StartWord), PronProb: 1})
	b.net.link(startModel, startWE)
	for _, saIdx := range b.sa {
		b.net.link(startWE, saIdx)
	}
	b.net.Start = startModel

	endId, ok := b.hmms.FindHmm(b.opts.EndWord)
	if !ok {
		return &MissingModel{Label: b.opts.EndWord}
	}
	// The null sink connector records the end word's start time for
	// trace-back; every ZS links to it (through sp/sil models first,
	// with an sp/sil dictionary), and a parallel Model+WordEnd records
	// the end word's own PronId.
	sink := b.net.alloc(LexNode{Layer: LayerSA, Kind: KindConnector})
	endModel := b.net.alloc(LexNode{Layer: LayerA, Kind: KindModel, Hmm: endId})
	endWE := b.net.alloc(LexNode{Layer: LayerWE, Kind: KindWordEnd, Word: b.dict.Words.IdOrAdd(b.opts.EndWord), PronProb: 1})
	b.net.link(sink, endModel)
	b.net.link(endModel, endWE)

	if b.opts.UseSpSilDict {
		silId, ok := b.hmms.FindHmm(b.opts.SilLabel)
		if !ok {
			return &MissingModel{Label: b.opts.SilLabel}
		}
		spId, ok := b.hmms.FindHmm(b.opts.SpLabel)
		if !ok {
			return &MissingModel{Label: b.opts.SpLabel}
		}
		silNode := b.net.alloc(LexNode{Layer: LayerSIL, Kind: KindModel, Hmm: silId})
		spNode := b.net.alloc(LexNode{Layer: LayerSIL, Kind: KindModel, Hmm: spId})
		b.net.link(silNode, sink)
		b.net.link(spNode, sink)
		for _, zsIdx := range b.zs {
			b.net.link(zsIdx, silNode)
			b.net.link(zsIdx, spNode)
		}
	} else {
		for _, zsIdx := range b.zs {
			b.net.link(zsIdx, sink)
		}
	}
	b.net.End = endWE
	return nil
}
