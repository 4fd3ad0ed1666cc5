package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kho/lvrec/dict"
	"github.com/kho/lvrec/lexnet"
	"github.com/kho/word"
)

type fakeVocabModel struct{ vocab *word.Vocab }

func (m fakeVocabModel) Vocab() (*word.Vocab, string, string, word.Id, word.Id) {
	return m.vocab, "<s>", "</s>", m.vocab.IdOf("<s>"), m.vocab.IdOf("</s>")
}

func TestWordOfPronInLmVocabRemapsByLabel(t *testing.T) {
	d := dict.New()
	cat := d.Words.IdOrAdd("cat")
	dog := d.Words.IdOrAdd("dog")
	net := &lexnet.Net{WordOfPron: []word.Id{cat, dog}}

	lmVocab := word.NewVocab([]string{"<s>", "</s>", "cat"})
	model := fakeVocabModel{vocab: lmVocab}

	got := wordOfPronInLmVocab(d, net, model)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0] != lmVocab.IdOf("cat") {
		t.Errorf("cat: got %v, want %v", got[0], lmVocab.IdOf("cat"))
	}
	if got[1] != word.NIL {
		t.Errorf("dog (OOV in LM vocab): got %v, want word.NIL", got[1])
	}
}

func TestLoadSCP(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "utts.scp")
	if err := os.WriteFile(path, []byte("# comment\nutt1 a.scores\nutt2 b.scores\n\n"), 0o644); err != nil {
		t.Fatalf("writing scp: %v", err)
	}

	utts, err := loadSCP(path)
	if err != nil {
		t.Fatalf("loadSCP failed: %v", err)
	}
	if len(utts) != 2 || utts[0].name != "utt1" || utts[1].scoreFile != "b.scores" {
		t.Errorf("unexpected utterances: %+v", utts)
	}
}

func TestLoadSCPRejectsMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "utts.scp")
	if err := os.WriteFile(path, []byte("utt1 a.scores extra-field\n"), 0o644); err != nil {
		t.Fatalf("writing scp: %v", err)
	}

	if _, err := loadSCP(path); err == nil {
		t.Error("expected an error for a line with the wrong field count")
	}
}

func TestMaskPath(t *testing.T) {
	got := maskPath("/out", "lattices/%s.lat", "utt1")
	want := "/out" + string(os.PathSeparator) + "lattices/utt1.lat"
	if got != want {
		t.Errorf("maskPath = %q, want %q", got, want)
	}
}

func TestWrapNetworkErr(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{&lexnet.PronIdOverflow{Count: 1 << 30}, "NetworkTooLarge"},
		{&lexnet.MissingModel{Label: "sil"}, "ResourceMissing"},
		{&lexnet.BadSpModel{Label: "sp"}, "ResourceMissing"},
		{os.ErrNotExist, "ConfigError"},
	}
	for _, c := range cases {
		wrapped := wrapNetworkErr(c.err)
		if !strings.Contains(wrapped.Error(), c.kind) {
			t.Errorf("wrapNetworkErr(%v) = %q, want it to mention %q", c.err, wrapped.Error(), c.kind)
		}
	}
}
