package lm

import (
	"bytes"
	"encoding/gob"
	"strings"
	"testing"
)

// arpaText is the textual ARPA rendering of simpleTrigramLM, used to
// check that FromARPA agrees with building the same n-grams directly
// through a Builder.
const arpaText = `\data\
ngram 1=4
ngram 2=2
ngram 3=2

\1-grams:
-99	<s>	-1
-0.01	</s>	0
-2	a	-1
-4	b	-2

\2-grams:
-1	<s> a	-0.5
-2	a b	-1

\3-grams:
-1.5	<s> a b
-0.001	a b </s>

\end\
`

func TestFromARPA(t *testing.T) {
	model, err := FromARPA(strings.NewReader(arpaText), 0)
	if err != nil {
		t.Fatalf("FromARPA failed: %v", err)
	}
	if err := checkModel(model); err != nil {
		t.Errorf("check model failed with error %v", err)
	}
	sentTest(model, simpleTrigramSents, t)
}

func TestFromARPAFile(t *testing.T) {
	model, err := FromARPAFile("testdata/simple.3gram.arpa", 0)
	if err != nil {
		t.Fatalf("FromARPAFile failed: %v", err)
	}
	if err := checkModel(model); err != nil {
		t.Errorf("check model failed with error %v", err)
	}
	sentTest(model, simpleTrigramSents, t)
}

func TestFromARPABadHeader(t *testing.T) {
	if _, err := FromARPA(strings.NewReader("not an arpa file\n"), 0); err == nil {
		t.Error("expected an error for a malformed ARPA header, got nil")
	}
}

func TestFromGobRoundTrip(t *testing.T) {
	model, err := FromARPA(strings.NewReader(arpaText), 0)
	if err != nil {
		t.Fatalf("FromARPA failed: %v", err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(*model); err != nil {
		t.Fatalf("gob encode failed: %v", err)
	}

	restored, err := FromGob(&buf)
	if err != nil {
		t.Fatalf("FromGob failed: %v", err)
	}
	if err := checkModel(restored); err != nil {
		t.Errorf("check model failed with error %v", err)
	}
	sentTest(restored, simpleTrigramSents, t)
}
