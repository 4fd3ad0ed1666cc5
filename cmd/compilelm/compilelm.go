package main

import (
	"encoding/gob"
	"flag"
	"github.com/golang/glog"
	"github.com/kho/easy"
	"github.com/kho/lvrec/lm"
	"os"
)

func main() {
	scale := flag.Float64("lm.scale", 1.5, "scale multiplier for deciding the hash table size")
	packedOut := flag.String("packed_out", "", "also write a 16-bit packed LM binary to this path")
	easy.ParseFlagsAndArgs(nil)

	model, err := lm.FromARPA(os.Stdin, *scale)
	if err != nil {
		glog.Fatal(err)
	}
	if err := gob.NewEncoder(os.Stdout).Encode(*model); err != nil {
		glog.Fatal(err)
	}
	if *packedOut != "" {
		if err := lm.WritePackedHashedFile(model, *packedOut); err != nil {
			glog.Fatal(err)
		}
	}
}
