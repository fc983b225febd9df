package qix_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hupe1980/qix"
	"github.com/hupe1980/qix/model"
	"github.com/hupe1980/qix/source"
	"github.com/hupe1980/qix/source/recfile"
)

func Example() {
	dir, err := os.MkdirTemp("", "qix-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	dataPath := filepath.Join(dir, "cities.rec")
	w, err := recfile.Create(source.Paths{Data: dataPath, Offsets: qix.OffsetsPath(dataPath)}, model.KindPoint)
	if err != nil {
		log.Fatal(err)
	}
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			if _, err := w.Append(model.PointEnvelope(float64(x), float64(y)), nil); err != nil {
				log.Fatal(err)
			}
		}
	}
	if err := w.Close(); err != nil {
		log.Fatal(err)
	}

	idx, err := qix.Open(dataPath)
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	// The first search builds the index.
	hits, err := idx.Search(context.Background(), model.NewEnvelope(2.5, 2.5, 3.5, 3.5))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(idx.Status(), hits.Contains(33))
	// Output: fresh true
}
