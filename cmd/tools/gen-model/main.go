// Command gen-model writes the placeholder coefficient artifact used
// until a trained model is supplied.
package main

import (
	"flag"
	"log"

	"github.com/glucolumin/glucolumin/internal/model"
)

func main() {
	out := flag.String("out", "model/glucose_linear_v5.json", "Output artifact path")
	flag.Parse()

	artifact := model.Placeholder()
	if err := model.WriteArtifact(artifact, *out); err != nil {
		log.Fatalf("Failed to write artifact: %v", err)
	}
	log.Printf("Wrote %s artifact to %s", artifact.Version, *out)
}
