package input

import (
	"fmt"
	"os"

	"github.com/biogo/hts/fai"
)

// ChromLengths reads the sequence lengths of a FASTA index (.fai)
func ChromLengths(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FASTA index: %w", err)
	}
	defer f.Close()
	idx, err := fai.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read FASTA index %s: %w", path, err)
	}
	out := make(map[string]int, len(idx))
	for name, rec := range idx {
		out[name] = rec.Length
	}
	return out, nil
}
