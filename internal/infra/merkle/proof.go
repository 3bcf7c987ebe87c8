package merkle

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Proof is the minimal ordered sibling material needed to recompute a root
// from one leaf hash: one sibling set per level, leaf level first. Narrow
// proofs carry one sibling per level; wide proofs carry up to 255.
type Proof struct {
	Shape  Shape
	Levels [][][]byte
}

func (p Proof) Len() int { return len(p.Levels) }

type proofJSON struct {
	Shape  Shape      `json:"shape"`
	Levels [][]string `json:"levels"`
}

func (p Proof) MarshalJSON() ([]byte, error) {
	out := proofJSON{Shape: p.Shape, Levels: make([][]string, len(p.Levels))}
	for i, level := range p.Levels {
		out.Levels[i] = make([]string, len(level))
		for j, sibling := range level {
			out.Levels[i][j] = hex.EncodeToString(sibling)
		}
	}
	return json.Marshal(out)
}

func (p *Proof) UnmarshalJSON(data []byte) error {
	var in proofJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if _, err := in.Shape.Fanout(); err != nil {
		return err
	}
	levels := make([][][]byte, len(in.Levels))
	for i, level := range in.Levels {
		levels[i] = make([][]byte, len(level))
		for j, sibling := range level {
			decoded, err := hex.DecodeString(sibling)
			if err != nil {
				return fmt.Errorf("proof level %d sibling %d: %w", i, j, err)
			}
			if err := validateHash(decoded); err != nil {
				return fmt.Errorf("proof level %d sibling %d: %w", i, j, err)
			}
			levels[i][j] = decoded
		}
	}
	p.Shape = in.Shape
	p.Levels = levels
	return nil
}
