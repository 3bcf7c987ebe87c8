package merkle

import (
	"bytes"
	"fmt"
)

// Tree is one cohort's commitment over an ordered leaf set. The root is
// immutable post-construction: changing membership or amounts means
// building a new tree (and a new cohort identity), never mutating this one.
type Tree struct {
	shape  Shape
	fanout int

	// levels[0] holds the leaf hashes; each later level holds the chunk
	// hashes of the one below. A single-leaf tree has one level and the
	// root is the leaf hash itself.
	levels [][][]byte
	root   []byte
}

func Build(shape Shape, leafHashes [][]byte) (*Tree, error) {
	fanout, err := shape.Fanout()
	if err != nil {
		return nil, err
	}
	level, err := cloneAndValidateLeaves(leafHashes)
	if err != nil {
		return nil, err
	}

	levels := [][][]byte{level}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+fanout-1)/fanout)
		for start := 0; start < len(level); start += fanout {
			end := start + fanout
			if end > len(level) {
				end = len(level)
			}
			next = append(next, ChildrenHash(level[start:end]))
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{
		shape:  shape,
		fanout: fanout,
		levels: levels,
		root:   cloneHash(level[0]),
	}, nil
}

func (t *Tree) Shape() Shape { return t.shape }

func (t *Tree) Root() []byte { return cloneHash(t.root) }

func (t *Tree) LeafCount() int { return len(t.levels[0]) }

// Proof returns the membership proof for the leaf at the given index: one
// sibling set per reduction level, outermost leaf level first. A
// single-leaf tree yields an empty proof.
func (t *Tree) Proof(leafIndex int) (Proof, error) {
	if leafIndex < 0 || leafIndex >= t.LeafCount() {
		return Proof{}, ErrInvalidIndex
	}
	proof := Proof{Shape: t.shape}
	index := leafIndex
	// The top level is the root; it contributes no siblings.
	for _, level := range t.levels[:len(t.levels)-1] {
		start := (index / t.fanout) * t.fanout
		end := start + t.fanout
		if end > len(level) {
			end = len(level)
		}
		siblings := make([][]byte, 0, end-start-1)
		for i := start; i < end; i++ {
			if i == index {
				continue
			}
			siblings = append(siblings, cloneHash(level[i]))
		}
		proof.Levels = append(proof.Levels, siblings)
		index /= t.fanout
	}
	return proof, nil
}

// VerifyProof recomputes the root from a leaf hash and its proof using the
// proof's tagged shape. Sibling order within a level does not matter; the
// reduction re-sorts every chunk before hashing.
func VerifyProof(leafHash []byte, proof Proof, expectedRoot []byte) (bool, error) {
	if err := validateHash(leafHash); err != nil {
		return false, err
	}
	if err := validateHash(expectedRoot); err != nil {
		return false, err
	}
	fanout, err := proof.Shape.Fanout()
	if err != nil {
		return false, err
	}

	current := cloneHash(leafHash)
	for i, siblings := range proof.Levels {
		if len(siblings) >= fanout {
			return false, fmt.Errorf("proof level %d: %w", i, ErrInvalidIndex)
		}
		children := make([][]byte, 0, len(siblings)+1)
		for j, sibling := range siblings {
			if err := validateHash(sibling); err != nil {
				return false, fmt.Errorf("proof level %d sibling %d: %w", i, j, err)
			}
			children = append(children, sibling)
		}
		children = append(children, current)
		current = ChildrenHash(children)
	}
	return bytes.Equal(current, expectedRoot), nil
}
