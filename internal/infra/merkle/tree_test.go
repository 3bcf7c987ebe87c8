package merkle

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
)

func testLeafHashes(t *testing.T, n int) [][]byte {
	t.Helper()
	leaves := make([][]byte, n)
	for i := 0; i < n; i++ {
		var claimant [ClaimantSize]byte
		seed := sha256.Sum256(binary.BigEndian.AppendUint64(nil, uint64(i)))
		copy(claimant[:], seed[:])
		leaves[i] = Leaf{Claimant: claimant, Entitlements: uint64(i + 1)}.Hash()
	}
	return leaves
}

func fourLeafVector(t *testing.T) [][]byte {
	t.Helper()
	leaves := make([][]byte, 4)
	for i := range leaves {
		var claimant [ClaimantSize]byte
		for j := range claimant {
			claimant[j] = byte(i + 1)
		}
		leaves[i] = Leaf{Claimant: claimant, Entitlements: uint64(i + 1)}.Hash()
	}
	return leaves
}

func TestBuildGoldenRoots(t *testing.T) {
	leaves := fourLeafVector(t)

	narrow, err := Build(ShapeNarrow, leaves)
	if err != nil {
		t.Fatalf("build narrow: %v", err)
	}
	wantNarrow := "0eaf68e64cc6e9aeb55fac05aff19efb434c70dd2f92e5d9c29de5d1dd258d5d"
	if got := hex.EncodeToString(narrow.Root()); got != wantNarrow {
		t.Fatalf("narrow root drifted:\n got %s\nwant %s", got, wantNarrow)
	}

	wide, err := Build(ShapeWide, leaves)
	if err != nil {
		t.Fatalf("build wide: %v", err)
	}
	wantWide := "205287f91fccb1a4b3c91e9f2f7806dfa6a09018a327a5ec531b985e28eff792"
	if got := hex.EncodeToString(wide.Root()); got != wantWide {
		t.Fatalf("wide root drifted:\n got %s\nwant %s", got, wantWide)
	}
}

func TestBuildRejectsEmptyLeafSet(t *testing.T) {
	if _, err := Build(ShapeNarrow, nil); !errors.Is(err, ErrEmptyTree) {
		t.Fatalf("expected ErrEmptyTree, got %v", err)
	}
	if _, err := Build(ShapeWide, [][]byte{}); !errors.Is(err, ErrEmptyTree) {
		t.Fatalf("expected ErrEmptyTree, got %v", err)
	}
}

func TestBuildRejectsUnknownShape(t *testing.T) {
	if _, err := Build(Shape("balanced"), testLeafHashes(t, 2)); !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("expected ErrUnknownShape, got %v", err)
	}
}

func TestSingleLeafTrivialRoot(t *testing.T) {
	leaves := testLeafHashes(t, 1)
	for _, shape := range []Shape{ShapeNarrow, ShapeWide} {
		tree, err := Build(shape, leaves)
		if err != nil {
			t.Fatalf("build %s: %v", shape, err)
		}
		if !bytes.Equal(tree.Root(), leaves[0]) {
			t.Fatalf("%s: single-leaf root must equal the leaf hash", shape)
		}
		proof, err := tree.Proof(0)
		if err != nil {
			t.Fatalf("%s proof: %v", shape, err)
		}
		if proof.Len() != 0 {
			t.Fatalf("%s: single-leaf proof must be empty, got %d levels", shape, proof.Len())
		}
		ok, err := VerifyProof(leaves[0], proof, tree.Root())
		if err != nil || !ok {
			t.Fatalf("%s: single-leaf proof rejected: ok=%v err=%v", shape, ok, err)
		}
	}
}

func TestProofValidityEveryLeaf(t *testing.T) {
	for _, shape := range []Shape{ShapeNarrow, ShapeWide} {
		for _, n := range []int{1, 2, 3, 7, 17, 256, 300} {
			leaves := testLeafHashes(t, n)
			tree, err := Build(shape, leaves)
			if err != nil {
				t.Fatalf("build %s n=%d: %v", shape, n, err)
			}
			for i := 0; i < n; i++ {
				proof, err := tree.Proof(i)
				if err != nil {
					t.Fatalf("%s n=%d proof %d: %v", shape, n, i, err)
				}
				ok, err := VerifyProof(leaves[i], proof, tree.Root())
				if err != nil {
					t.Fatalf("%s n=%d verify %d: %v", shape, n, i, err)
				}
				if !ok {
					t.Fatalf("%s n=%d: proof for leaf %d rejected", shape, n, i)
				}
			}
		}
	}
}

func TestProofRejectsWrongLeaf(t *testing.T) {
	leaves := testLeafHashes(t, 17)
	tree, err := Build(ShapeWide, leaves)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	proof, err := tree.Proof(3)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	ok, err := VerifyProof(leaves[4], proof, tree.Root())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("proof for leaf 3 verified against leaf 4")
	}
}

func TestProofSurvivesJSONRoundTrip(t *testing.T) {
	leaves := testLeafHashes(t, 300)
	tree, err := Build(ShapeWide, leaves)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	proof, err := tree.Proof(123)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	encoded, err := json.Marshal(proof)
	if err != nil {
		t.Fatalf("marshal proof: %v", err)
	}
	var decoded Proof
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal proof: %v", err)
	}
	ok, err := VerifyProof(leaves[123], decoded, tree.Root())
	if err != nil || !ok {
		t.Fatalf("round-tripped proof rejected: ok=%v err=%v", ok, err)
	}
}

func TestBuildDeterministic(t *testing.T) {
	leaves := testLeafHashes(t, 101)
	first, err := Build(ShapeWide, leaves)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	second, err := Build(ShapeWide, leaves)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if !bytes.Equal(first.Root(), second.Root()) {
		t.Fatal("same leaf set produced different roots")
	}
}

func TestProofSizeScaling(t *testing.T) {
	sizes := []struct {
		n          int
		wantWide   int
		wantNarrow int
	}{
		{10, 1, 4},
		{1000, 2, 10},
		{100000, 3, 17},
	}
	for _, tc := range sizes {
		leaves := testLeafHashes(t, tc.n)

		wide, err := Build(ShapeWide, leaves)
		if err != nil {
			t.Fatalf("build wide n=%d: %v", tc.n, err)
		}
		wideProof, err := wide.Proof(tc.n / 2)
		if err != nil {
			t.Fatalf("wide proof n=%d: %v", tc.n, err)
		}
		if wideProof.Len() != tc.wantWide {
			t.Fatalf("wide proof n=%d: got %d levels, want %d", tc.n, wideProof.Len(), tc.wantWide)
		}

		narrow, err := Build(ShapeNarrow, leaves)
		if err != nil {
			t.Fatalf("build narrow n=%d: %v", tc.n, err)
		}
		narrowProof, err := narrow.Proof(tc.n / 2)
		if err != nil {
			t.Fatalf("narrow proof n=%d: %v", tc.n, err)
		}
		if narrowProof.Len() != tc.wantNarrow {
			t.Fatalf("narrow proof n=%d: got %d levels, want %d", tc.n, narrowProof.Len(), tc.wantNarrow)
		}

		if tc.n > 256 && wideProof.Len() > narrowProof.Len() {
			t.Fatalf("n=%d: wide proof (%d levels) longer than narrow (%d)", tc.n, wideProof.Len(), narrowProof.Len())
		}
	}
}
