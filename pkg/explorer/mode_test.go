package explorer

import (
	"testing"

	"pgregory.net/rapid"
)

func TestSelectionMode_Allows(t *testing.T) {
	tests := []struct {
		name      string
		mode      SelectionMode
		positions []int
		want      bool
	}{
		{"empty", Single, nil, true},
		{"single_one", Single, []int{4}, true},
		{"single_two", Single, []int{4, 5}, false},
		{"contiguous_run", Contiguous, []int{2, 3, 4}, true},
		{"contiguous_gap", Contiguous, []int{2, 4}, false},
		{"contiguous_unsorted", Contiguous, []int{4, 2, 3}, true},
		{"discontiguous_gap", Discontiguous, []int{0, 9}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.mode.Allows(tt.positions); got != tt.want {
				t.Errorf("%s.Allows(%v) = %v, want %v", tt.mode, tt.positions, got, tt.want)
			}
		})
	}
}

func TestSelectionMode_ContiguousMatchesSpan(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		positions := rapid.SliceOfNDistinct(rapid.IntRange(0, 40), 1, 12, rapid.ID[int]).Draw(t, "positions")
		lo, hi := positions[0], positions[0]
		for _, p := range positions {
			lo = min(lo, p)
			hi = max(hi, p)
		}
		want := hi-lo+1 == len(positions)
		if got := Contiguous.Allows(positions); got != want {
			t.Fatalf("Allows(%v)=%v, want %v", positions, got, want)
		}
	})
}

func TestParseSelectionMode(t *testing.T) {
	for in, want := range map[string]SelectionMode{
		"single":              Single,
		"Contiguous":          Contiguous,
		"contiguous-interval": Contiguous,
		"discontiguous":       Discontiguous,
		"":                    Discontiguous,
	} {
		got, err := ParseSelectionMode(in)
		if err != nil || got != want {
			t.Errorf("ParseSelectionMode(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParseSelectionMode("sideways"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
