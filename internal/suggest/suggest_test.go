package suggest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "pokemon", Normalize("Pokémon"))
	assert.Equal(t, "re:zero kara", Normalize("  Re:Zero   KARA "))
	assert.Equal(t, "strasse", Normalize("STRASSE"))
}

func TestScoreOrdering(t *testing.T) {
	assert.Equal(t, 1.0, Score("rem", "rem"))
	assert.Equal(t, 0.9, Score("re", "rem"))
	assert.Equal(t, 0.8, Score("em", "rem"))
	assert.InDelta(t, 2.0/3.0, Score("ram", "rem"), 1e-9)
	assert.Zero(t, Score("", "rem"))
}

func TestRankOrdersByScoreThenLabel(t *testing.T) {
	universe := []string{"Naruto", "Naruto Shippuden", "Boruto", "One Piece", "Nana"}
	got := Rank("naruto", universe, 5)
	want := []string{"Naruto", "Naruto Shippuden", "Boruto"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Rank mismatch (-want +got):\n%s", diff)
	}
}

func TestRankTypos(t *testing.T) {
	got := Rank("konosba", []string{"Konosuba", "Kanon", "Clannad"}, 5)
	require.NotEmpty(t, got)
	assert.Equal(t, "Konosuba", got[0])
}

func TestRankIsDeterministic(t *testing.T) {
	universe := []string{"Aqua", "Aqours", "Akua", "Aquarion", "Eva"}
	first := Rank("aqua", universe, DefaultLimit)
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, Rank("aqua", universe, DefaultLimit)); diff != "" {
			t.Fatalf("Rank not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestRankRespectsLimit(t *testing.T) {
	universe := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7"}
	assert.Len(t, Rank("a", universe, DefaultLimit), DefaultLimit)
	assert.Len(t, Rank("a", universe, 2), 2)
}

func TestRankEmptyInputs(t *testing.T) {
	assert.Equal(t, []string{}, Rank("x", nil, 5))
	assert.Equal(t, []string{}, Rank("x", []string{"x"}, 0))
	assert.Equal(t, []string{}, Rank("   ", []string{"x"}, 5))
}

func TestRankDropsDuplicatesAndDistantLabels(t *testing.T) {
	got := Rank("rem", []string{"Rem", "Rem", "Subaru Natsuki"}, 5)
	assert.Equal(t, []string{"Rem"}, got)
}
