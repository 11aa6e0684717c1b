package rowdiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanner_FirstCallIsInitial(t *testing.T) {
	scanner := NewScanner(nil)

	rows := []Row{pr(t, 1, "Arthur")}
	scanner, res := scanner.Diffed(rows)

	assert.True(t, res.Initial)
	assert.Empty(t, res.Changes)

	// Second call with the same rows: empty Changes, never Initial again.
	_, res = scanner.Diffed(rows)
	assert.False(t, res.Initial)
	assert.NotNil(t, res.Changes)
	assert.Empty(t, res.Changes)
}

func TestScanner_NonEmptySeedStillInitial(t *testing.T) {
	// Construction-time seeding is distinct from the first Diffed call: even
	// with a non-empty seed the first result is Initial, not a diff against
	// the seed.
	seed := []Row{pr(t, 1, "A")}
	scanner := NewScanner(seed)

	scanner, res := scanner.Diffed([]Row{pr(t, 2, "B")})
	assert.True(t, res.Initial)

	// The seed is gone: the next diff compares against the first Diffed rows.
	_, res = scanner.Diffed([]Row{pr(t, 2, "B"), pr(t, 3, "C")})
	require.Len(t, res.Changes, 1)
	assert.Equal(t, Insert, res.Changes[0].Kind)
	assert.Equal(t, Key{int64(3)}, res.Changes[0].Row.Key())
}

func TestScanner_SnapshotStream(t *testing.T) {
	// Feeding [∅, {1:Arthur,2:Barbara}, {1:Arthur,2:Barbie}, ∅,
	// {1:Craig,2:David,3:Elena}] must yield Initial, insert both, update #2,
	// delete both, insert three.
	scanner := NewScanner(nil)

	scanner, res := scanner.Diffed(nil)
	assert.True(t, res.Initial)

	scanner, res = scanner.Diffed([]Row{pr(t, 1, "Arthur"), pr(t, 2, "Barbara")})
	require.Len(t, res.Changes, 2)
	assert.Equal(t, Insert, res.Changes[0].Kind)
	assert.Equal(t, Insert, res.Changes[1].Kind)

	scanner, res = scanner.Diffed([]Row{pr(t, 1, "Arthur"), pr(t, 2, "Barbie")})
	require.Len(t, res.Changes, 1)
	assert.Equal(t, Update, res.Changes[0].Kind)
	assert.Equal(t, Key{int64(2)}, res.Changes[0].Row.Key())
	assert.Equal(t, map[string]any{"name": "Barbara"}, res.Changes[0].OldValues)

	scanner, res = scanner.Diffed(nil)
	require.Len(t, res.Changes, 2)
	assert.Equal(t, Delete, res.Changes[0].Kind)
	assert.Equal(t, 0, res.Changes[0].Index)
	assert.Equal(t, Delete, res.Changes[1].Kind)
	assert.Equal(t, 1, res.Changes[1].Index)

	_, res = scanner.Diffed([]Row{pr(t, 1, "Craig"), pr(t, 2, "David"), pr(t, 3, "Elena")})
	require.Len(t, res.Changes, 3)
	for i, ch := range res.Changes {
		assert.Equal(t, Insert, ch.Kind)
		assert.Equal(t, i, ch.Index)
	}
}

func TestScanner_ValueSemantics(t *testing.T) {
	// Diffed returns a successor; the original scanner value is unchanged.
	scanner := NewScanner(nil)
	first, res := scanner.Diffed([]Row{pr(t, 1, "A")})
	assert.True(t, res.Initial)

	// Using the original again still reports Initial: state was threaded, not
	// mutated in place.
	_, res = scanner.Diffed([]Row{pr(t, 1, "A")})
	assert.True(t, res.Initial)

	_, res = first.Diffed([]Row{pr(t, 1, "A")})
	assert.False(t, res.Initial)
	assert.Empty(t, res.Changes)
}

func TestNewScanner_PanicsOnBadSeed(t *testing.T) {
	assert.Panics(t, func() { NewScanner([]Row{pr(t, 2, "B"), pr(t, 1, "A")}) })
}
