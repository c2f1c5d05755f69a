package tree

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewTree_Configuration(t *testing.T) {
	testCases := []struct {
		description string
		opts        []Option
	}{
		{description: "zero leaf size", opts: []Option{WithMaxLeafSize(0)}},
		{description: "negative leaf size", opts: []Option{WithMaxLeafSize(-3)}},
		{description: "nil kernel", opts: []Option{WithKernel(nil)}},
		{description: "minkowski below one", opts: []Option{WithKernel(Minkowski{P: 0.5})}},
		{description: "unknown pivot", opts: []Option{WithPivot(Pivot(9))}},
	}
	for _, tc := range testCases {
		_, err := NewTree[string](tc.opts...)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, tc.description)
	}

	tr, err := NewTree[string]()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxLeafSize, tr.MaxLeafSize())
	assert.Equal(t, Euclidean{}, tr.Kernel())
	assert.True(t, tr.Bare())
	assert.Zero(t, tr.Height())
	assert.Zero(t, tr.Balance())
	assert.Zero(t, tr.Size())
	assert.Zero(t, tr.Leaves())
	_, ok := tr.Root()
	assert.False(t, ok)
}

func TestParsePivot(t *testing.T) {
	p, err := ParsePivot("")
	require.NoError(t, err)
	assert.Equal(t, PivotFarthest, p)
	p, err = ParsePivot("random")
	require.NoError(t, err)
	assert.Equal(t, PivotRandom, p)
	assert.Equal(t, "random", p.String())
	_, err = ParsePivot("median")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestTree_TwoClusters(t *testing.T) {
	ds, err := NewLabeled(
		[][]float64{{0, 0}, {1, 0}, {10, 10}, {10, 11}},
		[]string{"a", "a", "b", "b"},
	)
	require.NoError(t, err)
	tr, err := NewTree[string](WithMaxLeafSize(1))
	require.NoError(t, err)
	require.NoError(t, tr.Grow(ds))

	assert.False(t, tr.Bare())
	assert.Equal(t, 4, tr.Size())
	assert.Equal(t, 4, tr.Leaves())
	assert.Equal(t, 2, tr.Dimensions())

	nearest, err := tr.Nearest([]float64{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, nearest, 1)
	assert.Equal(t, []float64{0, 0}, nearest[0].Sample)
	assert.Equal(t, "a", nearest[0].Label)
	assert.InDelta(t, 1.0, nearest[0].Distance, floatTol)

	inRange, err := tr.Range([]float64{10, 10.5}, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, [][]float64{{10, 10}, {10, 11}}, inRange.Samples())
	assert.Equal(t, []string{"b", "b"}, inRange.Labels())
	for _, d := range inRange.Distances() {
		assert.InDelta(t, 0.5, d, floatTol)
	}
}

func TestTree_Untrained(t *testing.T) {
	tr, err := NewTree[int]()
	require.NoError(t, err)

	_, err = tr.Nearest([]float64{1}, 1)
	assert.ErrorIs(t, err, ErrUntrained)
	_, err = tr.Range([]float64{1}, 1)
	assert.ErrorIs(t, err, ErrUntrained)

	path, err := tr.Path([]float64{1})
	require.NoError(t, err)
	assert.Empty(t, path)
	_, ok, err := tr.Search([]float64{1})
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, tr.Grow(nil), ErrInvalidInput)
}

func TestTree_QueryValidation(t *testing.T) {
	tr := grown(t, randomDataset(t, 3, 40, 3, 10), WithMaxLeafSize(4))

	_, err := tr.Nearest([]float64{1, 2, 3}, 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = tr.Range([]float64{1, 2, 3}, 0)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	_, err = tr.Range([]float64{1, 2, 3}, -1)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = tr.Nearest([]float64{1, 2}, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = tr.Range([]float64{1, 2, 3, 4}, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = tr.Path([]float64{1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTree_RejectsNaNQuery(t *testing.T) {
	tr := grown(t, randomDataset(t, 4, 20, 2, 10), WithMaxLeafSize(4))
	nan := []float64{math.NaN(), 0}

	found, err := tr.Nearest(nan, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Nil(t, found)
	_, err = tr.Range(nan, 5)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = tr.Path([]float64{0, math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTree_Destroy(t *testing.T) {
	tr := grown(t, randomDataset(t, 5, 30, 2, 10), WithMaxLeafSize(3))
	require.False(t, tr.Bare())

	tr.Destroy()
	assert.True(t, tr.Bare())
	assert.Zero(t, tr.Height())
	_, err := tr.Nearest([]float64{0, 0}, 1)
	assert.ErrorIs(t, err, ErrUntrained)

	tr.Destroy()
	assert.True(t, tr.Bare())
}

func TestTree_Regrow(t *testing.T) {
	tr := grown(t, randomDataset(t, 5, 30, 2, 10), WithMaxLeafSize(3))
	require.NoError(t, tr.Grow(randomDataset(t, 6, 12, 4, 10)))
	assert.Equal(t, 12, tr.Size())
	assert.Equal(t, 4, tr.Dimensions())
}

func TestTree_GrowLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	grown(t, randomDataset(t, 2, 25, 2, 10), WithMaxLeafSize(5), WithLogger(zap.New(core)))

	entries := logs.FilterMessage("grew ball tree").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 25, entries[0].ContextMap()["rows"])
}
