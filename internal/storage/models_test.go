package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory("menswear")
	require.True(t, ok)
	assert.Equal(t, CategoryMenswear, c)

	_, ok = ParseCategory("Menswear")
	assert.False(t, ok, "parsing is exact, tokens are lowercase")

	_, ok = ParseCategory("petwear")
	assert.False(t, ok)
}

func TestParseProductType(t *testing.T) {
	pt, ok := ParseProductType("shoes")
	require.True(t, ok)
	assert.Equal(t, TypeShoes, pt)

	_, ok = ParseProductType("hat")
	assert.False(t, ok)
}

func TestSizeListRoundTrip(t *testing.T) {
	v, err := SizeList{"S", "M", "L"}.Value()
	require.NoError(t, err)
	assert.Equal(t, "S,M,L", v)

	var s SizeList
	require.NoError(t, s.Scan("S, M ,L,"))
	assert.Equal(t, SizeList{"S", "M", "L"}, s)

	require.NoError(t, s.Scan([]byte("30,31")))
	assert.Equal(t, SizeList{"30", "31"}, s)

	require.NoError(t, s.Scan(nil))
	assert.Nil(t, s)

	require.NoError(t, s.Scan(""))
	assert.Nil(t, s)

	assert.Error(t, s.Scan(42))
}
