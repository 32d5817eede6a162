package geoindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeGeohashKnownCells(t *testing.T) {
	// 50N 10E sits in the top latitude band, first eastern column.
	assert.Equal(t, "u", encodeGeohash(50, 10, 1))
	assert.Equal(t, "u0z", encodeGeohash(50, 10, 3))
}

func TestNeighborCellNamedDirections(t *testing.T) {
	// Single-character cells follow the base32 map layout: east of "u" is "v",
	// west is "g", south is "s".
	assert.Equal(t, "v", neighborCell("u", "e"))
	assert.Equal(t, "g", neighborCell("u", "w"))
	assert.Equal(t, "s", neighborCell("u", "s"))
}

func TestNeighborCellMatchesEncodedOffsets(t *testing.T) {
	// Shifting a point by exactly one cell height/width must land in the
	// named adjacent cell, at both even and odd precisions.
	cases := []struct {
		precision int
		latStep   float64
		lngStep   float64
	}{
		{4, 180.0 / (1 << 10), 360.0 / (1 << 10)},
		{5, 180.0 / (1 << 12), 360.0 / (1 << 13)},
	}

	for _, tc := range cases {
		h := encodeGeohash(centerLat, centerLng, tc.precision)
		assert.Equal(t, encodeGeohash(centerLat+tc.latStep, centerLng, tc.precision), neighborCell(h, "n"), "north precision %d", tc.precision)
		assert.Equal(t, encodeGeohash(centerLat-tc.latStep, centerLng, tc.precision), neighborCell(h, "s"), "south precision %d", tc.precision)
		assert.Equal(t, encodeGeohash(centerLat, centerLng+tc.lngStep, tc.precision), neighborCell(h, "e"), "east precision %d", tc.precision)
		assert.Equal(t, encodeGeohash(centerLat, centerLng-tc.lngStep, tc.precision), neighborCell(h, "w"), "west precision %d", tc.precision)
	}
}

func TestNeighborBlockIsNineDistinctCells(t *testing.T) {
	block := neighborBlock(encodeGeohash(centerLat, centerLng, 6))
	seen := make(map[string]struct{}, len(block))
	for _, cell := range block {
		seen[cell] = struct{}{}
	}
	assert.Len(t, seen, 9)
}
