package geoindex

import "strings"

// Geohash cells shrink by roughly a factor of 4-8 per precision step. The
// index stores entries at a fixed precision and widens to coarser prefixes
// when a query radius outgrows the stored cell size.
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// cellWidthKm is the approximate minimum cell dimension per precision.
var cellWidthKm = [...]float64{
	0: 40000, 1: 5000, 2: 625, 3: 156, 4: 19.5, 5: 4.9,
	6: 0.61, 7: 0.153, 8: 0.019, 9: 0.0048, 10: 0.0006, 11: 0.000149, 12: 0.0000186,
}

var (
	neighborTable = map[string]map[byte]string{
		"n": {'e': "p0r21436x8zb9dcf5h7kjnmqesgutwvy", 'o': "bc01fg45238967deuvhjyznpkmstqrwx"},
		"s": {'e': "14365h7k9dcfesgujnmqp0r2twvyx8zb", 'o': "238967debc01fg45kmstqrwxuvhjyznp"},
		"e": {'e': "bc01fg45238967deuvhjyznpkmstqrwx", 'o': "p0r21436x8zb9dcf5h7kjnmqesgutwvy"},
		"w": {'e': "238967debc01fg45kmstqrwxuvhjyznp", 'o': "14365h7k9dcfesgujnmqp0r2twvyx8zb"},
	}
	borderTable = map[string]map[byte]string{
		"n": {'e': "prxz", 'o': "bcfguvyz"},
		"s": {'e': "028b", 'o': "0145hjnp"},
		"e": {'e': "bcfguvyz", 'o': "prxz"},
		"w": {'e': "0145hjnp", 'o': "028b"},
	}
)

// encodeGeohash converts a coordinate into its geohash cell at the given
// precision by interleaving longitude and latitude bisection bits, five bits
// per base32 character.
func encodeGeohash(lat, lng float64, precision int) string {
	if precision <= 0 {
		precision = 1
	}
	if precision > 12 {
		precision = 12
	}

	minLat, maxLat := -90.0, 90.0
	minLng, maxLng := -180.0, 180.0

	var hash strings.Builder
	hash.Grow(precision)
	isEven := true
	bit := 0
	ch := 0

	for hash.Len() < precision {
		if isEven {
			mid := (minLng + maxLng) / 2
			if lng >= mid {
				ch |= 1 << (4 - bit)
				minLng = mid
			} else {
				maxLng = mid
			}
		} else {
			mid := (minLat + maxLat) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				minLat = mid
			} else {
				maxLat = mid
			}
		}
		isEven = !isEven
		bit++
		if bit == 5 {
			hash.WriteByte(base32[ch])
			bit = 0
			ch = 0
		}
	}

	return hash.String()
}

// neighborCell returns the adjacent cell in direction "n", "s", "e" or "w",
// recursing into the parent when the cell sits on its parent's border.
func neighborCell(hash, direction string) string {
	if len(hash) == 0 {
		return ""
	}

	lastChar := hash[len(hash)-1]
	parent := hash[:len(hash)-1]

	var parity byte = 'e'
	if len(hash)%2 == 1 {
		parity = 'o'
	}

	if strings.IndexByte(borderTable[direction][parity], lastChar) >= 0 && len(parent) > 0 {
		parent = neighborCell(parent, direction)
	}

	idx := strings.IndexByte(neighborTable[direction][parity], lastChar)
	if idx < 0 {
		return hash
	}
	return parent + string(base32[idx])
}

// neighborBlock returns the 3x3 block of cells centered on hash.
func neighborBlock(hash string) []string {
	n := neighborCell(hash, "n")
	s := neighborCell(hash, "s")
	return []string{
		hash,
		n,
		s,
		neighborCell(hash, "e"),
		neighborCell(hash, "w"),
		neighborCell(n, "e"),
		neighborCell(n, "w"),
		neighborCell(s, "e"),
		neighborCell(s, "w"),
	}
}

// coveringPrecision picks the finest precision whose cell width still covers
// radiusKm, so the 3x3 neighbor block around the query point spans the whole
// search circle.
func coveringPrecision(radiusKm float64, maxPrecision int) int {
	for p := maxPrecision; p >= 1; p-- {
		if cellWidthKm[p] >= radiusKm {
			return p
		}
	}
	return 1
}
