// Package geoindex keeps the live positions of the driver fleet in memory
// and answers proximity queries for the matcher. It is the hot read path of
// matching; persistence of location history lives elsewhere.
package geoindex

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/geo"
	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/models"
)

const (
	// DefaultPrecision (~610m cells) balances cell fan-out against the
	// cost of per-candidate haversine filtering.
	DefaultPrecision = 6

	// DefaultStaleAfter is how long an entry survives without a ping.
	DefaultStaleAfter = 5 * time.Minute

	defaultSweepInterval = 30 * time.Second
)

// Meta is the matching-relevant driver state carried with each position.
type Meta struct {
	Tier   models.RideType
	Rating float64
	Status models.DriverStatus
}

// Candidate is one driver returned by a proximity query.
type Candidate struct {
	DriverID   uuid.UUID
	Latitude   float64
	Longitude  float64
	DistanceKm float64
	Meta       Meta
}

type entry struct {
	lat       float64
	lng       float64
	timestamp time.Time
	cell      string
	meta      Meta
}

// Options configures an Index.
type Options struct {
	Precision     int
	StaleAfter    time.Duration
	SweepInterval time.Duration
}

// Index is the in-memory spatial index. Entries live in a cell map at a
// fixed geohash precision; a sorted slice of cell keys supports prefix
// range scans when a query needs coarser cells than the storage precision.
type Index struct {
	mu        sync.RWMutex
	precision int
	entries   map[uuid.UUID]*entry
	cells     map[string]map[uuid.UUID]struct{}
	cellKeys  []string

	staleAfter time.Duration
	stopCh     chan struct{}
	closeOnce  sync.Once
}

// New creates an index and starts its housekeeping goroutine.
func New(opts Options) *Index {
	if opts.Precision <= 0 || opts.Precision > 12 {
		opts.Precision = DefaultPrecision
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}

	idx := &Index{
		precision:  opts.Precision,
		entries:    make(map[uuid.UUID]*entry),
		cells:      make(map[string]map[uuid.UUID]struct{}),
		staleAfter: opts.StaleAfter,
		stopCh:     make(chan struct{}),
	}
	go idx.housekeeping(opts.SweepInterval)
	return idx
}

// Add upserts a driver position. Updates are last-writer-wins on the
// caller-supplied timestamp; an older ping arriving late never overwrites a
// newer position.
func (idx *Index) Add(driverID uuid.UUID, lat, lng float64, ts time.Time, meta Meta) {
	if !geo.ValidCoordinates(lat, lng) {
		return
	}

	cell := encodeGeohash(lat, lng, idx.precision)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.entries[driverID]; ok {
		if ts.Before(existing.timestamp) {
			return
		}
		if existing.cell != cell {
			idx.removeFromCell(driverID, existing.cell)
		}
	}

	idx.entries[driverID] = &entry{lat: lat, lng: lng, timestamp: ts, cell: cell, meta: meta}
	idx.addToCell(driverID, cell)
}

// Remove drops a driver from the index. Unknown drivers are a no-op.
func (idx *Index) Remove(driverID uuid.UUID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.entries[driverID]; ok {
		idx.removeFromCell(driverID, existing.cell)
		delete(idx.entries, driverID)
	}
}

// Position returns the tracked coordinates for a driver regardless of
// availability status.
func (idx *Index) Position(driverID uuid.UUID) (lat, lng float64, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	e, ok := idx.entries[driverID]
	if !ok {
		return 0, 0, false
	}
	return e.lat, e.lng, true
}

// Query returns up to limit AVAILABLE drivers within radiusKm of the point,
// ordered by (distance asc, driver ID asc). An empty index yields an empty
// slice.
func (idx *Index) Query(lat, lng, radiusKm float64, limit int) []Candidate {
	if limit <= 0 || radiusKm <= 0 || !geo.ValidCoordinates(lat, lng) {
		return nil
	}

	queryPrecision := coveringPrecision(radiusKm, idx.precision)
	block := neighborBlock(encodeGeohash(lat, lng, queryPrecision))

	idx.mu.RLock()

	candidates := make([]Candidate, 0, limit)
	seen := make(map[uuid.UUID]struct{})

	for _, prefix := range block {
		for _, cell := range idx.cellsWithPrefix(prefix) {
			for driverID := range idx.cells[cell] {
				if _, dup := seen[driverID]; dup {
					continue
				}
				seen[driverID] = struct{}{}

				e := idx.entries[driverID]
				if e.meta.Status != models.DriverStatusAvailable {
					continue
				}
				distance := geo.Haversine(lat, lng, e.lat, e.lng)
				if distance > radiusKm {
					continue
				}
				candidates = append(candidates, Candidate{
					DriverID:   driverID,
					Latitude:   e.lat,
					Longitude:  e.lng,
					DistanceKm: distance,
					Meta:       e.meta,
				})
			}
		}
	}

	idx.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DistanceKm != candidates[j].DistanceKm {
			return candidates[i].DistanceKm < candidates[j].DistanceKm
		}
		return candidates[i].DriverID.String() < candidates[j].DriverID.String()
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// Size returns the number of tracked drivers.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Close stops the housekeeping goroutine.
func (idx *Index) Close() {
	idx.closeOnce.Do(func() { close(idx.stopCh) })
}

// cellsWithPrefix range-scans the sorted cell keys. Called with the read
// lock held. A prefix at the storage precision matches exactly one cell.
func (idx *Index) cellsWithPrefix(prefix string) []string {
	start := sort.SearchStrings(idx.cellKeys, prefix)
	var out []string
	for i := start; i < len(idx.cellKeys) && strings.HasPrefix(idx.cellKeys[i], prefix); i++ {
		out = append(out, idx.cellKeys[i])
	}
	return out
}

func (idx *Index) addToCell(driverID uuid.UUID, cell string) {
	members, ok := idx.cells[cell]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		idx.cells[cell] = members
		pos := sort.SearchStrings(idx.cellKeys, cell)
		idx.cellKeys = append(idx.cellKeys, "")
		copy(idx.cellKeys[pos+1:], idx.cellKeys[pos:])
		idx.cellKeys[pos] = cell
	}
	members[driverID] = struct{}{}
}

func (idx *Index) removeFromCell(driverID uuid.UUID, cell string) {
	members, ok := idx.cells[cell]
	if !ok {
		return
	}
	delete(members, driverID)
	if len(members) == 0 {
		delete(idx.cells, cell)
		pos := sort.SearchStrings(idx.cellKeys, cell)
		if pos < len(idx.cellKeys) && idx.cellKeys[pos] == cell {
			idx.cellKeys = append(idx.cellKeys[:pos], idx.cellKeys[pos+1:]...)
		}
	}
}

func (idx *Index) housekeeping(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-idx.stopCh:
			return
		case now := <-ticker.C:
			idx.evictStale(now)
		}
	}
}

func (idx *Index) evictStale(now time.Time) {
	cutoff := now.Add(-idx.staleAfter)

	idx.mu.Lock()
	evicted := 0
	for driverID, e := range idx.entries {
		if e.timestamp.Before(cutoff) {
			idx.removeFromCell(driverID, e.cell)
			delete(idx.entries, driverID)
			evicted++
		}
	}
	idx.mu.Unlock()

	if evicted > 0 {
		logger.Debug("geo index evicted stale drivers", zap.Int("count", evicted))
	}
}
