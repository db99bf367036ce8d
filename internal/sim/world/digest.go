package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"atmoscape.dev/internal/sim/atmos"
)

// stateDigest hashes the simulation-relevant state of every grid in a
// canonical order. Two worlds driven by identical event streams must
// produce identical digests tick for tick.
func (w *World) stateDigest() string {
	h := sha256.New()
	var buf [8]byte

	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeF64 := func(v float64) { writeU64(math.Float64bits(v)) }
	writeI := func(v int) { writeU64(uint64(int64(v))) }

	writeU64(w.tick.Load())

	for _, id := range w.sortedGridIDs() {
		h.Write([]byte(id))
		ga := w.grids[id].Atmos

		var positions []atmos.Pos
		ga.ForEachTile(func(t *atmos.Tile) {
			positions = append(positions, t.Pos)
		})
		sort.Slice(positions, func(i, j int) bool {
			if positions[i].X != positions[j].X {
				return positions[i].X < positions[j].X
			}
			return positions[i].Y < positions[j].Y
		})

		writeI(len(positions))
		for _, p := range positions {
			t := ga.Tile(p)
			writeI(p.X)
			writeI(p.Y)
			writeU64(uint64(t.AirBlocked))
			if t.Air == nil {
				writeU64(0)
				continue
			}
			writeU64(1)
			for _, m := range t.Air.Moles {
				writeF64(m)
			}
			writeF64(t.Air.Temperature)
			writeF64(t.Air.Volume)
			if t.Excited() {
				writeU64(1)
			} else {
				writeU64(0)
			}
		}
		writeI(ga.ActiveCount())

		ga.ForEachSubject(func(s *atmos.Subject) {
			h.Write([]byte(s.ID))
			if s.TakingDamage {
				writeU64(1)
			} else {
				writeU64(0)
			}
		})
	}

	return hex.EncodeToString(h.Sum(nil))
}
