package world

import (
	"sort"

	"atmoscape.dev/internal/persistence/snapshot"
	"atmoscape.dev/internal/sim/atmos"
)

// ExportSnapshot captures the atmosphere state of every grid. Must run on
// the loop goroutine.
func (w *World) ExportSnapshot() snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: 1,
			WorldID: w.cfg.ID,
			Tick:    w.tick.Load(),
		},
		TickRateHz:           w.cfg.Tuning.TickRateHz,
		SnapshotEveryTicks:   w.cfg.Tuning.SnapshotEveryTicks,
		MaxProcessTimeUs:     w.cfg.Tuning.MaxProcessTimeUs,
		ExcitedGroupCooldown: w.cfg.Tuning.ExcitedGroupCooldown,
		EqualizationEnabled:  w.cfg.Tuning.EqualizationEnabled,
		GasDigest:            w.cat.Digest,
	}

	for _, id := range w.sortedGridIDs() {
		ga := w.grids[id].Atmos
		gv := snapshot.GridV1{ID: id}

		var tiles []*atmos.Tile
		ga.ForEachTile(func(t *atmos.Tile) { tiles = append(tiles, t) })
		sort.Slice(tiles, func(i, j int) bool {
			if tiles[i].Pos.X != tiles[j].Pos.X {
				return tiles[i].Pos.X < tiles[j].Pos.X
			}
			return tiles[i].Pos.Y < tiles[j].Pos.Y
		})
		for _, t := range tiles {
			tv := snapshot.TileV1{
				X:       t.Pos.X,
				Y:       t.Pos.Y,
				Blocked: t.AirBlocked,
				Excited: t.Excited(),
			}
			if t.Air != nil {
				tv.HasAir = true
				tv.Moles = append([]float64(nil), t.Air.Moles[:]...)
				tv.Temperature = t.Air.Temperature
				tv.Volume = t.Air.Volume
				tv.Immutable = t.Air.Immutable
			}
			gv.Tiles = append(gv.Tiles, tv)
		}

		ga.ForEachSubject(func(s *atmos.Subject) {
			gv.Subjects = append(gv.Subjects, snapshot.SubjectV1{
				ID:                   s.ID,
				X:                    s.Pos.X,
				Y:                    s.Pos.Y,
				MinPressure:          s.MinPressure,
				MinPressureDelta:     s.MinPressureDelta,
				MaxEffectivePressure: s.MaxEffectivePressure,
				ScalingMode:          uint8(s.ScalingMode),
				ScalingPower:         s.ScalingPower,
				BaseDamage:           s.BaseDamage,
				PermeableDirs:        s.PermeableDirs,
				TakingDamage:         s.TakingDamage,
			})
		})

		snap.Grids = append(snap.Grids, gv)
	}
	return snap
}

// ImportSnapshot rebuilds grid state from a snapshot. Tiles are invalidated
// so the first cycle relinks adjacency; excited tiles re-enter the active
// set after revalidation.
func (w *World) ImportSnapshot(snap snapshot.SnapshotV1) {
	w.tick.Store(snap.Header.Tick)
	for _, gv := range snap.Grids {
		g := w.EnsureGrid(gv.ID)
		ga := g.Atmos
		for _, tv := range gv.Tiles {
			t := ga.EnsureTile(atmos.Pos{X: tv.X, Y: tv.Y})
			t.AirBlocked = tv.Blocked
			if tv.HasAir {
				vol := tv.Volume
				if vol <= 0 {
					vol = atmos.CellVolume
				}
				m := atmos.NewMixture(vol)
				copy(m.Moles[:], tv.Moles)
				m.Temperature = tv.Temperature
				m.Immutable = tv.Immutable
				t.Air = m
			} else {
				t.Air = nil
			}
			ga.InvalidateTile(t)
		}
		for _, sv := range gv.Subjects {
			ga.RegisterSubject(&atmos.Subject{
				ID:                   sv.ID,
				Pos:                  atmos.Pos{X: sv.X, Y: sv.Y},
				MinPressure:          sv.MinPressure,
				MinPressureDelta:     sv.MinPressureDelta,
				MaxEffectivePressure: sv.MaxEffectivePressure,
				ScalingMode:          atmos.ScalingMode(sv.ScalingMode),
				ScalingPower:         sv.ScalingPower,
				BaseDamage:           sv.BaseDamage,
				PermeableDirs:        sv.PermeableDirs,
				TakingDamage:         sv.TakingDamage,
			})
		}
	}
}
