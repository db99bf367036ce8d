// Package pipenet models discrete pipe networks and the machines that move
// gas between pipes and tile mixtures. It plugs into the atmosphere
// pipeline as the pipe-net and device stages and touches tile air only
// through the Mixture operations.
package pipenet

import (
	"fmt"

	"atmoscape.dev/internal/sim/atmos"
)

// PipeVolume is the internal volume of one pipe segment, in liters.
const PipeVolume = 70.0

// Pipe is one segment at a grid position. Connected segments pool their gas
// into a shared net mixture; the segment keeps only its geometry.
type Pipe struct {
	Pos     atmos.Pos
	Connect uint8 // direction bits this segment connects toward

	net *Net
}

func (p *Pipe) Net() *Net { return p.net }

// Net is a merged set of connected pipes with one pooled mixture. Nets are
// rebuilt incrementally: adding a pipe joins the nets it touches, removing
// one rebuilds the affected component.
type Net struct {
	pipes []*Pipe
	Air   *atmos.Mixture
}

func (n *Net) Size() int { return len(n.pipes) }

// Manager owns all pipes and devices on one grid.
type Manager struct {
	grid *atmos.GridAtmosphere

	pipes map[atmos.Pos]*Pipe
	nets  []*Net

	devices []Device

	netCursor    int
	deviceCursor int
}

func NewManager(grid *atmos.GridAtmosphere) *Manager {
	m := &Manager{
		grid:  grid,
		pipes: map[atmos.Pos]*Pipe{},
	}
	grid.SetPipeNetStage((*netStage)(m))
	grid.SetDeviceStage((*deviceStage)(m))
	return m
}

// AddPipe places a segment and joins it to any adjacent connected nets.
func (m *Manager) AddPipe(p atmos.Pos, connect uint8) (*Pipe, error) {
	if _, ok := m.pipes[p]; ok {
		return nil, fmt.Errorf("pipenet: pipe already at %v", p)
	}
	pipe := &Pipe{Pos: p, Connect: connect}
	m.pipes[p] = pipe

	net := &Net{Air: atmos.NewMixture(PipeVolume)}
	net.pipes = []*Pipe{pipe}
	pipe.net = net
	m.nets = append(m.nets, net)

	for d := atmos.Direction(0); d < atmos.DirectionCount; d++ {
		if connect&(1<<d) == 0 {
			continue
		}
		other := m.pipes[p.Step(d)]
		if other == nil || other.Connect&(1<<d.Opposite()) == 0 {
			continue
		}
		m.mergeNets(pipe.net, other.net)
	}
	return pipe, nil
}

// RemovePipe deletes a segment. Its share of the net's gas is vented into
// the tile below it; the remaining component keeps the rest.
func (m *Manager) RemovePipe(p atmos.Pos) {
	pipe := m.pipes[p]
	if pipe == nil {
		return
	}
	delete(m.pipes, p)

	net := pipe.net
	share := net.Air.Remove(m.grid.Catalog(), net.Air.TotalMoles()/float64(len(net.pipes)))
	if t := m.grid.Tile(p); t != nil && t.Air != nil {
		t.Air.Merge(m.grid.Catalog(), share)
		m.grid.AddActiveTile(t)
	}
	m.rebuildComponent(net, pipe)
}

// mergeNets pools the smaller net into the larger.
func (m *Manager) mergeNets(a, b *Net) *Net {
	if a == b {
		return a
	}
	keep, drop := a, b
	if len(a.pipes) < len(b.pipes) {
		keep, drop = b, a
	}
	keep.Air.Volume += drop.Air.Volume
	keep.Air.Merge(m.grid.Catalog(), drop.Air)
	for _, p := range drop.pipes {
		p.net = keep
		keep.pipes = append(keep.pipes, p)
	}
	m.dropNet(drop)
	return keep
}

// rebuildComponent re-floods a net after a member was removed, splitting it
// when the removal disconnected it.
func (m *Manager) rebuildComponent(net *Net, removed *Pipe) {
	m.dropNet(net)
	eligible := map[*Pipe]bool{}
	for _, p := range net.pipes {
		if p != removed {
			p.net = nil
			eligible[p] = true
		}
	}
	// Walk the stable member order so the gas split is deterministic: each
	// component takes its share of whatever is left.
	left := len(eligible)
	for _, p := range net.pipes {
		if p == removed || p.net != nil {
			continue
		}
		part := &Net{Air: atmos.NewMixture(0)}
		m.flood(p, part, eligible)
		part.Air.Volume = PipeVolume * float64(len(part.pipes))
		if left > 0 {
			ratio := float64(len(part.pipes)) / float64(left)
			part.Air.Merge(m.grid.Catalog(), net.Air.RemoveRatio(m.grid.Catalog(), ratio))
			left -= len(part.pipes)
		}
		m.nets = append(m.nets, part)
	}
}

func (m *Manager) flood(start *Pipe, net *Net, eligible map[*Pipe]bool) {
	stack := []*Pipe{start}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if p.net == net {
			continue
		}
		p.net = net
		net.pipes = append(net.pipes, p)
		for d := atmos.Direction(0); d < atmos.DirectionCount; d++ {
			if p.Connect&(1<<d) == 0 {
				continue
			}
			other := m.pipes[p.Pos.Step(d)]
			if other == nil || !eligible[other] || other.Connect&(1<<d.Opposite()) == 0 {
				continue
			}
			if other.net == nil {
				stack = append(stack, other)
			}
		}
	}
}

func (m *Manager) dropNet(net *Net) {
	for i, n := range m.nets {
		if n == net {
			m.nets[i] = m.nets[len(m.nets)-1]
			m.nets = m.nets[:len(m.nets)-1]
			return
		}
	}
}

// netStage processes pipe nets during the pipeline's pipe-net stage.
type netStage Manager

func (s *netStage) Process(limit int) bool {
	m := (*Manager)(s)
	n := 0
	for m.netCursor < len(m.nets) && n < limit {
		// Nets are a single pooled mixture; the stage's work is reactions
		// inside hot pipes.
		net := m.nets[m.netCursor]
		atmos.ReactMixture(m.grid.Catalog(), net.Air)
		m.netCursor++
		n++
	}
	if m.netCursor >= len(m.nets) {
		m.netCursor = 0
		return false
	}
	return true
}

// deviceStage processes machines during the pipeline's device stage.
type deviceStage Manager

func (s *deviceStage) Process(limit int) bool {
	m := (*Manager)(s)
	n := 0
	for m.deviceCursor < len(m.devices) && n < limit {
		m.devices[m.deviceCursor].Process(m.grid)
		m.deviceCursor++
		n++
	}
	if m.deviceCursor >= len(m.devices) {
		m.deviceCursor = 0
		return false
	}
	return true
}
