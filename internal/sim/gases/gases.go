package gases

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// Species is the ordinal of a gas in every per-tile moles array. The set is
// fixed at compile time so mixtures can use flat arrays; the catalog file
// supplies the physical data and must cover exactly this set.
type Species uint8

const (
	Oxygen Species = iota
	Nitrogen
	CarbonDioxide
	Plasma
	Tritium
	WaterVapour
	NitrousOxide
	Frezon

	Count
)

var ordinals = map[string]Species{
	"OXYGEN":         Oxygen,
	"NITROGEN":       Nitrogen,
	"CARBON_DIOXIDE": CarbonDioxide,
	"PLASMA":         Plasma,
	"TRITIUM":        Tritium,
	"WATER_VAPOUR":   WaterVapour,
	"NITROUS_OXIDE":  NitrousOxide,
	"FREZON":         Frezon,
}

type SpeciesDef struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	SpecificHeat float64 `json:"specific_heat"` // J/(mol K)
	MolarMass    float64 `json:"molar_mass"`    // g/mol
	Fuel         bool    `json:"fuel,omitempty"`
	Oxidizer     bool    `json:"oxidizer,omitempty"`
}

type Catalog struct {
	Defs   [Count]SpeciesDef
	Digest string
}

func (c *Catalog) SpecificHeat(s Species) float64 { return c.Defs[s].SpecificHeat }

// Ordinal resolves a catalog id to its species ordinal.
func Ordinal(id string) (Species, bool) {
	s, ok := ordinals[id]
	return s, ok
}

func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var defs []SpeciesDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("gases.json: %w", err)
	}

	var c Catalog
	seen := 0
	for _, d := range defs {
		s, ok := ordinals[d.ID]
		if !ok {
			return nil, fmt.Errorf("gases.json: unknown species %q", d.ID)
		}
		if c.Defs[s].ID != "" {
			return nil, fmt.Errorf("gases.json: duplicate species %q", d.ID)
		}
		if d.SpecificHeat <= 0 {
			return nil, fmt.Errorf("gases.json: %s: specific_heat must be > 0", d.ID)
		}
		c.Defs[s] = d
		seen++
	}
	if seen != int(Count) {
		return nil, fmt.Errorf("gases.json: expected %d species, got %d", Count, seen)
	}

	sum := sha256.Sum256(raw)
	c.Digest = hex.EncodeToString(sum[:])
	return &c, nil
}

// Builtin returns a catalog with the standard physical constants, for tests
// and for running without a config directory.
func Builtin() *Catalog {
	defs := []SpeciesDef{
		{ID: "OXYGEN", Name: "Oxygen", SpecificHeat: 20, MolarMass: 32, Oxidizer: true},
		{ID: "NITROGEN", Name: "Nitrogen", SpecificHeat: 20, MolarMass: 28},
		{ID: "CARBON_DIOXIDE", Name: "Carbon Dioxide", SpecificHeat: 30, MolarMass: 44},
		{ID: "PLASMA", Name: "Plasma", SpecificHeat: 200, MolarMass: 120, Fuel: true},
		{ID: "TRITIUM", Name: "Tritium", SpecificHeat: 10, MolarMass: 6, Fuel: true},
		{ID: "WATER_VAPOUR", Name: "Water Vapour", SpecificHeat: 40, MolarMass: 18},
		{ID: "NITROUS_OXIDE", Name: "Nitrous Oxide", SpecificHeat: 40, MolarMass: 44},
		{ID: "FREZON", Name: "Frezon", SpecificHeat: 600, MolarMass: 400},
	}
	var c Catalog
	for _, d := range defs {
		c.Defs[ordinals[d.ID]] = d
	}
	raw, _ := json.Marshal(defs)
	sum := sha256.Sum256(raw)
	c.Digest = hex.EncodeToString(sum[:])
	return &c
}
