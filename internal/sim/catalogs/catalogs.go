package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// TypeID identifies a facility type. Built-in types occupy the low ids;
// types registered through facilities.json are assigned ids past them.
type TypeID uint16

const (
	TypeLobby TypeID = iota
	TypeOffice
	TypeResidential
	TypeRestaurant
	TypeRetail
	TypeHotel
	TypeTheater
	TypeArcade
	TypeConferenceHall
	TypeElevator
)

const builtinTypeCount = int(TypeElevator) + 1

type EffectKind string

const (
	EffectRevenue      EffectKind = "REVENUE"
	EffectSatisfaction EffectKind = "SATISFACTION"
	EffectTraffic      EffectKind = "TRAFFIC"
)

type Catalogs struct {
	Facilities FacilityCatalog
	Adjacency  AdjacencyCatalog
}

type FacilityCatalog struct {
	Palette       []string // type keys, built-ins first in id order
	Index         map[string]TypeID
	Defs          map[TypeID]TypeDef
	PaletteDigest string
	DefsDigest    string
}

// TypeDef carries the static economics of one facility type. Width and
// Capacity are the defaults applied when a caller passes zero.
type TypeDef struct {
	Key                string `json:"key"`
	Name               string `json:"name"`
	Width              int    `json:"width"`
	Capacity           int    `json:"capacity"`
	BuildCost          int64  `json:"build_cost"`
	ReplacementCost    int64  `json:"replacement_cost"`
	RevenuePerOccupant int64  `json:"revenue_per_occupant"`
}

type AdjacencyCatalog struct {
	Rules  map[RulePair]AdjacencyRule
	Digest string
}

// RulePair orders an adjacency rule: the effect applies to the Subject
// facility when a Neighbor facility sits next to it.
type RulePair struct {
	Subject  TypeID
	Neighbor TypeID
}

type AdjacencyRule struct {
	Kind        EffectKind
	Magnitude   float64
	Description string
}

var builtinDefs = [builtinTypeCount]TypeDef{
	TypeLobby:          {Key: "LOBBY", Name: "Lobby", Width: 4, Capacity: 50, BuildCost: 2000, ReplacementCost: 2000},
	TypeOffice:         {Key: "OFFICE", Name: "Office", Width: 3, Capacity: 6, BuildCost: 4000, ReplacementCost: 4000, RevenuePerOccupant: 15},
	TypeResidential:    {Key: "RESIDENTIAL", Name: "Condo", Width: 2, Capacity: 3, BuildCost: 3000, ReplacementCost: 3000, RevenuePerOccupant: 8},
	TypeRestaurant:     {Key: "RESTAURANT", Name: "Restaurant", Width: 4, Capacity: 24, BuildCost: 6000, ReplacementCost: 6000, RevenuePerOccupant: 12},
	TypeRetail:         {Key: "RETAIL", Name: "Shop", Width: 2, Capacity: 12, BuildCost: 3500, ReplacementCost: 3500, RevenuePerOccupant: 10},
	TypeHotel:          {Key: "HOTEL", Name: "Hotel Suite", Width: 2, Capacity: 2, BuildCost: 5000, ReplacementCost: 5000, RevenuePerOccupant: 20},
	TypeTheater:        {Key: "THEATER", Name: "Theater", Width: 6, Capacity: 60, BuildCost: 12000, ReplacementCost: 12000, RevenuePerOccupant: 6},
	TypeArcade:         {Key: "ARCADE", Name: "Arcade", Width: 3, Capacity: 20, BuildCost: 4500, ReplacementCost: 4500, RevenuePerOccupant: 9},
	TypeConferenceHall: {Key: "CONFERENCE_HALL", Name: "Conference Hall", Width: 5, Capacity: 40, BuildCost: 9000, ReplacementCost: 9000, RevenuePerOccupant: 11},
	TypeElevator:       {Key: "ELEVATOR", Name: "Elevator", Width: 1, Capacity: 8, BuildCost: 2500, ReplacementCost: 2500},
}

var builtinRules = map[RulePair]AdjacencyRule{
	{TypeRestaurant, TypeTheater}:     {EffectRevenue, 0.10, "dinner and a show"},
	{TypeResidential, TypeArcade}:     {EffectSatisfaction, -0.08, "arcade noise next door"},
	{TypeRetail, TypeRetail}:          {EffectTraffic, 0.05, "shopping district"},
	{TypeConferenceHall, TypeHotel}:   {EffectRevenue, 0.10, "convention guests"},
	{TypeHotel, TypeConferenceHall}:   {EffectRevenue, 0.08, "business travelers"},
	{TypeHotel, TypeTheater}:          {EffectRevenue, 0.06, "evening entertainment"},
	{TypeOffice, TypeRestaurant}:      {EffectSatisfaction, 0.04, "lunch options"},
	{TypeResidential, TypeRestaurant}: {EffectSatisfaction, 0.05, "dining downstairs"},
}

// Builtin returns catalogs holding only the compiled-in types and rules.
// Digests cover empty config files so a modded and an unmodded run are
// distinguishable.
func Builtin() *Catalogs {
	var c Catalogs
	c.Facilities.rebuild(nil)
	c.Facilities.DefsDigest = sha256Hex(nil)
	c.Adjacency.Rules = make(map[RulePair]AdjacencyRule, len(builtinRules))
	for p, r := range builtinRules {
		c.Adjacency.Rules[p] = r
	}
	c.Adjacency.Digest = sha256Hex(nil)
	return &c
}

// Load reads facilities.json and adjacency.json from configDir and merges
// them over the built-ins. Both files are optional.
func Load(configDir string) (*Catalogs, error) {
	c := Builtin()
	if err := c.loadFacilities(filepath.Join(configDir, "facilities.json")); err != nil {
		return nil, err
	}
	if err := c.loadAdjacency(filepath.Join(configDir, "adjacency.json")); err != nil {
		return nil, err
	}
	return c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (c *Catalogs) loadFacilities(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	c.Facilities.DefsDigest = sha256Hex(raw)

	var defs []TypeDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("facilities.json: %w", err)
	}
	for _, d := range defs {
		if d.Key == "" {
			return fmt.Errorf("facilities.json: empty key")
		}
		if d.Width < 1 || d.Capacity < 0 {
			return fmt.Errorf("facilities.json: %s: bad width/capacity", d.Key)
		}
	}
	c.Facilities.rebuild(defs)
	return nil
}

// rebuild assigns TypeIDs: built-ins keep their compiled ids, registered
// keys get the ids past them in sorted order. A registered def whose key
// matches a built-in overrides that built-in's economics instead.
func (fc *FacilityCatalog) rebuild(registered []TypeDef) {
	fc.Defs = make(map[TypeID]TypeDef, builtinTypeCount+len(registered))
	fc.Index = make(map[string]TypeID, builtinTypeCount+len(registered))
	for i, d := range builtinDefs {
		fc.Defs[TypeID(i)] = d
		fc.Index[d.Key] = TypeID(i)
	}

	extras := make([]TypeDef, 0, len(registered))
	for _, d := range registered {
		if id, ok := fc.Index[d.Key]; ok {
			fc.Defs[id] = d
			continue
		}
		extras = append(extras, d)
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i].Key < extras[j].Key })
	for _, d := range extras {
		id := TypeID(len(fc.Defs))
		fc.Defs[id] = d
		fc.Index[d.Key] = id
	}

	fc.Palette = make([]string, len(fc.Defs))
	for id, d := range fc.Defs {
		fc.Palette[id] = d.Key
	}
	palJSON, _ := json.Marshal(fc.Palette)
	fc.PaletteDigest = sha256Hex(palJSON)
}

type ruleJSON struct {
	Subject     string  `json:"subject"`
	Neighbor    string  `json:"neighbor"`
	Kind        string  `json:"kind"`
	Magnitude   float64 `json:"magnitude"`
	Description string  `json:"description"`
}

func (c *Catalogs) loadAdjacency(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	c.Adjacency.Digest = sha256Hex(raw)

	var rules []ruleJSON
	if err := json.Unmarshal(raw, &rules); err != nil {
		return fmt.Errorf("adjacency.json: %w", err)
	}
	for _, r := range rules {
		subject, ok := c.Facilities.Index[r.Subject]
		if !ok {
			return fmt.Errorf("adjacency.json: unknown type %q", r.Subject)
		}
		neighbor, ok := c.Facilities.Index[r.Neighbor]
		if !ok {
			return fmt.Errorf("adjacency.json: unknown type %q", r.Neighbor)
		}
		kind := EffectKind(r.Kind)
		switch kind {
		case EffectRevenue, EffectSatisfaction, EffectTraffic:
		default:
			return fmt.Errorf("adjacency.json: unknown kind %q", r.Kind)
		}
		if r.Description == "" {
			return fmt.Errorf("adjacency.json: %s/%s: empty description", r.Subject, r.Neighbor)
		}
		c.Adjacency.Rules[RulePair{subject, neighbor}] = AdjacencyRule{kind, r.Magnitude, r.Description}
	}
	return nil
}

// Def returns the type's static definition. Unknown ids fall back to the
// office type so pricing stays total after partial state loss.
func (fc *FacilityCatalog) Def(t TypeID) TypeDef {
	if d, ok := fc.Defs[t]; ok {
		return d
	}
	return fc.Defs[TypeOffice]
}

// Known reports whether the id resolves to a registered type.
func (fc *FacilityCatalog) Known(t TypeID) bool {
	_, ok := fc.Defs[t]
	return ok
}

// Lookup resolves a stable type key to its id.
func (fc *FacilityCatalog) Lookup(key string) (TypeID, bool) {
	id, ok := fc.Index[key]
	return id, ok
}

// ReplacementCosts snapshots the per-type replacement cost table. The
// demolish command captures this so an undo prices against the costs in
// force at demolition time.
func (fc *FacilityCatalog) ReplacementCosts() map[TypeID]int64 {
	out := make(map[TypeID]int64, len(fc.Defs))
	for id, d := range fc.Defs {
		out[id] = d.ReplacementCost
	}
	return out
}

// Rule returns the effect a Neighbor-typed facility applies to a
// Subject-typed one, if any.
func (ac *AdjacencyCatalog) Rule(subject, neighbor TypeID) (AdjacencyRule, bool) {
	r, ok := ac.Rules[RulePair{subject, neighbor}]
	return r, ok
}
