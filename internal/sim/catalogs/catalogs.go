// Package catalogs loads the static game registries: actions, items and shop
// upgrades. Definitions are JSON files; each file's raw bytes are digested so
// a run can record exactly which data it executed against.
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

type Catalogs struct {
	Actions ActionCatalog
	Items   ItemCatalog
	Shop    ShopCatalog
}

type ActionCatalog struct {
	ByID   map[string]ActionDef
	Digest string

	producersByItem map[string][]string
}

type ActionDef struct {
	ID            string      `json:"id"`
	Skill         string      `json:"skill"`
	Name          string      `json:"name"`
	LevelRequired int         `json:"level_required"`
	DurationTicks int         `json:"duration_ticks"`
	JitterTicks   int         `json:"jitter_ticks,omitempty"`
	XP            int         `json:"xp"`
	Inputs        []ItemCount `json:"inputs,omitempty"`
	Outputs       []ItemCount `json:"outputs,omitempty"`
	Drops         []DropDef   `json:"drops,omitempty"`
	DeathChance   float64     `json:"death_chance,omitempty"`
}

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type DropDef struct {
	Item   string  `json:"item"`
	Count  int     `json:"count"`
	Chance float64 `json:"chance"`
}

type ItemCatalog struct {
	ByID   map[string]ItemDef
	Digest string
}

type ItemDef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SellValue int64  `json:"sell_value"`
}

type ShopCatalog struct {
	ByID   map[string]ShopDef
	Digest string
}

type ShopDef struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CostGold      int64  `json:"cost_gold"`
	Skill         string `json:"skill,omitempty"`
	LevelRequired int    `json:"level_required,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var actions []ActionDef
	actDigest, err := loadJSON(filepath.Join(configDir, "actions.json"), &actions)
	if err != nil {
		return nil, err
	}
	var items []ItemDef
	itemDigest, err := loadJSON(filepath.Join(configDir, "items.json"), &items)
	if err != nil {
		return nil, err
	}
	var shop []ShopDef
	shopDigest, err := loadJSON(filepath.Join(configDir, "shop.json"), &shop)
	if err != nil {
		return nil, err
	}

	c, err := Build(actions, items, shop)
	if err != nil {
		return nil, err
	}
	c.Actions.Digest = actDigest
	c.Items.Digest = itemDigest
	c.Shop.Digest = shopDigest
	return c, nil
}

// Build assembles catalogs from in-memory defs. Tests construct fixtures
// through here without touching disk.
func Build(actions []ActionDef, items []ItemDef, shop []ShopDef) (*Catalogs, error) {
	var c Catalogs

	c.Actions.ByID = map[string]ActionDef{}
	for _, a := range actions {
		if a.ID == "" {
			return nil, fmt.Errorf("actions: empty id")
		}
		if a.DurationTicks <= 0 {
			return nil, fmt.Errorf("action %s: duration_ticks must be positive", a.ID)
		}
		if _, dup := c.Actions.ByID[a.ID]; dup {
			return nil, fmt.Errorf("actions: duplicate id %s", a.ID)
		}
		c.Actions.ByID[a.ID] = a
	}

	c.Items.ByID = map[string]ItemDef{}
	for _, it := range items {
		if it.ID == "" {
			return nil, fmt.Errorf("items: empty id")
		}
		c.Items.ByID[it.ID] = it
	}

	c.Shop.ByID = map[string]ShopDef{}
	for _, s := range shop {
		if s.ID == "" {
			return nil, fmt.Errorf("shop: empty id")
		}
		c.Shop.ByID[s.ID] = s
	}

	c.Actions.producersByItem = buildProducerIndex(c.Actions.ByID)
	return &c, nil
}

// ProducersOf lists action ids whose deterministic outputs include item,
// ordered by level requirement descending then id, so "best producer" scans
// are stable across runs.
func (ac *ActionCatalog) ProducersOf(item string) []string {
	return ac.producersByItem[item]
}

func (ac *ActionCatalog) Action(id string) (ActionDef, bool) {
	d, ok := ac.ByID[id]
	return d, ok
}

func (sc *ShopCatalog) Upgrade(id string) (ShopDef, bool) {
	d, ok := sc.ByID[id]
	return d, ok
}

// OutputCount returns how many of item one completion yields from the
// action's deterministic outputs. Drops are excluded; they are bonus yield.
func (a ActionDef) OutputCount(item string) int {
	for _, out := range a.Outputs {
		if out.Item == item {
			return out.Count
		}
	}
	return 0
}

// InputCount returns how many of item one completion consumes.
func (a ActionDef) InputCount(item string) int {
	for _, in := range a.Inputs {
		if in.Item == item {
			return in.Count
		}
	}
	return 0
}

func buildProducerIndex(byID map[string]ActionDef) map[string][]string {
	idx := map[string][]string{}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, out := range byID[id].Outputs {
			idx[out.Item] = append(idx[out.Item], id)
		}
	}
	for item, producers := range idx {
		ps := producers
		sort.Slice(ps, func(i, j int) bool {
			a, b := byID[ps[i]], byID[ps[j]]
			if a.LevelRequired != b.LevelRequired {
				return a.LevelRequired > b.LevelRequired
			}
			return ps[i] < ps[j]
		})
		idx[item] = ps
	}
	return idx
}

func loadJSON(path string, out any) (digest string, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
