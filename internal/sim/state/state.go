// Package state holds the immutable game snapshot the engine threads through
// every call. No method mutates its receiver; each update clones what it
// touches and returns a new value, so recursive callers can safely keep
// several "current state" variables alive at once.
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/eseidel/better-idle-sub009/internal/sim/catalogs"
)

type GameState struct {
	Gold      int64            `json:"gold"`
	Inventory Inventory        `json:"inventory"`
	SkillXP   map[string]int64 `json:"skill_xp,omitempty"`
	MasteryXP map[string]int64 `json:"mastery_xp,omitempty"`
	Purchases map[string]int   `json:"purchases,omitempty"`
	Active    *ActiveAction    `json:"active,omitempty"`
}

type ActiveAction struct {
	ActionID      string `json:"action_id"`
	ProgressTicks int    `json:"progress_ticks"`
	DurationTicks int    `json:"duration_ticks"`
}

type Inventory struct {
	Capacity int            `json:"capacity"`
	Stacks   map[string]int `json:"stacks,omitempty"`
}

func New(capacity int) GameState {
	return GameState{Inventory: Inventory{Capacity: capacity}}
}

// --- inventory ---

func (inv Inventory) Count(item string) int { return inv.Stacks[item] }

func (inv Inventory) UsedSlots() int { return len(inv.Stacks) }

// CanAdd reports whether one or more of item fits: an existing stack may
// always grow, a new stack needs a free slot.
func (inv Inventory) CanAdd(item string) bool {
	if _, ok := inv.Stacks[item]; ok {
		return true
	}
	return len(inv.Stacks) < inv.Capacity
}

func (inv Inventory) clone() Inventory {
	out := Inventory{Capacity: inv.Capacity, Stacks: make(map[string]int, len(inv.Stacks))}
	for k, v := range inv.Stacks {
		out.Stacks[k] = v
	}
	return out
}

func (s GameState) Count(item string) int { return s.Inventory.Count(item) }

// WithItemAdded returns the state with n of item added. ok is false and the
// state unchanged when the item would need a slot the inventory doesn't have.
func (s GameState) WithItemAdded(item string, n int) (GameState, bool) {
	if n <= 0 {
		return s, true
	}
	if !s.Inventory.CanAdd(item) {
		return s, false
	}
	inv := s.Inventory.clone()
	inv.Stacks[item] += n
	s.Inventory = inv
	return s, true
}

// WithItemRemoved returns the state with n of item removed; ok is false and
// the state unchanged when fewer than n are held. Empty stacks free the slot.
func (s GameState) WithItemRemoved(item string, n int) (GameState, bool) {
	if n <= 0 {
		return s, true
	}
	if s.Inventory.Count(item) < n {
		return s, false
	}
	inv := s.Inventory.clone()
	inv.Stacks[item] -= n
	if inv.Stacks[item] == 0 {
		delete(inv.Stacks, item)
	}
	s.Inventory = inv
	return s, true
}

// --- gold, xp, purchases ---

func (s GameState) WithGold(gold int64) GameState {
	s.Gold = gold
	return s
}

func (s GameState) WithSkillXPAdded(skill string, xp int64) GameState {
	if xp <= 0 {
		return s
	}
	m := make(map[string]int64, len(s.SkillXP)+1)
	for k, v := range s.SkillXP {
		m[k] = v
	}
	m[skill] += xp
	s.SkillXP = m
	return s
}

func (s GameState) WithMasteryXPAdded(actionID string, xp int64) GameState {
	if xp <= 0 {
		return s
	}
	m := make(map[string]int64, len(s.MasteryXP)+1)
	for k, v := range s.MasteryXP {
		m[k] = v
	}
	m[actionID] += xp
	s.MasteryXP = m
	return s
}

func (s GameState) WithPurchase(id string) GameState {
	m := make(map[string]int, len(s.Purchases)+1)
	for k, v := range s.Purchases {
		m[k] = v
	}
	m[id]++
	s.Purchases = m
	return s
}

// SkillLevel returns the level for the skill's accumulated XP.
func (s GameState) SkillLevel(skill string) int {
	return LevelForXP(s.SkillXP[skill])
}

// --- active action ---

func (s GameState) WithActive(actionID string, durationTicks int) GameState {
	s.Active = &ActiveAction{ActionID: actionID, DurationTicks: durationTicks}
	return s
}

func (s GameState) WithActiveCleared() GameState {
	s.Active = nil
	return s
}

func (s GameState) WithProgress(ticks, duration int) GameState {
	if s.Active == nil {
		return s
	}
	a := *s.Active
	a.ProgressTicks = ticks
	a.DurationTicks = duration
	s.Active = &a
	return s
}

// --- action affordances ---

// HasInputs reports whether one completion of def can be paid for.
func (s GameState) HasInputs(def catalogs.ActionDef) bool {
	for _, in := range def.Inputs {
		if s.Count(in.Item) < in.Count {
			return false
		}
	}
	return true
}

// MissingInput returns the first input item the state cannot cover.
func (s GameState) MissingInput(def catalogs.ActionDef) (string, bool) {
	for _, in := range def.Inputs {
		if s.Count(in.Item) < in.Count {
			return in.Item, true
		}
	}
	return "", false
}

// CanHoldOutputs reports whether one completion's deterministic outputs fit.
func (s GameState) CanHoldOutputs(def catalogs.ActionDef) bool {
	for _, out := range def.Outputs {
		if !s.Inventory.CanAdd(out.Item) {
			return false
		}
	}
	return true
}

// Unlocked reports whether the action's level requirement is met.
func (s GameState) Unlocked(def catalogs.ActionDef) bool {
	return s.SkillLevel(def.Skill) >= def.LevelRequired
}

// Digest is a cheap content hash over the canonical JSON encoding; map keys
// marshal sorted, so equal states digest equally.
func (s GameState) Digest() string {
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
