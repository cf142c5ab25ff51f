package state

import "math"

// MaxLevel caps skill progression.
const MaxLevel = 99

var xpTable = buildXPTable()

// buildXPTable computes cumulative XP thresholds: xpTable[l-1] is the XP at
// which level l is reached. Uses the classic quarter-sum curve.
func buildXPTable() [MaxLevel]int64 {
	var table [MaxLevel]int64
	var points float64
	for l := 1; l <= MaxLevel; l++ {
		table[l-1] = int64(points / 4)
		points += math.Floor(float64(l) + 300*math.Pow(2, float64(l)/7))
	}
	return table
}

// LevelForXP maps accumulated XP to a level in [1, MaxLevel].
func LevelForXP(xp int64) int {
	if xp < 0 {
		return 1
	}
	lo, hi := 0, MaxLevel-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if xpTable[mid] <= xp {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}

// XPForLevel returns the XP threshold at which level is reached.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return xpTable[level-1]
}
