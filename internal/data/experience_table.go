package data

// MaxPlayerLevel is the absolute level cap (rank 4 and above).
const MaxPlayerLevel = 50

// LevelsPerRank is how many levels each rank unlocks.
const LevelsPerRank = 10

// rankNames indexed by rank.
var rankNames = [...]string{"凡胎", "觉醒", "宗师", "半神", "神话", "禁忌"}

// MaxLevelForRank returns min((rank+1)*10, MaxPlayerLevel).
func MaxLevelForRank(rank int) int {
	if rank < 0 {
		rank = 0
	}
	return min((rank+1)*LevelsPerRank, MaxPlayerLevel)
}

// ExpRequired returns the experience needed to advance from level to level+1:
// 100 + level*30 + floor(level^2 * 5).
func ExpRequired(level int) int {
	if level < 1 {
		level = 1
	}
	return 100 + level*30 + level*level*5
}

// RankUpCost returns the faith needed to advance from rank to rank+1.
func RankUpCost(rank int) int {
	return 100 * (rank + 1)
}

// RankName returns the display name of a rank, "" when out of range.
func RankName(rank int) string {
	if rank < 0 || rank >= len(rankNames) {
		return ""
	}
	return rankNames[rank]
}
