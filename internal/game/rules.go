package game

const (
	MinPlayers = 5
	MaxPlayers = 12

	// Rounds is the number of missions in one game.
	Rounds = 5
	// WinsNeeded is how many passed (or failed) missions end the game.
	WinsNeeded = 3
	// MaxConsecutiveRejections ends the game in favour of the spies.
	MaxConsecutiveRejections = 5
)

var teamSizes = map[int][Rounds]int{
	5:  {2, 3, 2, 3, 3},
	6:  {2, 3, 4, 3, 4},
	7:  {2, 3, 3, 4, 4},
	8:  {3, 4, 4, 5, 5},
	9:  {3, 4, 4, 5, 5},
	10: {3, 4, 4, 5, 5},
	11: {4, 5, 5, 5, 6},
	12: {4, 5, 5, 6, 6},
}

// TeamSizes returns the mission team size for every round. Counts outside the
// table fall back to the five-player sizes.
func TeamSizes(n int) []int {
	sizes, ok := teamSizes[n]
	if !ok {
		sizes = teamSizes[MinPlayers]
	}
	return sizes[:]
}

// NumSpies returns how many spies a game of n players gets.
func NumSpies(n int) int {
	switch {
	case n <= 6:
		return 2
	case n <= 9:
		return 3
	case n <= 11:
		return 4
	default:
		return 5
	}
}

// FailsRequired returns, per round, how many fail cards sink the mission.
// From seven players on, the fourth mission needs two.
func FailsRequired(n int) []int {
	if n >= 7 {
		return []int{1, 1, 1, 2, 1}
	}
	return []int{1, 1, 1, 1, 1}
}
