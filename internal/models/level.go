package models

// MemberLevel is the access level of a group membership. Levels are totally
// ordered: read < write < admin. The ordering lives in the rank table, never
// in declaration order.
type MemberLevel string

const (
	LevelRead  MemberLevel = "read"
	LevelWrite MemberLevel = "write"
	LevelAdmin MemberLevel = "admin"
)

var levelRanks = map[MemberLevel]int{
	LevelRead:  1,
	LevelWrite: 2,
	LevelAdmin: 3,
}

// IsValidLevel reports whether s names a known member level.
func IsValidLevel(s string) bool {
	_, ok := levelRanks[MemberLevel(s)]
	return ok
}

// Rank returns the ordinal of the level. Unknown levels rank zero, below
// every valid level.
func (l MemberLevel) Rank() int {
	return levelRanks[l]
}

// AtLeast reports whether l grants at least the access of other.
func (l MemberLevel) AtLeast(other MemberLevel) bool {
	return l.Rank() >= other.Rank() && l.Rank() > 0
}

// Above reports whether l grants strictly more access than other.
func (l MemberLevel) Above(other MemberLevel) bool {
	return l.Rank() > other.Rank()
}
