package peer

// Participant identifies one side of a prospective media link.
type Participant struct {
	ID     string
	IsHost bool
}

// ShouldInitiate decides which side of a pair dials the other. The host
// always calls participants; among peers of equal rank only the side
// with the smaller id calls. The comparator is deterministic, so for any
// pair exactly one side initiates and glare is a race, not the rule.
func ShouldInitiate(local, remote Participant) bool {
	if local.ID == remote.ID {
		return false
	}
	if local.IsHost != remote.IsHost {
		return local.IsHost
	}
	return local.ID < remote.ID
}
