package migration

import (
	"github.com/loykin/migrado/internal/script"
)

// Direction is the way migrations are applied.
type Direction = script.Direction

const (
	DirectionNone    = script.None
	DirectionForward = script.Forward
	DirectionReverse = script.Reverse
)

// Select returns the direction and ids needed to move from current to
// target. Ids compare as strings, which matches numeric order because they
// are fixed width. target must be one of ids or the initial state.
func Select(current, target string, ids []string) (Direction, []string) {
	var out []string
	switch {
	case target > current:
		for _, id := range ids {
			if current < id && id <= target {
				out = append(out, id)
			}
		}
		return DirectionForward, out
	case target < current:
		for i := len(ids) - 1; i >= 0; i-- {
			if id := ids[i]; target < id && id <= current {
				out = append(out, id)
			}
		}
		return DirectionReverse, out
	default:
		return DirectionNone, nil
	}
}
