/*
resolution.go - Which team's stock absorbs a consumption event

PURPOSE:
  When a usage event names a material, some team's allocation has to absorb
  it. The rule for picking that team is a heuristic, and a deliberately
  swappable one: it is a plain strategy function so a stricter policy can be
  substituted without touching the usage-application write path.

DEFAULT RULE (RolePreferred):
  1. Prefer a team whose role equals the acting team's role and which
     already holds an allocation for the material (team list order).
  2. Otherwise any team holding the material, first found in team list order.
  3. Otherwise nil: no owner exists anywhere. The ledger then creates a new
     allocation under the ACTING team, but only behind an explicit operator
     confirmation.

KNOWN LIMITATION:
  Step 2 silently draws down a DIFFERENT team's stock. That is an accepted
  simplification for a small fleet where materials move between crews
  informally; operations that cannot accept it should run ExactTeam instead.
*/
package ledger

// OwnerMatch identifies the team allocation that would absorb a usage event.
// Allocation is a copy for inspection; mutation goes through the ledger.
type OwnerMatch struct {
	TeamID     string
	TeamName   string
	Allocation MaterialAllocation
}

// ResolveOwner picks the absorbing allocation for a material, or returns nil
// when no team anywhere holds it. Implementations must be pure: no mutation,
// stable result for the same inputs.
type ResolveOwner func(teams []Team, material string, acting *Team) *OwnerMatch

// RolePreferred is the default resolution rule: same-role holder first, then
// any holder, in team list order.
func RolePreferred(teams []Team, material string, acting *Team) *OwnerMatch {
	if acting != nil {
		for i := range teams {
			if teams[i].Role != acting.Role {
				continue
			}
			if m := matchIn(&teams[i], material); m != nil {
				return m
			}
		}
	}
	for i := range teams {
		if m := matchIn(&teams[i], material); m != nil {
			return m
		}
	}
	return nil
}

// ExactTeam is the strict alternative: only the acting team's own allocation
// qualifies. Anything else forces the operator-confirmed creation path.
func ExactTeam(teams []Team, material string, acting *Team) *OwnerMatch {
	if acting == nil {
		return nil
	}
	for i := range teams {
		if teams[i].ID != acting.ID {
			continue
		}
		return matchIn(&teams[i], material)
	}
	return nil
}

func matchIn(t *Team, material string) *OwnerMatch {
	for _, a := range t.Allocations {
		if a.Name == material {
			return &OwnerMatch{TeamID: t.ID, TeamName: t.Name, Allocation: a}
		}
	}
	return nil
}
