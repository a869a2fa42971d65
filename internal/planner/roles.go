package planner

import "github.com/planora-ai/planora/models"

// planWeights is the default allocation of a 30-item batch across the six
// intent roles. The distribution is a target handed to the generation
// backend, not a hard constraint on its output.
var planWeights = map[models.IntentRole]int{
	models.RoleCoreAnswer:       6,
	models.RoleDecision:         5,
	models.RoleComparison:       6,
	models.RoleProblemSpecific:  7,
	models.RoleEmotionalUseCase: 3,
	models.RoleAuthorityEdge:    3,
}

// roleDescriptions are handed to the generation prompt so candidates land in
// the intended strategic category.
var roleDescriptions = map[models.IntentRole]string{
	models.RoleCoreAnswer:       `definitional content ("what is / how does X work")`,
	models.RoleDecision:         `trust content ("should I use X / is X worth it")`,
	models.RoleComparison:       `commercial content ("X vs Y / best tools")`,
	models.RoleProblemSpecific:  `long-tail coverage ("fix [specific issue]")`,
	models.RoleEmotionalUseCase: `personal or narrative stories, backlink-oriented`,
	models.RoleAuthorityEdge:    `deep expertise, edge cases, failure modes`,
}

// Allocation scales the weight table to the requested batch size using
// largest-remainder rounding, so counts always sum to n exactly. With the
// default batch size of 30 the weights pass through unchanged.
func Allocation(n int) map[models.IntentRole]int {
	total := 0
	for _, w := range planWeights {
		total += w
	}
	out := make(map[models.IntentRole]int, len(planWeights))
	if n <= 0 {
		return out
	}

	type remainder struct {
		role models.IntentRole
		frac float64
	}
	assigned := 0
	remainders := make([]remainder, 0, len(models.IntentRoles))
	for _, role := range models.IntentRoles {
		exact := float64(planWeights[role]*n) / float64(total)
		base := int(exact)
		out[role] = base
		assigned += base
		remainders = append(remainders, remainder{role: role, frac: exact - float64(base)})
	}
	// Hand leftover slots to the largest fractional parts; canonical role
	// order breaks ties so the allocation is deterministic.
	for assigned < n {
		best := -1
		for i, r := range remainders {
			if best == -1 || r.frac > remainders[best].frac {
				best = i
			}
		}
		out[remainders[best].role]++
		remainders[best].frac = -1
		assigned++
	}
	return out
}
