package preprocessor

// unset is the sentinel meaning "this attribute has not been filled in yet
// during backtracking", the generic-int analogue of the teacher's
// math.MaxUint64 sentinel in permutations_generator_implementation.go.
const unset = -1

// constrainedPermutationGenerator enumerates every tuple in a product of
// integer domains, pruning branches as soon as a constraint rejects a
// partially-filled tuple — the same predicate-gated backtracking the
// teacher's permutationGeneratorImplementation uses to avoid enumerating
// the full (period,day,lesson,subjectProfessor,group,room) space, here
// generalized to however many attributes the caller names.
type constrainedPermutationGenerator struct {
	domains []int
}

func newConstrainedPermutationGenerator(domains ...int) *constrainedPermutationGenerator {
	return &constrainedPermutationGenerator{domains: domains}
}

// constrainedPermutations returns every tuple that survives every
// constraint. A constraint receives the tuple being built with trailing
// unfilled positions set to unset and must return true for any tuple that
// might still become valid once those positions are filled.
func (g *constrainedPermutationGenerator) constrainedPermutations(constraints []func(tuple []int) bool) [][]int {
	tuples := make([][]int, 0)
	tuple := make([]int, len(g.domains))
	for i := range tuple {
		tuple[i] = unset
	}
	g.walk(constraints, 0, tuple, &tuples)
	return tuples
}

func (g *constrainedPermutationGenerator) walk(constraints []func(tuple []int) bool, position int, tuple []int, tuples *[][]int) {
	if position >= len(g.domains) {
		tupleCopy := make([]int, len(tuple))
		copy(tupleCopy, tuple)
		*tuples = append(*tuples, tupleCopy)
		return
	}

	for value := 0; value < g.domains[position]; value++ {
		tuple[position] = value

		violated := false
		for _, constraint := range constraints {
			if !constraint(tuple) {
				violated = true
				break
			}
		}
		if violated {
			continue
		}

		g.walk(constraints, position+1, tuple, tuples)
	}

	tuple[position] = unset
}
