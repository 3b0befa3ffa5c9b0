// Package solver finds one-to-one assignments between items and candidate
// values. The checker uses it to decide which filesystem directories belong
// to which variable-named schema directories.
package solver

import "sort"

// DefaultMaxNodes bounds the backtracking search. The schemas the checker
// sees have single-digit numbers of ambiguous directories, so the bound is
// generous; it exists so a pathological input cannot spin forever.
const DefaultMaxNodes = 100000

// Solve determines a bijection from each item in candidates to one of its
// candidate values, such that no value is used twice and every item is
// assigned. Candidate sets may overlap freely.
//
// The second return value reports whether a complete assignment was found.
// When several valid bijections exist, one of them is returned; callers
// must not depend on which.
func Solve(candidates map[string][]string) (map[string]string, bool) {
	s := &search{budget: DefaultMaxNodes}
	return s.solve(copyCandidates(candidates))
}

// SolveWithBudget is Solve with an explicit node budget for the
// backtracking search. Exhausting the budget counts as failure.
func SolveWithBudget(candidates map[string][]string, maxNodes int) (map[string]string, bool) {
	s := &search{budget: maxNodes}
	return s.solve(copyCandidates(candidates))
}

type search struct {
	budget int
}

func (s *search) solve(remaining map[string]map[string]bool) (map[string]string, bool) {
	if s.budget <= 0 {
		return nil, false
	}
	s.budget--

	assigned := make(map[string]string, len(remaining))

	for len(remaining) > 0 {
		// Fail fast: an item with no remaining candidates can never be
		// assigned.
		for _, values := range remaining {
			if len(values) == 0 {
				return nil, false
			}
		}

		item, value, forced := forcedMove(remaining)
		if !forced {
			// No forced move: branch on the first unresolved item.
			return s.branch(remaining, assigned)
		}

		assigned[item] = value
		commit(remaining, item, value)
	}

	return assigned, true
}

// forcedMove finds an assignment implied by unit propagation: first a value
// that only one item can take, then an item with only one candidate left.
// Iteration is over sorted keys so the result is deterministic.
func forcedMove(remaining map[string]map[string]bool) (item, value string, ok bool) {
	items := sortedKeys(remaining)

	for _, v := range sortedValues(remaining) {
		holder := ""
		count := 0
		for _, it := range items {
			if remaining[it][v] {
				holder = it
				count++
			}
		}
		if count == 1 {
			return holder, v, true
		}
	}

	for _, it := range items {
		if len(remaining[it]) == 1 {
			for v := range remaining[it] {
				return it, v, true
			}
		}
	}

	return "", "", false
}

// branch speculatively assigns each candidate of the first unresolved item
// in turn and recurses on the reduced problem, accepting the first
// assignment that completes.
func (s *search) branch(remaining map[string]map[string]bool, assigned map[string]string) (map[string]string, bool) {
	items := sortedKeys(remaining)
	item := items[0]

	values := make([]string, 0, len(remaining[item]))
	for v := range remaining[item] {
		values = append(values, v)
	}
	sort.Strings(values)

	for _, v := range values {
		reduced := cloneState(remaining)
		commit(reduced, item, v)

		sub, ok := s.solve(reduced)
		if !ok {
			continue
		}
		result := make(map[string]string, len(assigned)+len(sub)+1)
		for k, val := range assigned {
			result[k] = val
		}
		for k, val := range sub {
			result[k] = val
		}
		result[item] = v
		return result, true
	}

	return nil, false
}

// commit removes the item from the problem and the value from every other
// candidate set.
func commit(remaining map[string]map[string]bool, item, value string) {
	delete(remaining, item)
	for _, values := range remaining {
		delete(values, value)
	}
}

func copyCandidates(candidates map[string][]string) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(candidates))
	for item, values := range candidates {
		set := make(map[string]bool, len(values))
		for _, v := range values {
			set[v] = true
		}
		out[item] = set
	}
	return out
}

func cloneState(state map[string]map[string]bool) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(state))
	for item, values := range state {
		set := make(map[string]bool, len(values))
		for v := range values {
			set[v] = true
		}
		out[item] = set
	}
	return out
}

func sortedKeys(m map[string]map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedValues(m map[string]map[string]bool) []string {
	seen := make(map[string]bool)
	var values []string
	for _, set := range m {
		for v := range set {
			if !seen[v] {
				seen[v] = true
				values = append(values, v)
			}
		}
	}
	sort.Strings(values)
	return values
}
