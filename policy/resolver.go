package policy

// Match is the group a method resolved to.
type Match struct {
	Group  string
	Policy Policy
}

// Resolver maps full method names to groups. It is immutable after
// NewResolver and safe for concurrent use.
type Resolver struct {
	groups []*GroupBuilder
}

// NewResolver creates a Resolver over groups in registration order.
func NewResolver(groups ...*GroupBuilder) *Resolver {
	return &Resolver{groups: groups}
}

// Resolve returns the best group for fullMethod. Exact rules beat prefix
// rules, which beat regex rules; within a kind the longer match wins, and
// ties go to the group registered first.
func (r *Resolver) Resolve(fullMethod string) (Match, bool) {
	var (
		best     Match
		found    bool
		bestKind matchKind
		bestLen  int
	)
	if r == nil {
		return best, false
	}
	for _, g := range r.groups {
		for _, ru := range g.rules {
			ok, n := ru.match(fullMethod)
			if !ok {
				continue
			}
			if !found || ru.kind < bestKind || (ru.kind == bestKind && n > bestLen) {
				best = Match{Group: g.name, Policy: g.policy}
				found, bestKind, bestLen = true, ru.kind, n
			}
		}
	}
	return best, found
}

// Scope returns the scope fullMethod needs, or "" when its group needs none
// or it matches no group.
func (r *Resolver) Scope(fullMethod string) string {
	m, _ := r.Resolve(fullMethod)
	return m.Policy.Scope
}
