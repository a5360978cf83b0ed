// Package policy places gRPC methods into named groups and attaches the rules
// the server enforces for each group: the caller scope it needs and an
// optional per-caller rate limit.
package policy

import (
	"regexp"
	"time"
)

// RateLimitRule allows at most MaxRequests per Window for each caller.
type RateLimitRule struct {
	MaxRequests int
	Window      time.Duration
}

// Policy is what applies to every method of a group.
type Policy struct {
	// Scope is the caller scope the group needs. Empty means any
	// authenticated caller.
	Scope string

	// RateLimit replaces the server-wide limit for the group when set.
	RateLimit *RateLimitRule
}

type matchKind int

// Lower kinds win.
const (
	kindExact matchKind = iota
	kindPrefix
	kindRegex
)

type rule struct {
	kind    matchKind
	pattern string
	re      *regexp.Regexp
}

// GroupBuilder collects the rules of one group.
type GroupBuilder struct {
	name   string
	rules  []rule
	policy Policy
}

// Group starts a group called name.
func Group(name string) *GroupBuilder {
	return &GroupBuilder{name: name}
}

// Exact matches one full method name, e.g. "/rawr.Economy/Balance".
func (g *GroupBuilder) Exact(fullMethod string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindExact, pattern: fullMethod})
	return g
}

// Prefix matches every method starting with prefix, e.g. "/rawr.Economy/".
func (g *GroupBuilder) Prefix(prefix string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindPrefix, pattern: prefix})
	return g
}

// Regex matches methods containing a match of expr. It panics on an invalid
// expression, like regexp.MustCompile.
func (g *GroupBuilder) Regex(expr string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindRegex, pattern: expr, re: regexp.MustCompile(expr)})
	return g
}

// Policy sets the group's policy.
func (g *GroupBuilder) Policy(p Policy) *GroupBuilder {
	g.policy = p
	return g
}
