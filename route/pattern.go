package route

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenParam
	tokenWildcard
)

type patternToken struct {
	kind    tokenKind
	literal string // literal text or parameter name
}

// Pattern is a parsed path template. Tokens are literals, single-segment
// parameters ("{name}") or a final greedy wildcard ("*").
type Pattern struct {
	raw      string
	tokens   []patternToken
	wildcard bool
}

// ParsePattern compiles a path template. A wildcard anywhere but the final
// position is a configuration error.
func ParsePattern(raw string) (*Pattern, error) {
	if raw == "" || raw[0] != '/' {
		return nil, fmt.Errorf("route: pattern %q must start with '/'", raw)
	}
	segments := strings.Split(raw[1:], "/")
	p := &Pattern{raw: raw}
	for i, seg := range segments {
		switch {
		case seg == "*":
			if i != len(segments)-1 {
				return nil, fmt.Errorf("route: pattern %q has a non-final wildcard", raw)
			}
			p.tokens = append(p.tokens, patternToken{kind: tokenWildcard})
			p.wildcard = true
		case len(seg) > 1 && seg[0] == '{' && seg[len(seg)-1] == '}':
			name := seg[1 : len(seg)-1]
			if name == "" {
				return nil, fmt.Errorf("route: pattern %q has an unnamed parameter", raw)
			}
			p.tokens = append(p.tokens, patternToken{kind: tokenParam, literal: name})
		default:
			p.tokens = append(p.tokens, patternToken{kind: tokenLiteral, literal: seg})
		}
	}
	return p, nil
}

// MustParsePattern is ParsePattern for statically known templates.
func MustParsePattern(raw string) *Pattern {
	p, err := ParsePattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the template source text.
func (p *Pattern) String() string { return p.raw }

// PathMatch holds the captures of a successful match.
type PathMatch struct {
	// Params maps parameter names to the segment each captured.
	Params map[string]string
	// Wildcard is the joined suffix a final "*" consumed, without a
	// leading slash.
	Wildcard string
}

// Match tests path against the template. Literals compare case-sensitively;
// a parameter takes exactly one non-empty segment; the wildcard takes one or
// more remaining segments greedily.
func (p *Pattern) Match(path string) (*PathMatch, bool) {
	if path == "" || path[0] != '/' {
		return nil, false
	}
	segments := strings.Split(path[1:], "/")

	m := &PathMatch{}
	for i, tok := range p.tokens {
		switch tok.kind {
		case tokenWildcard:
			rest := segments[i:]
			if len(rest) == 0 || (len(rest) == 1 && rest[0] == "") {
				return nil, false
			}
			m.Wildcard = strings.Join(rest, "/")
			return m, true
		case tokenParam:
			if i >= len(segments) || segments[i] == "" {
				return nil, false
			}
			if m.Params == nil {
				m.Params = make(map[string]string)
			}
			m.Params[tok.literal] = segments[i]
		case tokenLiteral:
			if i >= len(segments) || segments[i] != tok.literal {
				return nil, false
			}
		}
	}
	if len(segments) != len(p.tokens) {
		return nil, false
	}
	return m, true
}
