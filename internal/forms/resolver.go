package forms

import (
	"strconv"

	"github.com/google/uuid"
)

// RuleKind distinguishes the two placement rule shapes.
type RuleKind string

const (
	// RuleStatic lists explicit 1-based session ordinals.
	RuleStatic RuleKind = "static"
	// RuleDynamic uses a stride or a symbolic position.
	RuleDynamic RuleKind = "dynamic"
)

// Symbolic positions accepted by dynamic rules.
const (
	SymbolFirst        = "1"
	SymbolLast         = "-1"
	SymbolSecondToLast = "-2"
	SymbolEvery        = "..."
)

// Rule attaches one assessment form to sessions. Static rules carry Positions;
// dynamic rules carry either Stride (every k-th session) or Symbol.
type Rule struct {
	FormID    uuid.UUID
	Kind      RuleKind
	Positions []int
	Stride    int
	Symbol    string
}

// SessionRef is the slice of a session the resolver needs. Report sessions
// never receive forms; ordinals count regular sessions only.
type SessionRef struct {
	ID       uuid.UUID
	Position int
	IsReport bool
}

// Resolve maps each session id to the deduplicated set of form ids attached
// by the rules. Multiple rules targeting one session union their forms.
func Resolve(sessions []SessionRef, rules []Rule) map[uuid.UUID][]uuid.UUID {
	regular := make([]SessionRef, 0, len(sessions))
	for _, s := range sessions {
		if !s.IsReport {
			regular = append(regular, s)
		}
	}

	attached := make(map[uuid.UUID]map[uuid.UUID]struct{})
	attach := func(sessionID, formID uuid.UUID) {
		set, ok := attached[sessionID]
		if !ok {
			set = make(map[uuid.UUID]struct{})
			attached[sessionID] = set
		}
		set[formID] = struct{}{}
	}

	for _, rule := range rules {
		for _, s := range targetSessions(regular, rule) {
			attach(s.ID, rule.FormID)
		}
	}

	out := make(map[uuid.UUID][]uuid.UUID, len(attached))
	for sessionID, set := range attached {
		ids := make([]uuid.UUID, 0, len(set))
		for formID := range set {
			ids = append(ids, formID)
		}
		out[sessionID] = ids
	}
	return out
}

func targetSessions(regular []SessionRef, rule Rule) []SessionRef {
	switch rule.Kind {
	case RuleStatic:
		return byOrdinals(regular, rule.Positions)
	case RuleDynamic:
		if rule.Stride > 0 {
			var out []SessionRef
			for _, s := range regular {
				if s.Position%rule.Stride == 0 {
					out = append(out, s)
				}
			}
			return out
		}
		return bySymbol(regular, rule.Symbol)
	default:
		return nil
	}
}

func byOrdinals(regular []SessionRef, ordinals []int) []SessionRef {
	var out []SessionRef
	for _, ord := range ordinals {
		for _, s := range regular {
			if s.Position == ord {
				out = append(out, s)
			}
		}
	}
	return out
}

func bySymbol(regular []SessionRef, symbol string) []SessionRef {
	if len(regular) == 0 {
		return nil
	}
	switch symbol {
	case SymbolEvery:
		return regular
	case SymbolFirst:
		return byOrdinals(regular, []int{minPosition(regular)})
	case SymbolLast:
		return byOrdinals(regular, []int{maxPosition(regular)})
	case SymbolSecondToLast:
		max := maxPosition(regular)
		var out []SessionRef
		for _, s := range regular {
			if s.Position < max {
				out = keepIfHigher(out, s)
			}
		}
		return out
	default:
		// A bare number behaves like a one-element static rule.
		if ord, err := strconv.Atoi(symbol); err == nil && ord > 0 {
			return byOrdinals(regular, []int{ord})
		}
		return nil
	}
}

func keepIfHigher(current []SessionRef, s SessionRef) []SessionRef {
	if len(current) == 0 || s.Position > current[0].Position {
		return []SessionRef{s}
	}
	if s.Position == current[0].Position {
		return append(current, s)
	}
	return current
}

func minPosition(sessions []SessionRef) int {
	min := sessions[0].Position
	for _, s := range sessions[1:] {
		if s.Position < min {
			min = s.Position
		}
	}
	return min
}

func maxPosition(sessions []SessionRef) int {
	max := sessions[0].Position
	for _, s := range sessions[1:] {
		if s.Position > max {
			max = s.Position
		}
	}
	return max
}
