// Package lang turns the line-oriented Datalog surface syntax of spec.md §8
// (and SPEC_FULL.md §4.6) into package rule's IR, plus the two recognized
// meta-commands. It is grounded in the teacher's dlengine/engine.go draft (a
// hand lexer modeled on text/template/parse, and NamedVar/StringConst/
// BareConst/Pred wrapper types around a Var/Const/Pred core) but corrected
// into working code and retargeted at rule.Atom/rule.Rule instead of the
// teacher's own pointer-identity Clause/Literal unification types: this
// spec's execution model compiles a rule body to a Relation tree (package
// plan), it does not run SLD resolution over asserted clauses.
package lang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cozo-community/cozo/keyword"
	"github.com/cozo-community/cozo/rule"
	"github.com/cozo-community/cozo/schema"
	"github.com/cozo-community/cozo/value"
)

// ErrParse is this package's parse-error sentinel; it is the same sentinel
// rule.ErrParse names (spec.md §7), re-exported here so callers do not need
// to import package rule solely to check for it.
var ErrParse = rule.ErrParse

// Fact is one parsed attribute-triple fact line, not yet allocated against
// any particular storage transaction: `lang` only resolves surface syntax
// to values, leaving the conversion of the entity constant into an entity
// id to package engine, which uses the integer as the id directly.
type Fact struct {
	Attr   schema.Attribute
	Entity value.Value
	Val    value.Value
}

// NamedRule pairs a parsed rule.Rule with its head predicate name.
type NamedRule struct {
	Name keyword.Keyword
	Rule rule.Rule
}

// MetaKind distinguishes the two script-form meta-commands spec.md §6
// names: "::running" and "::kill $id".
type MetaKind int

const (
	MetaRunning MetaKind = iota
	MetaKill
)

// MetaCommand is one parsed meta-command line.
type MetaCommand struct {
	Kind   MetaKind
	KillID string // set only for MetaKill
}

// Program is everything one script compiles to: the facts to assert, the
// rules to add to a rule.DatalogProgram (in source order), and any
// meta-commands encountered.
type Program struct {
	Facts []Fact
	Rules []NamedRule
	Meta  []MetaCommand
}

// EntryName returns the head predicate name of the last rule in the script,
// by source order. Scripts in this surface syntax always end with the query
// the caller wants answered (spec.md §8 scenarios 2-3: intermediate rules
// like `tc` followed by a final `Q`); package engine aliases this rule's
// head into rule.EntryName so rule.DatalogProgram.Validate's "must define
// the distinguished entry predicate" invariant (spec.md §3) is satisfied
// without forcing script authors to literally write `?(...)`.
func (p *Program) EntryName() (keyword.Keyword, bool) {
	if len(p.Rules) == 0 {
		return keyword.Keyword{}, false
	}
	return p.Rules[len(p.Rules)-1].Name, true
}

// ParseProgram parses text (one statement per line) against registry
// (which distinguishes attribute-fact lines and AttrTriple body atoms from
// RuleApply body atoms, per SPEC_FULL.md §4.6) and vld (the validity
// context every parsed rule's AttrTriple reads are evaluated at).
func ParseProgram(text string, registry *schema.Registry, vld schema.Validity) (*Program, error) {
	prog := &Program{}
	for lineNo, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "::") {
			mc, err := parseMeta(line)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
			}
			prog.Meta = append(prog.Meta, mc)
			continue
		}
		if !strings.HasSuffix(line, ".") {
			return nil, fmt.Errorf("line %d: %w: statement must end with '.'", lineNo+1, ErrParse)
		}
		body := strings.TrimSuffix(line, ".")
		toks, err := lexLine(body)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
		p := &parser{toks: toks}
		fact, namedRule, err := p.parseStatement(registry, vld)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
		if namedRule != nil {
			prog.Rules = append(prog.Rules, *namedRule)
		} else {
			prog.Facts = append(prog.Facts, *fact)
		}
	}
	return prog, nil
}

func parseMeta(line string) (MetaCommand, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "::running":
		if len(fields) != 1 {
			return MetaCommand{}, fmt.Errorf("%w: ::running takes no arguments", ErrParse)
		}
		return MetaCommand{Kind: MetaRunning}, nil
	case "::kill":
		if len(fields) != 2 || !strings.HasPrefix(fields[1], "$") {
			return MetaCommand{}, fmt.Errorf("%w: expected '::kill $id'", ErrParse)
		}
		return MetaCommand{Kind: MetaKill, KillID: strings.TrimPrefix(fields[1], "$")}, nil
	default:
		return MetaCommand{}, fmt.Errorf("%w: unrecognized meta-command %q", ErrParse, fields[0])
	}
}

// literalNode is one parsed `name(arg, arg, ...)` surface form, before it is
// resolved against registry into either an AttrTriple or a RuleApply.
type literalNode struct {
	name string
	args []termNode
}

// termNode is one parsed argument: either a variable or a constant value.
type termNode struct {
	isVar bool
	kw    keyword.Keyword
	val   value.Value
}

func parseIntConst(s string) (value.Value, error) {
	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return value.Value{}, err
		}
		return value.Float(f), nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return value.Value{}, err
	}
	return value.Int(i), nil
}
