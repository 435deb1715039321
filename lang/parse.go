package lang

import (
	"fmt"

	"github.com/cozo-community/cozo/keyword"
	"github.com/cozo-community/cozo/rule"
	"github.com/cozo-community/cozo/schema"
	"github.com/cozo-community/cozo/value"
)

// parser walks one statement's token list. Unlike a channel-fed
// text/template/parse parser, every token is already in hand, so lookahead
// is a plain index bump rather than a peek/backup dance.
type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	t := p.peek()
	if t.kind != k {
		return token{}, fmt.Errorf("%w: col %d: expected %s, found %q", ErrParse, t.col, what, t.val)
	}
	return p.next(), nil
}

// parseStatement parses one full line (head, optionally ":-" and a body) and
// classifies it as a Fact or a NamedRule.
func (p *parser) parseStatement(registry *schema.Registry, vld schema.Validity) (*Fact, *NamedRule, error) {
	head, err := p.parseLiteral()
	if err != nil {
		return nil, nil, err
	}

	if p.peek().kind != tokRuleArrow {
		if _, err := p.expect(tokEOF, "end of statement"); err != nil {
			return nil, nil, err
		}
		fact, err := literalToFact(head, registry)
		if err != nil {
			return nil, nil, err
		}
		return fact, nil, nil
	}

	p.next() // consume ":-"
	var body []rule.Atom
	for {
		atom, err := p.parseBodyAtom(registry, vld)
		if err != nil {
			return nil, nil, err
		}
		body = append(body, atom)
		if p.peek().kind != tokComma {
			break
		}
		p.next()
	}
	if _, err := p.expect(tokEOF, "end of statement"); err != nil {
		return nil, nil, err
	}

	headTerms := make([]rule.HeadTerm, len(head.args))
	for i, a := range head.args {
		if !a.isVar {
			return nil, nil, fmt.Errorf("%w: rule head terms must be variables, found %s", ErrParse, a.val)
		}
		headTerms[i] = rule.HeadTerm{Name: a.kw, Aggr: rule.AggregationNone}
	}
	name := keyword.Intern(head.name)
	r := rule.Rule{Head: headTerms, Body: body, Vld: vld}
	return nil, &NamedRule{Name: name, Rule: r}, nil
}

func literalToFact(lit literalNode, registry *schema.Registry) (*Fact, error) {
	attr, ok := registry.Get(lit.name)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a registered attribute (facts require a ':-' body otherwise)", rule.ErrUndefinedRule, lit.name)
	}
	if len(lit.args) != 2 {
		return nil, fmt.Errorf("%w: fact %q must have exactly 2 arguments (entity, value)", rule.ErrArityMismatch, lit.name)
	}
	for _, a := range lit.args {
		if a.isVar {
			return nil, fmt.Errorf("%w: fact %q cannot contain variables", ErrParse, lit.name)
		}
	}
	return &Fact{Attr: attr, Entity: lit.args[0].val, Val: coerceRefConst(lit.args[1], attr).val}, nil
}

// coerceRefConst retags an integer constant as an entity id when attr is a
// TypeRef attribute (its value position names another entity, not a plain
// scalar), so that the constant compares equal to the EntityId-tagged
// values plan.Triple binds for that same integer when it appears in an
// entity position elsewhere in a recursive rule (spec.md §4.4's Derived/
// RuleApply joins compare by value.Value tag as well as content).
func coerceRefConst(t termNode, attr schema.Attribute) termNode {
	if t.isVar || attr.Type != schema.TypeRef {
		return t
	}
	if i, ok := t.val.AsInt(); ok {
		return termNode{val: value.EnId(value.EntityId(i))}
	}
	return t
}

// parseBodyAtom parses one body element: either `term OP term` (a
// Predicate) or `name(args...)` (an AttrTriple or RuleApply, resolved
// against registry).
func (p *parser) parseBodyAtom(registry *schema.Registry, vld schema.Validity) (rule.Atom, error) {
	save := p.pos
	if t, err := p.tryParseComparison(); err == nil {
		return t, nil
	}
	p.pos = save

	lit, err := p.parseLiteral()
	if err != nil {
		return rule.Atom{}, err
	}
	if attr, ok := registry.Get(lit.name); ok {
		if len(lit.args) != 2 {
			return rule.Atom{}, fmt.Errorf("%w: attribute %q requires exactly 2 arguments", rule.ErrArityMismatch, lit.name)
		}
		entTerm, err := termToEntityTerm(lit.args[0])
		if err != nil {
			return rule.Atom{}, err
		}
		valTerm := termToValueTerm(coerceRefConst(lit.args[1], attr))
		return rule.NewAttrTripleAtom(rule.AttrTriple{Attr: attr, Entity: entTerm, Val: valTerm}), nil
	}

	args := make([]rule.ValueTerm, len(lit.args))
	for i, a := range lit.args {
		args[i] = termToValueTerm(a)
	}
	return rule.NewRuleApplyAtom(rule.RuleApply{Name: keyword.Intern(lit.name), Args: args}), nil
}

// tryParseComparison attempts `term OP term`; it returns an error (without
// advancing the caller's saved position, which parseBodyAtom rewinds to on
// failure) if the next tokens are not exactly that shape.
func (p *parser) tryParseComparison() (rule.Atom, error) {
	left, err := p.parseTermAsExpr()
	if err != nil {
		return rule.Atom{}, err
	}
	if p.peek().kind != tokOp {
		return rule.Atom{}, fmt.Errorf("not a comparison")
	}
	op := p.next().val
	right, err := p.parseTermAsExpr()
	if err != nil {
		return rule.Atom{}, err
	}
	expr, err := rule.NewComparison(op, []rule.Expr{left, right})
	if err != nil {
		return rule.Atom{}, err
	}
	return rule.NewPredicateAtom(expr), nil
}

func (p *parser) parseTermAsExpr() (rule.Expr, error) {
	t, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if t.isVar {
		return rule.VarExpr{Var: t.kw}, nil
	}
	return rule.ConstExpr{Val: t.val}, nil
}

// parseLiteral parses `IDENT "(" [term ("," term)*] ")"`.
func (p *parser) parseLiteral() (literalNode, error) {
	nameTok, err := p.expect(tokIdent, "predicate name")
	if err != nil {
		return literalNode{}, err
	}
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return literalNode{}, err
	}
	var args []termNode
	if p.peek().kind != tokRParen {
		for {
			t, err := p.parseTerm()
			if err != nil {
				return literalNode{}, err
			}
			args = append(args, t)
			if p.peek().kind != tokComma {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return literalNode{}, err
	}
	return literalNode{name: nameTok.val, args: args}, nil
}

func (p *parser) parseTerm() (termNode, error) {
	t := p.peek()
	switch t.kind {
	case tokVar:
		p.next()
		return termNode{isVar: true, kw: keyword.Intern(t.val)}, nil
	case tokString:
		p.next()
		return termNode{val: value.String(t.val)}, nil
	case tokNumber:
		p.next()
		v, err := parseIntConst(t.val)
		if err != nil {
			return termNode{}, fmt.Errorf("%w: col %d: malformed number %q", ErrParse, t.col, t.val)
		}
		return termNode{val: v}, nil
	case tokIdent:
		p.next()
		return termNode{val: value.String(t.val)}, nil
	default:
		return termNode{}, fmt.Errorf("%w: col %d: expected a term, found %q", ErrParse, t.col, t.val)
	}
}

func termToEntityTerm(t termNode) (rule.EntityTerm, error) {
	if t.isVar {
		return rule.Var[value.EntityId](t.kw), nil
	}
	i, ok := t.val.AsInt()
	if !ok {
		return rule.EntityTerm{}, fmt.Errorf("%w: an attribute's entity position must be an integer constant, found %s", ErrParse, t.val)
	}
	return rule.EntityConst(value.EntityId(i)), nil
}

func termToValueTerm(t termNode) rule.ValueTerm {
	if t.isVar {
		return rule.Var[value.Value](t.kw)
	}
	return rule.Const[value.Value](t.val)
}
