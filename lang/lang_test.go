package lang

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cozo-community/cozo/rule"
	"github.com/cozo-community/cozo/schema"
	"github.com/cozo-community/cozo/value"
)

func testRegistry() *schema.Registry {
	r := schema.NewRegistry()
	r.Put(schema.Attribute{Name: "parent", Id: 1, Cardinality: schema.CardinalityMany})
	r.Put(schema.Attribute{Name: "edge", Id: 2, Type: schema.TypeRef, Cardinality: schema.CardinalityMany})
	return r
}

// TestParseConstantTripleScript covers spec.md §8 scenario 1's literal
// script text.
func TestParseConstantTripleScript(t *testing.T) {
	script := "parent(1, 2).\nparent(1, 3).\nQ(?v) :- parent(1, ?v).\n"
	prog, err := ParseProgram(script, testRegistry(), schema.Validity{At: 0, Assert: true})
	require.NoError(t, err)

	require.Len(t, prog.Facts, 2)
	require.Equal(t, "parent", prog.Facts[0].Attr.Name)
	ent0, _ := prog.Facts[0].Entity.AsInt()
	val0, _ := prog.Facts[0].Val.AsInt()
	require.Equal(t, int64(1), ent0)
	require.Equal(t, int64(2), val0)

	require.Len(t, prog.Rules, 1)
	r := prog.Rules[0]
	require.Equal(t, "Q", r.Name.Name())
	require.Len(t, r.Rule.Head, 1)
	require.Len(t, r.Rule.Body, 1)
	require.Equal(t, rule.AtomAttrTriple, r.Rule.Body[0].Kind)
	require.Equal(t, "parent", r.Rule.Body[0].AttrTriple.Attr.Name)

	entry, ok := prog.EntryName()
	require.True(t, ok)
	require.Equal(t, "Q", entry.Name())
}

// TestParseTransitiveClosureScript covers spec.md §8 scenario 2.
func TestParseTransitiveClosureScript(t *testing.T) {
	script := `edge(1,2).
edge(2,3).
edge(3,4).
tc(?a,?b) :- edge(?a,?b).
tc(?a,?c) :- edge(?a,?b), tc(?b,?c).
Q(?a,?c) :- tc(?a,?c).
`
	prog, err := ParseProgram(script, testRegistry(), schema.Validity{At: 0, Assert: true})
	require.NoError(t, err)
	require.Len(t, prog.Facts, 3)
	require.Len(t, prog.Rules, 3)

	require.Equal(t, "tc", prog.Rules[0].Name.Name())
	require.Len(t, prog.Rules[0].Rule.Body, 1)

	require.Equal(t, "tc", prog.Rules[1].Name.Name())
	require.Len(t, prog.Rules[1].Rule.Body, 2)
	require.Equal(t, rule.AtomAttrTriple, prog.Rules[1].Rule.Body[0].Kind)
	require.Equal(t, rule.AtomRuleApply, prog.Rules[1].Rule.Body[1].Kind)
	require.Equal(t, "tc", prog.Rules[1].Rule.Body[1].RuleApply.Name.Name())

	entry, ok := prog.EntryName()
	require.True(t, ok)
	require.Equal(t, "Q", entry.Name())
}

// TestParsePredicateAtomScript covers spec.md §8 scenario 3's script text
// (the rule compiles fine at the syntax level; CompileRuleBody is what
// later rejects it as unsafe since ?x is only used in the predicate).
func TestParsePredicateAtomScript(t *testing.T) {
	script := "Q(?x) :- edge(?a,?b), ?x > 0.\n"
	prog, err := ParseProgram(script, testRegistry(), schema.Validity{})
	require.NoError(t, err)
	require.Len(t, prog.Rules, 1)
	body := prog.Rules[0].Rule.Body
	require.Len(t, body, 2)
	require.Equal(t, rule.AtomAttrTriple, body[0].Kind)
	require.Equal(t, rule.AtomPredicate, body[1].Kind)

	expr := body[1].Predicate
	got, err := expr.Eval(rule.Binding{prog.Rules[0].Rule.Head[0].Name: value.Int(5)})
	require.NoError(t, err)
	b, ok := got.AsBool()
	require.True(t, ok)
	require.True(t, b)
}

func TestParseMetaCommands(t *testing.T) {
	prog, err := ParseProgram("::running\n::kill $abc123\n", testRegistry(), schema.Validity{})
	require.NoError(t, err)
	require.Len(t, prog.Meta, 2)
	require.Equal(t, MetaRunning, prog.Meta[0].Kind)
	require.Equal(t, MetaKill, prog.Meta[1].Kind)
	require.Equal(t, "abc123", prog.Meta[1].KillID)
}

func TestParseRejectsFactWithVariable(t *testing.T) {
	_, err := ParseProgram("parent(1, ?x).\n", testRegistry(), schema.Validity{})
	require.Error(t, err)
}

func TestParseRejectsUnknownAttributeFact(t *testing.T) {
	_, err := ParseProgram("nope(1, 2).\n", testRegistry(), schema.Validity{})
	require.ErrorIs(t, err, rule.ErrUndefinedRule)
}

func TestParseRejectsMissingTrailingDot(t *testing.T) {
	_, err := ParseProgram("parent(1, 2)\n", testRegistry(), schema.Validity{})
	require.ErrorIs(t, err, ErrParse)
}

func TestParseRejectsConstantInRuleHead(t *testing.T) {
	_, err := ParseProgram("Q(1) :- parent(1, ?v).\n", testRegistry(), schema.Validity{})
	require.ErrorIs(t, err, ErrParse)
}
