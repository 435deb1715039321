package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cozo-community/cozo/keyword"
	"github.com/cozo-community/cozo/poison"
	"github.com/cozo-community/cozo/rule"
	"github.com/cozo-community/cozo/schema"
	"github.com/cozo-community/cozo/storage/memkv"
	"github.com/cozo-community/cozo/value"
)

func kw(name string) keyword.Keyword { return keyword.Intern(name) }

func seedFact(t *testing.T, tx interface {
	Put(key, val []byte) error
}, attr schema.Attribute, entity value.EntityId, val value.Value, at int64) {
	t.Helper()
	key := EncodeTripleKey(attr, entity, val, schema.Validity{At: at, Assert: true})
	require.NoError(t, tx.Put(key, nil))
}

// TestCompileConstantTriple covers spec.md §8 scenario 1: a rule body
// consisting of one AttrTriple atom with a constant entity resolves to every
// value that entity holds for the attribute.
func TestCompileConstantTriple(t *testing.T) {
	eng := memkv.New()
	tx, err := eng.Transact(true)
	require.NoError(t, err)

	parent := schema.Attribute{Name: "parent", Id: 1, Cardinality: schema.CardinalityMany}
	seedFact(t, tx, parent, 1, value.Int(2), 0)
	seedFact(t, tx, parent, 1, value.Int(3), 0)
	seedFact(t, tx, parent, 2, value.Int(9), 0)
	require.NoError(t, tx.Commit())

	body := []rule.Atom{
		rule.NewAttrTripleAtom(rule.AttrTriple{
			Attr:   parent,
			Entity: rule.EntityConst(1),
			Val:    rule.Var[value.Value](kw("?v")),
		}),
	}
	rel, err := CompileRuleBody(body, schema.Validity{At: 0, Assert: true}, nil, []keyword.Keyword{kw("?v")})
	require.NoError(t, err)

	readTx, err := eng.Transact(false)
	require.NoError(t, err)
	it, err := rel.Execute(readTx, poison.New())
	require.NoError(t, err)
	rows, err := CollectRows(it)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var got []int64
	for _, r := range rows {
		v, ok := r.Get(kw("?v"))
		require.True(t, ok)
		i, _ := v.AsInt()
		got = append(got, i)
	}
	require.ElementsMatch(t, []int64{2, 3}, got)
}

// TestCompileJoinAcrossStore covers spec.md §8 scenario 2: a rule body
// joining a fresh AttrTriple scan against another rule's already-computed
// rows (modeling one semi-naive evaluation step of a transitive closure).
func TestCompileJoinAcrossStore(t *testing.T) {
	eng := memkv.New()
	tx, err := eng.Transact(true)
	require.NoError(t, err)

	edge := schema.Attribute{Name: "edge", Id: 2, Cardinality: schema.CardinalityMany}
	seedFact(t, tx, edge, 1, value.EnId(2), 0)
	seedFact(t, tx, edge, 2, value.EnId(3), 0)
	require.NoError(t, tx.Commit())

	// "base" store stands in for tc's rows computed so far: tc(2,3).
	base := &StoreRef{Name: "base", Arity: 2, Rows: []Row{
		{Vars: []keyword.Keyword{kw("?x"), kw("?y")}, Vals: []value.Value{value.EnId(2), value.EnId(3)}},
	}}

	body := []rule.Atom{
		rule.NewAttrTripleAtom(rule.AttrTriple{
			Attr:   edge,
			Entity: rule.Var[value.EntityId](kw("?a")),
			Val:    rule.Var[value.Value](kw("?b")),
		}),
		rule.NewRuleApplyAtom(rule.RuleApply{
			Name: kw("base"),
			Args: []rule.ValueTerm{rule.Var[value.Value](kw("?b")), rule.Var[value.Value](kw("?c"))},
		}),
	}
	stores := map[string]*StoreRef{"base": base}
	rel, err := CompileRuleBody(body, schema.Validity{At: 0, Assert: true}, stores, []keyword.Keyword{kw("?a"), kw("?c")})
	require.NoError(t, err)

	readTx, err := eng.Transact(false)
	require.NoError(t, err)
	it, err := rel.Execute(readTx, poison.New())
	require.NoError(t, err)
	rows, err := CollectRows(it)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	a, _ := rows[0].Get(kw("?a"))
	c, _ := rows[0].Get(kw("?c"))
	aID, _ := a.AsEntityId()
	require.Equal(t, value.EntityId(1), aID)
	require.True(t, value.Equal(value.EnId(3), c))
}

// TestCompileUnsafeUnboundVars covers the final safety check: a head
// variable that never appears in any body atom must fail safety analysis.
func TestCompileUnsafeUnboundVars(t *testing.T) {
	parent := schema.Attribute{Name: "parent", Id: 1, Cardinality: schema.CardinalityMany}
	body := []rule.Atom{
		rule.NewAttrTripleAtom(rule.AttrTriple{
			Attr:   parent,
			Entity: rule.EntityConst(1),
			Val:    rule.Var[value.Value](kw("?v")),
		}),
	}
	_, err := CompileRuleBody(body, schema.Validity{}, nil, []keyword.Keyword{kw("?v"), kw("?unbound")})
	require.ErrorIs(t, err, rule.ErrUnsafeUnboundVars)
}

func TestCompileUndefinedRule(t *testing.T) {
	body := []rule.Atom{
		rule.NewRuleApplyAtom(rule.RuleApply{Name: kw("nope"), Args: []rule.ValueTerm{rule.Var[value.Value](kw("?x"))}}),
	}
	_, err := CompileRuleBody(body, schema.Validity{}, map[string]*StoreRef{}, []keyword.Keyword{kw("?x")})
	require.ErrorIs(t, err, rule.ErrUndefinedRule)
}

func TestCompileReservedAtomRejected(t *testing.T) {
	body := []rule.Atom{{Kind: rule.AtomLogical}}
	_, err := CompileRuleBody(body, schema.Validity{}, nil, nil)
	require.ErrorIs(t, err, ErrNotYetSupported)
}

func TestCompileSelfJoinRejected(t *testing.T) {
	parent := schema.Attribute{Name: "parent", Id: 1}
	body := []rule.Atom{
		rule.NewAttrTripleAtom(rule.AttrTriple{
			Attr:   parent,
			Entity: rule.Var[value.EntityId](kw("?x")),
			Val:    rule.Var[value.Value](kw("?x")),
		}),
	}
	_, err := CompileRuleBody(body, schema.Validity{}, nil, []keyword.Keyword{kw("?x")})
	require.ErrorIs(t, err, ErrSelfJoinUnsupported)
}
