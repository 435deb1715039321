package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cozo-community/cozo/poison"
	"github.com/cozo-community/cozo/rule"
	"github.com/cozo-community/cozo/schema"
	"github.com/cozo-community/cozo/storage/memkv"
)

func testRegistry() *schema.Registry {
	r := schema.NewRegistry()
	r.Put(schema.Attribute{Name: "parent", Id: 1, Cardinality: schema.CardinalityMany})
	r.Put(schema.Attribute{Name: "edge", Id: 2, Type: schema.TypeRef, Cardinality: schema.CardinalityMany})
	return r
}

// TestRunScriptConstantTriple covers spec.md §8 scenario 1 end to end
// through the engine: assert two facts, then query them back out.
func TestRunScriptConstantTriple(t *testing.T) {
	db := New(memkv.New(), testRegistry(), nil)

	script := "parent(1, 2).\nparent(1, 3).\nQ(?v) :- parent(1, ?v).\n"
	got, err := db.RunDefault(context.Background(), script)
	require.NoError(t, err)
	require.Equal(t, []string{"v"}, got.Headings)
	require.Len(t, got.Rows, 2)

	vals := make(map[int64]bool)
	for _, row := range got.Rows {
		i, ok := row[0].AsInt()
		require.True(t, ok)
		vals[i] = true
	}
	require.Equal(t, map[int64]bool{2: true, 3: true}, vals)
}

// TestRunScriptTransitiveClosure covers spec.md §8 scenario 2: a two-rule
// recursive predicate evaluated to a fixpoint across several strata.
func TestRunScriptTransitiveClosure(t *testing.T) {
	db := New(memkv.New(), testRegistry(), nil)

	script := `edge(1,2).
edge(2,3).
edge(3,4).
tc(?a,?b) :- edge(?a,?b).
tc(?a,?c) :- edge(?a,?b), tc(?b,?c).
Q(?a,?c) :- tc(?a,?c).
`
	got, err := db.RunDefault(context.Background(), script)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, got.Headings)
	require.Len(t, got.Rows, 6)

	pairs := make(map[[2]int64]bool, len(got.Rows))
	for _, row := range got.Rows {
		a, _ := row[0].AsEntityId()
		c, _ := row[1].AsEntityId()
		pairs[[2]int64{int64(a), int64(c)}] = true
	}
	want := [][2]int64{{1, 2}, {2, 3}, {3, 4}, {1, 3}, {2, 4}, {1, 4}}
	for _, w := range want {
		require.True(t, pairs[w], "missing pair %v", w)
	}
}

// TestRunScriptPredicateFilter covers spec.md §8 scenario 3: the comparison
// predicate references ?x, which no other atom in the body binds, so
// CompileRuleBody's safety check rejects the rule at compile time
// (rule.ErrUnsafeBindingInPredicate) rather than silently filtering nothing
// or failing later with a runtime rule.ErrBindingNotFound.
func TestRunScriptPredicateFilter(t *testing.T) {
	db := New(memkv.New(), testRegistry(), nil)
	script := "edge(1,2).\nQ(?x) :- edge(?a,?b), ?x > 0.\n"
	_, err := db.RunDefault(context.Background(), script)
	require.ErrorIs(t, err, rule.ErrUnsafeBindingInPredicate)
}

// TestRunScriptReadOnlyRejectsFacts covers the ReadOnly mutability gate.
func TestRunScriptReadOnlyRejectsFacts(t *testing.T) {
	db := New(memkv.New(), testRegistry(), nil)
	_, err := db.RunScript(context.Background(), "parent(1, 2).\n", nil, ReadOnly)
	require.ErrorIs(t, err, ErrReadOnly)
}

// TestRunScriptNoRules covers a script that asserts facts only: it should
// succeed with an empty result rather than failing for lack of an entry
// rule.
func TestRunScriptNoRules(t *testing.T) {
	db := New(memkv.New(), testRegistry(), nil)
	got, err := db.RunDefault(context.Background(), "parent(1, 2).\n")
	require.NoError(t, err)
	require.Empty(t, got.Rows)
}

func TestRunMetaRunningAndKill(t *testing.T) {
	db := New(memkv.New(), testRegistry(), nil)

	db.mu.Lock()
	db.running["abc123"] = &runningQuery{id: "abc123", script: "Q(?v) :- parent(1, ?v)."}
	db.mu.Unlock()

	got, err := db.RunDefault(context.Background(), "::running\n")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "script", "started_at"}, got.Headings)
	require.Len(t, got.Rows, 1)
	id, _ := got.Rows[0][0].AsString()
	require.Equal(t, "abc123", id)

	_, err = db.RunDefault(context.Background(), "::kill $abc123\n")
	require.NoError(t, err)

	db.mu.Lock()
	_, stillRunning := db.running["abc123"]
	db.mu.Unlock()
	require.True(t, stillRunning, "::kill only poisons the token, it does not remove the registry entry")

	_, err = db.RunDefault(context.Background(), "::kill $doesnotexist\n")
	require.ErrorIs(t, err, ErrNoSuchQuery)
}

func TestKillAll(t *testing.T) {
	db := New(memkv.New(), testRegistry(), nil)
	db.mu.Lock()
	db.running["a"] = &runningQuery{id: "a", token: poison.New()}
	db.running["b"] = &runningQuery{id: "b", token: poison.New()}
	db.mu.Unlock()

	db.KillAll()

	db.mu.Lock()
	defer db.mu.Unlock()
	for id, rq := range db.running {
		require.True(t, rq.token.Killed(), "query %s should be killed", id)
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	registry := testRegistry()
	src := New(memkv.New(), registry, nil)

	_, err := src.RunDefault(context.Background(), "parent(1, 2).\nparent(1, 3).\n")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "backup.json")
	require.NoError(t, src.BackupDB(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "\"parent\"")

	dst := New(memkv.New(), registry, nil)
	require.NoError(t, dst.RestoreBackup(path))

	got, err := dst.RunDefault(context.Background(), "Q(?v) :- parent(1, ?v).\n")
	require.NoError(t, err)
	require.Len(t, got.Rows, 2)
}

func TestImportRelationsStrWithErrRejectsMalformedJSON(t *testing.T) {
	db := New(memkv.New(), testRegistry(), nil)
	err := db.ImportRelationsStrWithErr("not json")
	require.Error(t, err)
}

func TestImportRelationsStrWithErrRejectsUnknownAttribute(t *testing.T) {
	db := New(memkv.New(), testRegistry(), nil)
	err := db.ImportRelationsStrWithErr(`[{"attr":"nope","entity":1,"tag":"int","val":2,"at":0,"assert":true}]`)
	require.Error(t, err)
}
