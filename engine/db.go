// Package engine is the database handle and driver (SPEC_FULL.md §4.7): it
// owns a storage.Storage, an attribute registry, and a running-query
// registry, and drives fixpoint evaluation of a parsed lang.Program's rules
// per stratum. Stratification reuses algo/scc over the predicate dependency
// graph built from rule.Rule.ContainedRules(), exactly as SPEC_FULL.md §4.7
// directs ("giving the SCC operator a second, internal caller beyond
// user-facing rules").
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	_ "github.com/cozo-community/cozo/algo/scc"

	"github.com/cozo-community/cozo/algo"
	"github.com/cozo-community/cozo/keyword"
	"github.com/cozo-community/cozo/lang"
	"github.com/cozo-community/cozo/plan"
	"github.com/cozo-community/cozo/poison"
	"github.com/cozo-community/cozo/rule"
	"github.com/cozo-community/cozo/schema"
	"github.com/cozo-community/cozo/storage"
	"github.com/cozo-community/cozo/value"
)

// Mutability gates whether a script's fact lines may be asserted.
type Mutability int

const (
	ReadOnly Mutability = iota
	ReadWrite
)

// NamedRows is a query result: a head of column names plus the rows that
// satisfy the entry rule, in no particular row order beyond what the plan
// executor happens to produce.
type NamedRows struct {
	Headings []string
	Rows     []value.Tuple
}

// runningQuery is one entry of DB.running, the registry behind
// "::running"/"::kill $id" (SPEC_FULL.md §4.7).
type runningQuery struct {
	id        string
	script    string
	startedAt time.Time
	token     poison.Token
}

// DB is the cloneable, thread-shareable database handle (spec.md §5).
type DB struct {
	store  storage.Storage
	attrs  *schema.Registry
	log    *logrus.Logger
	clock  func() int64

	mu      sync.Mutex
	running map[string]*runningQuery
}

// New returns a DB backed by store, resolving attribute-vs-rule names
// against attrs while parsing scripts.
func New(store storage.Storage, attrs *schema.Registry, log *logrus.Logger) *DB {
	if log == nil {
		log = logrus.New()
	}
	return &DB{
		store:   store,
		attrs:   attrs,
		log:     log,
		clock:   func() int64 { return time.Now().UnixNano() },
		running: make(map[string]*runningQuery),
	}
}

// KillAll cancels every currently registered query (SPEC_FULL.md §4.7's
// Ctrl-C hook; DESIGN.md records the decision to kill every query rather
// than only the foreground one).
func (db *DB) KillAll() {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, rq := range db.running {
		rq.token.Kill()
	}
}

// RunDefault runs script with no bound params, read-write.
func (db *DB) RunDefault(ctx context.Context, script string) (NamedRows, error) {
	return db.RunScript(ctx, script, nil, ReadWrite)
}

// RunScript parses script, handles any meta-commands, asserts its facts
// (if mutability allows), stratifies and evaluates its rules to a
// fixpoint, and returns the entry rule's answer set.
func (db *DB) RunScript(ctx context.Context, script string, params map[string]value.Value, mutability Mutability) (NamedRows, error) {
	pt := poison.New()
	id := uuid.NewString()

	vld := schema.Validity{At: db.clock(), Assert: true}
	prog, err := lang.ParseProgram(script, db.attrs, vld)
	if err != nil {
		db.log.WithError(err).WithField("query_id", id).Warn("script failed to parse")
		return NamedRows{}, err
	}

	if len(prog.Meta) > 0 {
		return db.runMeta(prog.Meta)
	}

	db.mu.Lock()
	db.running[id] = &runningQuery{id: id, script: script, startedAt: time.Now(), token: pt}
	db.mu.Unlock()
	defer func() {
		db.mu.Lock()
		delete(db.running, id)
		db.mu.Unlock()
	}()

	if len(prog.Facts) > 0 {
		if mutability != ReadWrite {
			return NamedRows{}, fmt.Errorf("%w: script asserts facts under a read-only mutability", ErrReadOnly)
		}
		if err := db.assertFacts(prog.Facts, vld); err != nil {
			return NamedRows{}, err
		}
	}

	if len(prog.Rules) == 0 {
		return NamedRows{}, nil
	}

	datalogProg, err := buildProgram(prog)
	if err != nil {
		return NamedRows{}, err
	}
	if err := ctx.Err(); err != nil {
		return NamedRows{}, err
	}

	tx, err := db.store.Transact(false)
	if err != nil {
		return NamedRows{}, err
	}
	defer tx.Rollback()

	result, err := evaluate(datalogProg, vld, tx, pt)
	if err != nil {
		db.log.WithError(err).WithField("query_id", id).Warn("evaluation failed")
		return NamedRows{}, err
	}
	db.log.WithField("query_id", id).WithField("rows", len(result)).Debug("script evaluated")

	entrySet, _ := datalogProg.Lookup(rule.EntryName)
	headings := make([]string, len(entrySet.Rules[0].Head))
	for i, h := range entrySet.Rules[0].Head {
		headings[i] = h.Name.String()
	}
	return NamedRows{Headings: headings, Rows: result}, nil
}

func (db *DB) runMeta(cmds []lang.MetaCommand) (NamedRows, error) {
	var out NamedRows
	for _, mc := range cmds {
		switch mc.Kind {
		case lang.MetaRunning:
			out.Headings = []string{"id", "script", "started_at"}
			db.mu.Lock()
			for _, rq := range db.running {
				out.Rows = append(out.Rows, value.Tuple{
					value.String(rq.id),
					value.String(rq.script),
					value.Int(rq.startedAt.UnixNano()),
				})
			}
			db.mu.Unlock()
		case lang.MetaKill:
			db.mu.Lock()
			rq, ok := db.running[mc.KillID]
			db.mu.Unlock()
			if !ok {
				return NamedRows{}, fmt.Errorf("%w: %q", ErrNoSuchQuery, mc.KillID)
			}
			rq.token.Kill()
		}
	}
	return out, nil
}

func (db *DB) assertFacts(facts []lang.Fact, vld schema.Validity) error {
	tx, err := db.store.Transact(true)
	if err != nil {
		return err
	}
	for _, f := range facts {
		entInt, ok := f.Entity.AsInt()
		if !ok {
			tx.Rollback()
			return fmt.Errorf("%w: attribute %q's entity position must be an integer constant", rule.ErrParse, f.Attr.Name)
		}
		key := plan.EncodeTripleKey(f.Attr, value.EntityId(entInt), f.Val, vld)
		if err := tx.Put(key, nil); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// buildProgram turns a parsed lang.Program into a rule.DatalogProgram,
// aliasing the ruleset named by Program.EntryName under rule.EntryName so
// rule.DatalogProgram.Validate's "must define the distinguished entry
// predicate" invariant is satisfied without forcing script authors to
// literally write a rule named "?" (see lang.Program.EntryName's doc
// comment; recorded as an Open Question decision in DESIGN.md).
func buildProgram(p *lang.Program) (*rule.DatalogProgram, error) {
	dp := rule.NewProgram()
	for _, nr := range p.Rules {
		if err := dp.AddRule(nr.Name, nr.Rule); err != nil {
			return nil, err
		}
	}
	entryName, ok := p.EntryName()
	if !ok {
		return nil, ErrNoRules
	}
	entrySet, ok := dp.Lookup(entryName.Name())
	if !ok {
		return nil, fmt.Errorf("%w: %s", rule.ErrUndefinedRule, entryName)
	}
	entryKw := keyword.Intern(rule.EntryName)
	for _, r := range entrySet.Rules {
		if err := dp.AddRule(entryKw, r); err != nil {
			return nil, err
		}
	}
	if err := dp.Validate(); err != nil {
		return nil, err
	}
	return dp, nil
}

// evaluate runs every stratum of prog's predicate dependency graph to a
// fixpoint, in dependency order, and returns the deduplicated rows of the
// entry predicate.
func evaluate(prog *rule.DatalogProgram, vld schema.Validity, tx storage.Tx, pt poison.Token) ([]value.Tuple, error) {
	strata, err := stratify(prog, pt)
	if err != nil {
		return nil, err
	}

	stores := make(map[string]*plan.StoreRef, len(prog.Names()))
	for _, name := range prog.Names() {
		rs, _ := prog.Lookup(name)
		stores[name] = &plan.StoreRef{Name: name, Arity: rs.Arity}
	}

	for _, stratum := range strata {
		if err := evaluateStratum(prog, stratum, vld, tx, stores, pt); err != nil {
			return nil, err
		}
	}

	entry := stores[rule.EntryName]
	return rowsToTuples(entry), nil
}

func rowsToTuples(store *plan.StoreRef) []value.Tuple {
	out := make([]value.Tuple, len(store.Rows))
	for i, r := range store.Rows {
		out[i] = append(value.Tuple(nil), r.Vals...)
	}
	return out
}

// evaluateStratum repeatedly compiles and executes every rule whose head is
// in stratum, unioning (deduplicated) rows into each predicate's StoreRef,
// until no predicate in the stratum grows. This is a naive, not a true
// delta-based semi-naive, fixpoint: DESIGN.md records the simplification
// (every iteration recomputes the whole relation rather than only the
// delta), which is still correct for the purely positive Datalog this
// package evaluates (no Logical/negation atoms reach the executor).
func evaluateStratum(prog *rule.DatalogProgram, stratum []string, vld schema.Validity, tx storage.Tx, stores map[string]*plan.StoreRef, pt poison.Token) error {
	for {
		if err := pt.Check(); err != nil {
			return err
		}
		changed := false
		var errs *multierror.Error
		for _, name := range stratum {
			rs, _ := prog.Lookup(name)
			seen := make(map[string]bool, len(stores[name].Rows))
			var rows []plan.Row
			for _, r := range stores[name].Rows {
				seen[string(value.EncodeTuple(r.Vals))] = true
				rows = append(rows, r)
			}
			retVars := make([]keyword.Keyword, len(rs.Rules[0].Head))
			for i, h := range rs.Rules[0].Head {
				retVars[i] = h.Name
			}
			for _, r := range rs.Rules {
				compiled, err := plan.CompileRuleBody(r.Body, vld, stores, retVars)
				if err != nil {
					errs = multierror.Append(errs, fmt.Errorf("rule %s: %w", name, err))
					continue
				}
				it, err := compiled.Execute(tx, pt)
				if err != nil {
					errs = multierror.Append(errs, fmt.Errorf("rule %s: %w", name, err))
					continue
				}
				got, err := plan.CollectRows(it)
				if err != nil {
					errs = multierror.Append(errs, fmt.Errorf("rule %s: %w", name, err))
					continue
				}
				for _, row := range got {
					key := string(value.EncodeTuple(row.Vals))
					if seen[key] {
						continue
					}
					seen[key] = true
					rows = append(rows, row)
					changed = true
				}
			}
			stores[name].Rows = rows
		}
		if errs.ErrorOrNil() != nil {
			return errs
		}
		if !changed {
			return nil
		}
	}
}

// stratify groups prog's predicates into evaluation strata (each stratum is
// one algo/scc component, since this program has no negation every
// component can be solved by the naive fixpoint above) and returns them in
// dependency order, bottom-up: a stratum depending on another is scheduled
// after it.
func stratify(prog *rule.DatalogProgram, pt poison.Token) ([][]string, error) {
	names := prog.Names()
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}

	var edges []value.Tuple
	for _, n := range names {
		rs, _ := prog.Lookup(n)
		for _, r := range rs.Rules {
			for _, dep := range r.ContainedRules().Slice() {
				if _, ok := index[dep.Name()]; ok {
					edges = append(edges, value.Tuple{value.String(n), value.String(dep.Name())})
				}
			}
		}
	}

	op, ok := algo.Lookup("scc")
	if !ok {
		return nil, ErrStratifierUnavailable
	}
	var out algo.SliceCollector
	payload := algo.Payload{Inputs: []algo.Input{{Tuples: edges}, {Tuples: nodeTuples(names)}}}
	if err := op.Run(payload, &out, pt); err != nil {
		return nil, err
	}

	groupOf := make(map[string]int64)
	groups := make(map[int64][]string)
	for _, row := range out.Rows {
		name, _ := row[0].AsString()
		gid, _ := row[1].AsInt()
		groupOf[name] = gid
		groups[gid] = append(groups[gid], name)
	}

	depends := make(map[int64]map[int64]bool)
	for _, n := range names {
		rs, _ := prog.Lookup(n)
		from := groupOf[n]
		for _, r := range rs.Rules {
			for _, dep := range r.ContainedRules().Slice() {
				to, ok := groupOf[dep.Name()]
				if !ok || to == from {
					continue
				}
				if depends[from] == nil {
					depends[from] = make(map[int64]bool)
				}
				depends[from][to] = true
			}
		}
	}

	order := topoSort(groups, depends)
	strata := make([][]string, len(order))
	for i, gid := range order {
		members := append([]string(nil), groups[gid]...)
		sort.Strings(members)
		strata[i] = members
	}
	return strata, nil
}

func nodeTuples(names []string) []value.Tuple {
	out := make([]value.Tuple, len(names))
	for i, n := range names {
		out[i] = value.Tuple{value.String(n)}
	}
	return out
}

// topoSort returns every group id in dependencies-first order: a group
// scheduled before another it depends on would read that other's store
// before it is ever populated.
func topoSort(groups map[int64][]string, depends map[int64]map[int64]bool) []int64 {
	var ids []int64
	for gid := range groups {
		ids = append(ids, gid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var order []int64
	visited := make(map[int64]bool)
	var visit func(int64)
	visit = func(g int64) {
		if visited[g] {
			return
		}
		visited[g] = true
		deps := make([]int64, 0, len(depends[g]))
		for d := range depends[g] {
			deps = append(deps, d)
		}
		sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
		for _, d := range deps {
			visit(d)
		}
		order = append(order, g)
	}
	for _, gid := range ids {
		visit(gid)
	}
	return order
}
