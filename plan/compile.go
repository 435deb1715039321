package plan

import (
	"fmt"

	"github.com/cozo-community/cozo/keyword"
	"github.com/cozo-community/cozo/rule"
	"github.com/cozo-community/cozo/schema"
	"github.com/cozo-community/cozo/value"
)

// CompileRuleBody compiles one rule body into a Relation plan tree (spec.md
// §4.4). stores maps a predicate name to the StoreRef holding its current
// materialized rows (itself possibly still being computed, for recursive
// rules); retVars is the rule's head variable list, in order, and becomes
// the compiled plan's final column order.
//
// This is a close transliteration of compile_rule_body in
// original_source/src/query/compile.rs; see DESIGN.md for the two
// documented behavioral changes (the final safety check no longer relies on
// a self-diff that always produced the empty set, and a Predicate atom that
// references a variable no earlier atom bound is rejected at compile time).
func CompileRuleBody(atoms []rule.Atom, vld schema.Validity, stores map[string]*StoreRef, retVars []keyword.Keyword) (*Relation, error) {
	ret := Unit()
	seen := keyword.NewSet()
	gen := &keyword.Generator{}

	for _, atom := range atoms {
		switch atom.Kind {
		case rule.AtomAttrTriple:
			var err error
			ret, err = compileAttrTriple(ret, atom.AttrTriple, vld, seen, gen)
			if err != nil {
				return nil, err
			}
		case rule.AtomRuleApply:
			var err error
			ret, err = compileRuleApply(ret, atom.RuleApply, stores, seen, gen)
			if err != nil {
				return nil, err
			}
		case rule.AtomPredicate:
			refs := keyword.NewSet()
			atom.Predicate.CollectBindings(refs)
			for _, v := range refs.Slice() {
				if !seen.Contains(v) {
					return nil, fmt.Errorf("%w: %s", rule.ErrUnsafeBindingInPredicate, v)
				}
			}
			ret = ret.Filter(atom.Predicate)
		case rule.AtomLogical, rule.AtomBindUnify:
			return nil, fmt.Errorf("%w: %s", ErrNotYetSupported, atom)
		default:
			return nil, fmt.Errorf("%w: unhandled atom kind %d", rule.ErrUnexpectedForm, atom.Kind)
		}
	}

	// The original compiler's eliminate_temp_vars mutated the tree in place
	// to drop columns not in ret_vars, then compared the result against
	// ret_vars for equality; the comparison was supposed to catch a ret_var
	// that never got bound, but it instead computed
	// cur_ret_set.sub(&cur_ret_set), which is always empty, so an unsafe
	// rule body fell through to the final reorder step unnoticed. Since
	// Bindings() is computed directly from the plan tree's structure here
	// rather than mutated in place, the real check is a subset test: every
	// ret_var must already be produced by the compiled body, and any extra
	// (compiler-temporary) column is simply dropped by the Reorder below.
	curSet := bindingSet(ret)
	missing := keyword.NewSet()
	for _, v := range retVars {
		if !curSet.Contains(v) {
			missing.Insert(v)
		}
	}
	if missing.Len() > 0 {
		return nil, fmt.Errorf("%w: %v", rule.ErrUnsafeUnboundVars, missing.Slice())
	}

	return ret.Reorder(retVars), nil
}

// rename returns v if it has not been seen before in this rule body
// (marking it seen), or a fresh temporary Keyword plus the join-key pair
// needed to unify that temporary back with v's earlier binding. This is the
// "bind-or-rename" trick the original compiler inlines at every AttrTriple
// and RuleApply argument position.
func rename(v keyword.Keyword, seen *keyword.Set, gen *keyword.Generator, leftKeys, rightKeys *[]keyword.Keyword) keyword.Keyword {
	if seen.Contains(v) {
		fresh := gen.Fresh()
		*leftKeys = append(*leftKeys, v)
		*rightKeys = append(*rightKeys, fresh)
		return fresh
	}
	seen.Insert(v)
	return v
}

func compileAttrTriple(ret *Relation, a rule.AttrTriple, vld schema.Validity, seen *keyword.Set, gen *keyword.Generator) (*Relation, error) {
	entVar, entIsVar := a.Entity.Variable()
	entConst, entIsConst := a.Entity.Value()
	valVar, valIsVar := a.Val.Variable()
	valConst, valIsConst := a.Val.Value()

	switch {
	case entIsConst && valIsVar:
		leftKey, rightKey := gen.Fresh(), gen.Fresh()
		constRel := Singlet([]keyword.Keyword{leftKey}, []value.Value{value.EnId(entConst)})
		if ret.IsUnit() {
			ret = constRel
		} else {
			ret = ret.CartesianJoin(constRel)
		}
		leftKeys := []keyword.Keyword{leftKey}
		rightKeys := []keyword.Keyword{rightKey}
		boundVal := rename(valVar, seen, gen, &leftKeys, &rightKeys)
		right := Triple(a.Attr, vld, rightKey, boundVal)
		return ret.Join(right, leftKeys, rightKeys), nil

	case entIsVar && valIsConst:
		leftKey, rightKey := gen.Fresh(), gen.Fresh()
		constRel := Singlet([]keyword.Keyword{leftKey}, []value.Value{valConst})
		if ret.IsUnit() {
			ret = constRel
		} else {
			ret = ret.CartesianJoin(constRel)
		}
		leftKeys := []keyword.Keyword{leftKey}
		rightKeys := []keyword.Keyword{rightKey}
		boundEnt := rename(entVar, seen, gen, &leftKeys, &rightKeys)
		right := Triple(a.Attr, vld, boundEnt, rightKey)
		return ret.Join(right, leftKeys, rightKeys), nil

	case entIsVar && valIsVar:
		if entVar == valVar {
			return nil, fmt.Errorf("%w: %s(%s, %s)", ErrSelfJoinUnsupported, a.Attr.Name, entVar, valVar)
		}
		var leftKeys, rightKeys []keyword.Keyword
		boundEnt := rename(entVar, seen, gen, &leftKeys, &rightKeys)
		boundVal := rename(valVar, seen, gen, &leftKeys, &rightKeys)
		right := Triple(a.Attr, vld, boundEnt, boundVal)
		if ret.IsUnit() {
			return right, nil
		}
		return ret.Join(right, leftKeys, rightKeys), nil

	default: // entIsConst && valIsConst
		leftVar1, leftVar2 := gen.Fresh(), gen.Fresh()
		constRel := Singlet([]keyword.Keyword{leftVar1, leftVar2}, []value.Value{value.EnId(entConst), valConst})
		if ret.IsUnit() {
			ret = constRel
		} else {
			ret = ret.CartesianJoin(constRel)
		}
		rightVar1, rightVar2 := gen.Fresh(), gen.Fresh()
		right := Triple(a.Attr, vld, rightVar1, rightVar2)
		return ret.Join(right, []keyword.Keyword{leftVar1, leftVar2}, []keyword.Keyword{rightVar1, rightVar2}), nil
	}
}

func compileRuleApply(ret *Relation, app rule.RuleApply, stores map[string]*StoreRef, seen *keyword.Set, gen *keyword.Generator) (*Relation, error) {
	store, ok := stores[app.Name.Name()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", rule.ErrUndefinedRule, app.Name)
	}
	if store.Arity != len(app.Args) {
		return nil, fmt.Errorf("%w for rule %s", rule.ErrArityMismatch, app.Name)
	}

	var prevJoinerVars, rightJoinerVars, rightVars []keyword.Keyword
	var tempLeftBindings []keyword.Keyword
	var tempLeftJoinerVals []value.Value

	for _, term := range app.Args {
		if v, isVar := term.Variable(); isVar {
			if seen.Contains(v) {
				prevJoinerVars = append(prevJoinerVars, v)
				rk := gen.Fresh()
				rightVars = append(rightVars, rk)
				rightJoinerVars = append(rightJoinerVars, rk)
			} else {
				seen.Insert(v)
				rightVars = append(rightVars, v)
			}
			continue
		}
		constant, _ := term.Value()
		tempLeftJoinerVals = append(tempLeftJoinerVals, constant)
		leftKw := gen.Fresh()
		prevJoinerVars = append(prevJoinerVars, leftKw)
		tempLeftBindings = append(tempLeftBindings, leftKw)
		rightKw := gen.Fresh()
		rightJoinerVars = append(rightJoinerVars, rightKw)
		rightVars = append(rightVars, rightKw)
	}

	if len(tempLeftJoinerVals) > 0 {
		constJoiner := Singlet(tempLeftBindings, tempLeftJoinerVals)
		ret = ret.CartesianJoin(constJoiner)
	}

	right := Derived(rightVars, store)
	if ret.IsUnit() {
		return right, nil
	}
	return ret.Join(right, prevJoinerVars, rightJoinerVars), nil
}
