// Package condition evaluates story-variable expressions and applies
// variable-modifier operations.
//
// Expressions are small, side-effect-free boolean formulas over a
// domain.VariableStore:
//
//	affection >= 50 && hasItem('key')
//	!(met_rival) || route == "north"
//	len(inventory) > 2 and gold % 2 == 0
//
// Supported operators, loosest first: || (or), && (and), == !=, < <= > >=,
// + -, * / %, and the unary ! (not) and -. Literals are numbers, single or
// double quoted strings, true, false and null. Builtins are hasItem, contains,
// len, defined, min, max and abs. Referencing an undefined variable is an
// evaluation error; use defined('name') to test for presence.
//
// Apply and ApplyAll implement the modifier operations. They never mutate the
// store they are given.
package condition
