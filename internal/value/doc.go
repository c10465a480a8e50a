// Package value is the immutable tree every stage passes along:
// scalars, lists and ordered blocks. Nothing in here ever mutates a
// value in place; Block.With and friends return modified copies that
// share untouched subtrees with their input.
package value
