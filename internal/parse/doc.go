// Package parse turns statement text into ir statements.
//
// Statements are written as space-separated terms, with commas separating
// clauses in a rule:
//
//	(you) has width (100)
//	/p/ has width /w/ , /p/ is labeled /label/ with priority /prio/
//
// Groups delimit terms: "..." or '...' for string literals, (...) for bare
// literals, [...] for optional sub-clauses and /.../ for variables. A group
// opens only at the start of input or after a space, and closes only when
// followed by a space or the end of input, so parentheses and slashes inside
// a value need no escaping.
//
// The literal (you) is replaced by the owner id at parse time.
package parse
