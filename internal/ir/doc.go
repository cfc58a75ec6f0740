// Package ir provides the statement representation shared by every luma
// package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// data model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Term order inside a Clause is significant: unification is positional
//   - Statement identity is content-addressed (see hash.go)
//   - Statement kind is a tagged variant (KindFact / KindRule), never a
//     runtime type switch
//   - Binding values are kept as the matched text; typed conversion happens
//     lazily at read time
package ir
