// Package domain defines the layered material stack at the heart of the
// FDTR model: a semi-infinite substrate under an ordered, append-only
// sequence of layers, with a thermal contact conductance at each boundary.
//
// A Stack is built bottom-up: AddSubstrate, then AddLayer for each film,
// then SetInterface for any boundary with finite conductance. Boundaries
// are numbered 1..N from the substrate boundary upward and default to
// ideal (no added resistance).
//
// The package also owns the error taxonomy shared by the solver and the
// fitting engine; see errors.go.
package domain
