// Package model defines core types used throughout LingoDB.
//
// # Identity Types
//
//   - NodeID: 1-based identifier of a node; NodeID(0) is the invalid sentinel
//
// # Classification Types
//
//   - Layer: abstraction level, Letters (0) through Domains (6)
//   - EtymologyOrigin: historical language family of a lexeme
//   - MorphemeType: prefix, suffix, root, compound, infix, other
//   - NodeFlags: independent classification bits
//   - ConnectionType: typed, directed relation between two nodes
//
// # Records
//
//   - Node: decoded node with its word, position and classification
//   - Connection: target, type and strength of a directed link
//
// # Geometry
//
// Coordinate is a point in the unit cube. Distances are computed in float64
// from the stored float32 components so that every package (octree, reader,
// query VM, tests) agrees on the exact same values.
//
// # Errors
//
// The error kinds shared by every package are sentinel errors declared in
// errors.go. Callers match them with errors.Is.
package model
