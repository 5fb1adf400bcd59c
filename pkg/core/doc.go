// Package core defines the shared language of the leapseed system.
//
// This package contains:
//   - Schema hand-off types produced by loaders (Schema, EntitySpec, RelationshipSpec, ...)
//   - The closed field value variant (Literal, Reference, ReferenceList) and InstanceRef
//   - The Error type and its kinds
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
