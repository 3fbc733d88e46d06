// Package core defines the shared language of the smart-sql query layer.
//
// This package contains:
//   - Connection descriptors and backend kinds
//   - Query requests, results and the generic cell Value
//   - Execution plan nodes and schema introspection types
//
// The Golden Rule: pkg/core imports ONLY pkg/errors and stdlib.
// All other packages depend on core, not the reverse.
package core
