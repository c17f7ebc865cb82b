// Package types contains the shared data model and interfaces for the coord
// library.
//
// It is imported by every other package in the module, which keeps internal
// packages free of import cycles: components depend on types, never on the
// root coord package. The root package re-exports the common types via
// aliases so that library consumers rarely need to import this package
// directly.
package types
