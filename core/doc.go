// Package core contains the account transaction domain: the two-phase-commit
// state machine, its transaction store, and the coordinator service. Storage
// and transport adapters depend on this package; core must not depend on them.
package core
