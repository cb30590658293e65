// Package core provides the change-detection engine for ceespwatch.
//
// This package holds all domain logic independent of transport and storage.
// Adapters for fetching, notification and persistence plug in through the
// ports declared in ports.go, so the engine can be driven by the CLI, by the
// tests, or by anything else that can satisfy three small interfaces.
//
// # Pipeline
//
// A single run flows through these stages, strictly in order:
//
//  1. Fetch: a [Fetcher] returns raw bytes plus a declared encoding.
//  2. Decode: [DecodeTable] turns the payload into a [RawTable].
//  3. Resolve: [Resolve] maps volatile column names to stable [Role]s.
//  4. Canonicalize: each row becomes a [CanonicalRow] keyed by role.
//  5. Identify: [DeriveKey] builds an [IdentityKey] from the identity roles.
//  6. Reconcile: [Reconcile] diffs the keys against the stored baseline.
//  7. Notify: new records go to the [Notifier], except on the first run.
//  8. Persist: the full snapshot replaces the baseline in the [SnapshotStore].
//
// [Runner] owns the sequence and the rules around it.
//
// # Profiles
//
// Role rules are registered at init time using [RegisterProfile]. Each
// [Profile] declares the ordered role rules, the identity roles and the roles
// shown to humans:
//
//	core.RegisterProfile(core.Profile{
//	    Name: "ceesp",
//	    Rules: []core.RoleRule{
//	        {Role: "name", Required: true, Patterns: []string{"nom commercial"}},
//	    },
//	    IdentityRoles: []core.Role{"name"},
//	})
//
// # Error Handling
//
// Every failure a run can hit has a dedicated type carrying a support code:
//
//   - FETCH001: the source could not be reached
//   - FMT001: the payload is not tabular text
//   - EMPTY001: the payload or table is empty
//   - SCHEMA001: a required role has no matching column
//   - STORE001: the snapshot store failed
//   - NOTIFY001: delivery failed (non-fatal, the run still persists)
//
// Use [ErrorCode] to map any error to its code.
package core
