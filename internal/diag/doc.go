// Package diag defines the diagnostic model consumed by every stage of the
// harness.
//
// # Data model
//
// Diagnostic mirrors one entry of the compiler's JSON diagnostic stream:
//
//   - Severity – closed enum (Error, Warning, Note, Help) parsed from the JSON
//     "level" field.
//   - Code – error code ("E0308") or lint name ("unused_mut"), possibly empty.
//   - Spans – primary and secondary locations with optional labels. Lines are
//     1-based, columns count characters.
//   - Children – note/help sub-messages in emission order.
//   - Suggestions – structured edits with their applicability.
//   - Rendered – the compiler's own human rendering, reused verbatim for
//     snapshots when present.
//
// Diagnostics are values. Builders (WithNote, WithSuggestion, ...) copy the
// slices they extend so a produced stream is never mutated in place.
//
// # Snapshots
//
// Snapshot is the ordered, summary-free list of diagnostics of one compiler
// run. Its summary line is always recomputed from the diagnostics, so the
// counts on a rendered snapshot can never disagree with its blocks. The
// compiler's own summary is kept in Snapshot.Reported for cross-checking.
//
// Rendering lives in internal/diagfmt; this package only does the line-level
// assembly of blocks and the summary.
package diag
