// Package diag defines the diagnostic model shared by every resolution stage.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity: Info, Warning or Error.
//   - Code: numeric identifier with a stable ID. The prefix encodes the stage
//     class: SYN (fragment syntax), SCH (schema), CNS (cross-field
//     consistency), DRV (derivation, always an internal bug) and IO.
//   - Key: the dotted configuration path the finding is about.
//   - Rule: name of the cross-field rule that fired, if any.
//   - Value: short rendering of the offending value.
//   - Primary: source.Span of the value in the fragment that supplied it.
//   - Notes: secondary spans, e.g. "first defined here" or the other field
//     taking part in a cross-field rule.
//
// # Emitting
//
// Stages receive a Reporter and either call Report directly or chain a
// ReportBuilder (ReportError / ReportWarning, WithKey, WithNote, Emit).
// BagReporter stores into a Bag; DedupReporter filters repeats.
//
// Bag never rejects a request by itself: the pipeline inspects Status after
// each stage and stops at the first stage that produced errors.
package diag
