// Package compiler runs compilation passes.
//
// Each pass gets its own catalog, dedup guard and singleton engine, so
// nothing declared in one pass is visible to the next. A pass evaluates a
// manifest (or an ad-hoc declaration call), optionally checks the resulting
// catalog against policies, and reports metrics, spans and events through
// the configured telemetry.
package compiler
