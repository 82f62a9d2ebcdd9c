// Package constants centralizes defaults shared across the CLI and the check engine.
//
// File permissions, network timeouts, grading defaults and notification
// limits live here so cmd/ and internal/ reference one value without
// introducing import cycles.
package constants
