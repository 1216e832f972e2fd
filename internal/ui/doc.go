// Package ui renders sync reports, run history, and card listings for the
// terminal using lipgloss styles.
//
// Rendering is pure: every function maps domain values to a styled string and
// leaves writing to the caller, so output stays testable.
package ui
