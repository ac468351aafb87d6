// Package status holds the closed status enumerations for shifts and jobs and
// the transition table that drives routing and visibility of shifts.
package status
