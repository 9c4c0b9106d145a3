// Package pattern derives consumption patterns and shopping predictions
// from an item's acquisition and depletion history.
//
// Every function in this package is pure: results depend only on the
// arguments, and the clock is passed in explicitly. The aggregator in
// internal/service composes them and owns all persistence.
package pattern
