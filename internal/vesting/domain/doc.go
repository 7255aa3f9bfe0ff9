// Package domain holds the vesting entities and the pure claim math.
//
// Grants and employee grants are value types; every mutation returns a new
// value and persistence is left to the storage layer. Schedule times are
// unix seconds, amounts are integer token units.
package domain
