// Package dud provides Dud, a minimal owned resource.
//
// A Dud holds one int32 "points" value in a 4-byte block of a free store.
// Construction allocates the block and Drop frees it, so a Dud that is never
// dropped shows up as a live block in heap.Store.Stats.
//
// Dud implements resource.Dropper and is normally owned through own.Own or a
// scope.Frame rather than dropped by hand.
package dud
