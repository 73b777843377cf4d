// Package binding maps persisted callback and codec ids to live functions.
//
// Function values cannot survive a power cycle, so entities persist the
// numeric id a callback was registered under. Ids are derived from the
// registration name with murmur3, which makes them identical across boots
// as long as the firmware registers the same names.
package binding
