// Package region partitions the retained memory area into one fixed byte
// range per session collection and frames each range with a small header.
//
// Region layout:
//
//	+--------+---------+----------+----------+----------------------------+
//	| magic  | version | body len | checksum | body: u64 count + entities |
//	| u16    | u16     | u32      | u32      |                            |
//	+--------+---------+----------+----------+----------------------------+
//
// The checksum is murmur3 over the body. A region whose header does not
// match is treated as holding no data. The table itself performs no I/O.
package region
