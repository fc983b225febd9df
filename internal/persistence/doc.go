// Package persistence stores quadtrees in the qix index format and loads
// them back, either fully materialized or as a lazily decoded view over a
// read-only memory map.
//
// Layout:
//
//	header (32 bytes)
//	  "QIX" | order 'L'|'B' | version u8 | reserved [3]
//	  records u64 | nodes u32 | max depth u32 | leaf capacity u32 | body crc32c u32
//	body, nodes in pre-order
//	  subtree bytes u64 | minX minY maxX maxY f64 | id count u32 | ids u32... | child count u32
//
// Every integer and float after the order flag uses the flagged byte order.
// The subtree size counts the encoded bytes of all descendants and lets a
// lazy reader skip a child without decoding it.
package persistence
