// Package codec encodes session entities into retained memory.
//
// Three layers live here:
//
//   - wire.go: Writer/Reader for fixed-width little-endian integers, bools,
//     zero-terminated strings, length-prefixed blobs and optional ids.
//   - entity.go: one encoder/decoder pair per entity kind.
//   - collection.go: a u64 count followed by the entity encodings.
//
// Entity layouts (all integers little-endian):
//
//	KeyExpr       u16 id | u16 mapping | cstring suffix
//	Binding       u32 callback | u32 dropper | u32 codec | u8 has_arg | [blob arg]
//	Resource      u64 id | KeyExpr | u16 refcount
//	Subscription  KeyExpr | u32 id | u32 origin | u32 period | u32 duration |
//	              u8 reliability | u8 mode | Binding
//	Queryable     KeyExpr | u32 id | bool complete | Binding
//	PendingQuery  KeyExpr | u32 id | cstring parameters | u8 target |
//	              u8 consolidation | bool anykey | Binding | u64 n | n x PendingReply
//	PendingReply  Timestamp | u8 tag | [16]replier | Sample
//	Sample        KeyExpr | blob payload | Timestamp | blob enc_suffix |
//	              u8 enc_prefix | u8 kind
//	Timestamp     [16]node | u64 time
//
// Blobs are a u64 length followed by the bytes. Ids of zero mean absent.
// Arguments are produced by the domain.ArgumentCodec registered for the
// binding's codec id; this package never looks inside them.
package codec
