// Package codec provides the payload serializers used after the header of a
// container has been framed.
//
// A payload is a resource.Fields tree. Two codecs share that model:
//
//   - Text writes pretty-printed YAML (two-space indent). The top-level node
//     must be a mapping.
//   - Binary writes MessagePack, a schema-less self-describing encoding.
//
// # Usage
//
//	payload := codec.ForFormat(format.Binary)
//
//	// Encode a tree
//	if err := payload.Encode(w, fields); err != nil {
//	    return err
//	}
//
//	// Decode it back
//	fields, err := payload.Decode(r)
//	if err != nil {
//	    return err
//	}
//
// # Value Model
//
// Decoded trees are normalized so every mapping is a resource.Fields and every
// sequence is a []any. Integer widths differ between codecs (YAML yields int,
// MessagePack yields int64 or uint64); the accessors on resource.Fields hide
// that difference. An explicit null is kept as a nil value and stays distinct
// from an empty mapping, which decodes as a non-nil empty Fields.
//
// # Error Handling
//
// Encode failures wrap resource.ErrPayloadEncode and decode failures wrap
// resource.ErrPayloadDecode. An empty payload decodes to an empty tree.
//
// # Thread Safety
//
// Codecs are stateless and safe for concurrent use.
package codec
