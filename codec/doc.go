// Package codec defines the format independent traversal contract shared by
// parsers and serializers.
//
// A parser walks its input in lock-step with a metadata.Struct tree and
// reports what it finds to a Visitor. A serializer is itself a Visitor. The
// Record type is a dynamic value tree for a metadata.Struct; Builder turns
// visitor events into a Record and Walker turns a Record back into events, so
// any parser can be connected to any serializer.
package codec
