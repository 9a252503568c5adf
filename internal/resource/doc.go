// Package resource serves the generic collection endpoints.
//
// Writer handles POST /{collection}: it parses the body into an ordered
// record, reconciles the collection's schema with the record's fields,
// provisions any missing columns and inserts the record.
//
// Reader handles GET /{collection} and GET /{collection}/{id}. Reads are
// gated by a marker: a collection without one answers with an empty list
// and storage is never touched. Storage errors on reads are routed through
// a FailurePolicy; the default, SoftFailRead, answers with an empty list.
package resource
