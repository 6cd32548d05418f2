// Package stream batches records onto a Kinesis data stream through
// PutRecords.
//
// Each payload is serialized to JSON with decimal-safe number encoding and
// keyed by one of its fields. PutRecords reports failures per record; the
// failed records are resent together as a smaller nested batch until a
// response comes back clean. Records still failing after the nested batch
// budget fall back to PutRecord with the individual retry budget.
package stream
