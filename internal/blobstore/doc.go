// Package blobstore is the durable storage adapter: store bytes under a key, stream them back by key.
//
// Two drivers implement [Store]:
//
//   - [FSStore] keeps each object as a file under a root directory with a JSON sidecar holding its [Info].
//     Writes go to a temporary file in the same directory and are renamed into place, so a reader
//     never observes a partial object.
//   - [SQLiteStore] splits objects into fixed-size chunks in the blob_chunks table, with one row per
//     object in blobs. The object row is written in the same transaction as its chunks.
//
// Both drivers return readers that implement [io.ReadSeeker], which lets HTTP handlers honour Range requests.
package blobstore
