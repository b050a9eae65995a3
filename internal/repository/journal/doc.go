// Package journal implements persistence for alert records.
//
// The FileRepository appends one protobuf JSON object per line to a file on
// disk, so a crash can lose at most the record being written.
package journal
