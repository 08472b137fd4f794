// Package models defines the domain types of the catalog migration.
//
// The package contains two categories of types:
//
// 1. Transfer types: the data flowing from the record store to the spreadsheet
//   - [Value] : JSON-shaped field value (null, bool, number, string, list, ordered map)
//   - [Record] : One source row as an ordered set of named fields
//   - [Row] : One destination row of cell text
//   - [Schema] : Ordered column layout ([AlbumSchema], [HistorySchemaFull], [HistorySchemaCompact])
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Run] : One migration run with counters, snapshot counts and verdict
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
