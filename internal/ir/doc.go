// Package ir provides the record and value types shared by every layer of
// shelf.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Column values are a sealed union: Null, Text, Number
//   - Records keep field order (request order on write, column order on read)
//   - Collection and column names are validated here before any layer
//     interpolates them into SQL text
package ir
