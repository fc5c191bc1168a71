// Package core detects the serialization of a tabular object, masks the
// requested columns and re-encodes it in the same format.
//
// The package is pure: no I/O, no logging and no shared mutable state beyond
// the codec registry, which is populated at init time.
//
// # Flow
//
//  1. [Decode] tries each registered codec in chain order (parquet, CSV,
//     JSON) and accepts the first whose columns include every requested
//     field. The field list is the format oracle; [WithFormatHint] narrows
//     the chain to one codec.
//  2. [Obfuscate] deep-copies the table and overwrites every cell of the
//     requested columns with [Sentinel].
//  3. [Encode] writes the table back with the detected format's codec.
//
// [Process] runs all three and reports a [Result].
//
// # Formats
//
// CSV and JSON carry no types, so their columns are [TypeText] and each
// column is inferred as integer, float or string. Parquet columns keep their
// physical types. A masked parquet column becomes a string column.
//
// # Error Handling
//
// Errors match one of [ErrEncoding], [ErrUnrecognizedFormat],
// [ErrUnknownField], [ErrSerialization] or [ErrNoFields] with errors.Is.
// [MapError] turns any error from this module into a [UserMessage] with a
// code for support reference:
//
//   - OBF001-OBF005: detection, masking and encoding errors
//   - STO001-STO004: object storage errors
//   - SVC001-SVC003: request and capacity errors
//   - RATE001: request throttling
package core
