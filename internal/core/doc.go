// Package core provides the business logic for appending delimited files to
// warehouse tables.
//
// This package holds all domain logic independent of any UI or transport
// layer. It is used by the web handlers, the csvappend CLI and tests without
// modification. Storage is reached only through [TableStore].
//
// # Flow
//
// A [Session] walks one file through four steps:
//
//  1. [Service.UploadToSession] checks the extension and size, writes the
//     file to the volume and resets the session around it
//  2. [Service.PreviewSession] decodes the first rows with the current
//     [ParseSettings] and infers a [DataType] per column
//  3. [Service.ValidateSession] reads the whole file, compares it with the
//     target's declared schema and checks every value
//  4. [Service.AppendSession] inserts all rows in one transaction, but only
//     when the last passing validation was for the same file, target and
//     settings
//
// Changing the file, the target or the settings closes the append gate until
// validation passes again. A newer preview or validation always wins over an
// older one still in flight.
//
// # Type Compatibility
//
// Inferred file types are checked against declared column types with
// [Compatible]. Numbers widen to wider numeric columns, anything may be
// written to a STRING column, and STRING data may target TIMESTAMP or BOOLEAN
// columns, whose values are then checked cell by cell.
//
// # Error Handling
//
// Failures carry the step they happened in as a [StageError]. Technical
// errors are mapped to user-friendly messages using [MapError]. Each error
// category has a unique code for support reference:
//
//   - FILE001-FILE006: File errors (size, type, encoding, format)
//   - PRV001: Invalid parse settings
//   - VAL001-VAL004: Validation errors (target, gate, missing table, values)
//   - APP001-APP003: Append errors (in progress, duplicates, constraints)
//   - DB004-DB007: Database errors (connection, timeouts, permissions)
//   - RUN001-RUN002: Run limiter errors
package core
