// Package value defines the dynamic data model exchanged across the emdb
// boundary.
//
// Value is a sealed interface: only the types in this package implement it.
// Every parameter and every result of an engine call is a Value, encoded with
// package codec. Nothing in this package imports another emdb package, so it
// stays the foundational layer.
//
// Key design constraints:
//   - None (absent) and Null (explicit null) are distinct values
//   - Object keys are iterated in RFC 8785 order (UTF-16 code units)
//   - Strings are NFC normalised only at the canonical JSON boundary
//   - Value equality is structural; use Equal, not ==
package value
