// Package codec converts values to and from CBOR.
//
// The encoding is core deterministic (RFC 8949 section 4.2.1): the same value
// always produces the same bytes. Non-JSON variants are carried in tags whose
// numbers are part of the wire contract and are never reassigned:
//
//	 0  datetime, RFC 3339 text (decode only)
//	 6  None, content null
//	 7  Table, text
//	 8  RecordID, [table, key]
//	 9  UUID, text (decode only)
//	10  Decimal, text
//	12  Datetime, [seconds, nanoseconds]
//	13  Duration, text such as "1h30m" (decode only)
//	14  Duration, [seconds, nanoseconds]
//	37  UUID, 16 byte string
//	2/3 bignum, decoded as Decimal
package codec
