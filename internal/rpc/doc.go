// Package rpc routes method calls to an engine.
//
// A call arrives as a method code, an optional session id, an optional
// transaction id and CBOR parameter bytes. Execute decodes the parameters
// into an array, runs the engine operation the code names and encodes the
// result. Every failure comes back as an *Error carrying the method.
package rpc
