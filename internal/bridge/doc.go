// Package bridge implements the one-shot completion protocol used to hand
// results back across an ownership boundary.
//
// A caller supplies two Actions, success and failure. Each Action pairs a
// foreign token with a release callback (the Handle) and a deliver callback.
// A Completion delivers exactly one outcome and then releases both handles,
// whichever outcome fired and even if the work panicked.
//
// Payload bytes are copied into buffers produced by an Allocator. Ownership
// of a delivered buffer passes to the receiver, who returns it with Free.
package bridge
