// Package domain contains the core entities of the somapay payment protocol:
// wire frames, sessions, transactions, and the error taxonomy.
//
// The domain layer has no dependencies on infrastructure. Frames are immutable
// values, the session and transaction types carry their own state enums, and
// all failure modes are typed errors comparable with errors.Is / errors.As.
package domain
