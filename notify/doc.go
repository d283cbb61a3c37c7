// Package notify delivers one-time passcodes out of band.
//
// The engine hands each plaintext code to a [Sender] exactly once per
// issuance. [SMTPSender] mails it, [LogSender] writes a structured log line
// for local development, and [MemorySender] keeps the latest code per
// address for tests and load generation.
package notify
