// Package audit records device discovery registrations in SQLite.
//
// Every time the transceiver binds an address to a device a row is
// written with the controller session id, so operators can see which
// phone held which id across restarts. The log is never read back to
// restore identities.
package audit
