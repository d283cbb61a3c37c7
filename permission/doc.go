// Package permission maps account roles to 64-bit permission masks.
//
// # Registry
//
// [Registry.Register] assigns stable bit positions to permission names. The
// highest bit is reserved as the root bit when requested; a mask holding it
// satisfies every check.
//
// # Roles
//
// [RoleManager] composes named permissions into a [Mask64] per role.
// [Standard] builds the frozen set used by the HTTP layer: users manage
// their own profile and bookings, admins hold the root bit.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import staysafe, jwt, or accounts.
//   - Change bit assignments after Freeze.
package permission
