package vfs

import "github.com/yiny1/simplefs/users"

// Identity is the uid/gid pair every filesystem operation is checked
// against. Sessions carry one per spec §4.6/§4.8.
type Identity struct {
	Uid uint16
	Gid uint16
}

// IsRoot reports whether this identity bypasses all permission checks.
func (id Identity) IsRoot() bool {
	return id.Uid == users.RootUID
}

// Root is the administrator identity, used by format and by operations
// the daemon performs on its own behalf (e.g. seeding /etc).
var Root = Identity{Uid: users.RootUID, Gid: users.RootUID}
