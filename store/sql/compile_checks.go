package sqlstore

import (
	"github.com/philippzhuravlev/DTUEvent/core"
	"github.com/philippzhuravlev/DTUEvent/secrets"
)

var (
	_ core.PageDirectory     = (*PageDirectory)(nil)
	_ core.PageDirectory     = (*CachedPageDirectory)(nil)
	_ core.EventStore        = (*EventStore)(nil)
	_ secrets.Backend        = (*SecretBackend)(nil)
	_ secrets.VersionCounter = (*SecretBackend)(nil)
)
