package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context carries a request context together with the transaction an
// end-of-session write may be running under. Repos resolve their handle
// through it, so plain reads and transactional finalization share one code
// path.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// DB resolves the handle for one operation: the open transaction when
// there is one, the shared pool otherwise, always bound to the request
// context.
func (c Context) DB(pool *gorm.DB) *gorm.DB {
	h := pool
	if c.Tx != nil {
		h = c.Tx
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	return h.WithContext(ctx)
}
