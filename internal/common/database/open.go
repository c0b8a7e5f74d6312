// internal/common/database/open.go
package database

import "context"

// Conn is a client that can be pinged and released.
type Conn interface {
	Ping(ctx context.Context) error
	Close() error
}

// Open builds a client and pings it. A client that fails its ping is closed
// before the error is returned, so a retry loop around Open never leaks pools.
func Open[C Conn](ctx context.Context, build func() (C, error)) (C, error) {
	var zero C
	c, err := build()
	if err != nil {
		return zero, err
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return zero, err
	}
	return c, nil
}
