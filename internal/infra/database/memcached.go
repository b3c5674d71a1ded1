package database

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
)

// NewMemcached returns the shared display cache. Reads through it are
// advisory, so a short timeout keeps a slow memcached from stalling requests.
func NewMemcached(server string) (*memcache.Client, error) {
	mc := memcache.New(server)
	mc.Timeout = 200 * time.Millisecond
	if err := mc.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to reach memcached")
	}
	return mc, nil
}
