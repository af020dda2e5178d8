package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Veraticus/paperflow/internal/model"
)

// Cached memoizes predictions by text digest. The wrapped adapter is pure,
// so a hit is indistinguishable from a fresh call.
type Cached struct {
	inner  Adapter
	cache  *gocache.Cache
	logger *slog.Logger
}

// NewCached wraps inner with a cache whose entries live for ttl.
func NewCached(inner Adapter, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		inner:  inner,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Identity implements Adapter.
func (c *Cached) Identity() string {
	return c.inner.Identity()
}

// Predict implements Adapter. Errors are never cached.
func (c *Cached) Predict(ctx context.Context, text string) (model.Prediction, error) {
	sum := sha256.Sum256([]byte(text))
	key := hex.EncodeToString(sum[:])

	if v, found := c.cache.Get(key); found {
		c.logger.Debug("prediction cache hit", "key", key[:12])
		return v.(model.Prediction), nil
	}

	pred, err := c.inner.Predict(ctx, text)
	if err != nil {
		return model.Prediction{}, err
	}
	c.cache.SetDefault(key, pred)
	return pred, nil
}

// Len returns the number of cached predictions.
func (c *Cached) Len() int {
	return c.cache.ItemCount()
}
