package preferences

import (
	"errors"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/mynotes/docsync/pkg/gateway"
	"github.com/mynotes/docsync/pkg/models"
)

// startPushLocked sends prefs on a detached goroutine. A push gives up once a
// newer push has started, once Clear or Close cancels it, or once its retry
// budget is spent.
func (c *Cache) startPushLocked(seq uint64, prefs models.UserPreferences) {
	ctx := c.pushCtx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		attempt := 0
		op := func() error {
			if !c.isLatestPush(seq) {
				return backoff.Permanent(errSuperseded)
			}
			attempt++
			err := c.api.UpdatePreferences(ctx, prefs)
			if gateway.IsUnauthorized(err) || errors.Is(err, gateway.ErrUnauthenticated) {
				return backoff.Permanent(err)
			}
			return err
		}
		notify := func(err error, wait time.Duration) {
			c.logger.Warn("Preference push failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		}

		start := time.Now()
		policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.retries), ctx)
		err := backoff.RetryNotify(op, policy, notify)
		if errors.Is(err, errSuperseded) {
			c.logger.Debug("Preference push superseded", "attempts", attempt)
			return
		}
		c.metrics.Observe(cacheName, "push", time.Since(start), err)
		c.metrics.PreferencePush(err)
		if err != nil {
			c.logger.Error("Failed to push preferences, keeping local copy", "attempts", attempt, "error", err)
			return
		}
		c.logger.Debug("Pushed preferences", "attempts", attempt)
	}()
}

func (c *Cache) isLatestPush(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq == c.pushSeq
}
