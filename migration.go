package coord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Lucascis/coord/types"
)

// MigrateGuild moves one guild from one instance to another.
//
// The move is serialized by a per-guild lock and ordered so the brief
// intermediate state is "unowned", never "owned twice":
//
//  1. write the migration request record (TTL = migration timeout)
//  2. publish migration_started
//  3. clear the old binding
//  4. write the new binding (stickiness flags preserved)
//  5. delete the request record, publish migration_completed
//
// Any step failing publishes migration_failed and returns a wrapped
// ErrMigrationFailed; the abandoned request record TTL-expires. The whole
// flow is retried up to the configured retry count, each retry as a brand
// new request.
//
// Parameters:
//   - ctx: Context bounding the migration
//   - guildID: Guild to move
//   - fromInstanceID: Current owner ("" when re-homing an unbound guild)
//   - toInstanceID: Target owner
//   - reason: Why the guild is moving
//
// Returns:
//   - error: ErrMigrationFailed after exhausting retries
func (c *Coordinator) MigrateGuild(ctx context.Context, guildID, fromInstanceID, toInstanceID string, reason types.MigrationReason) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Migration.RetryCount; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = c.migrateOnce(ctx, guildID, fromInstanceID, toInstanceID, reason)
		if lastErr == nil {
			return nil
		}
	}

	return lastErr
}

// migrateOnce runs one lock-guarded migration attempt.
func (c *Coordinator) migrateOnce(ctx context.Context, guildID, fromInstanceID, toInstanceID string, reason types.MigrationReason) error {
	migrateCtx, cancel := context.WithTimeout(ctx, c.cfg.Migration.Timeout)
	defer cancel()

	return c.locks.Do(migrateCtx, migrateResourcePrefix+guildID, c.cfg.Lock.TTL, func(ctx context.Context) error {
		start := c.clock.Now()

		req := types.MigrationRequest{
			GuildID:        guildID,
			FromInstanceID: fromInstanceID,
			ToInstanceID:   toInstanceID,
			Reason:         reason,
			Priority:       priorityFor(reason),
			RequestedAt:    c.clock.Now().UTC(),
		}

		target, err := c.registry.GetInstance(ctx, toInstanceID)
		if err != nil {
			return c.failMigration(ctx, req, fmt.Errorf("target unavailable: %w", err))
		}

		// Capture stickiness before the binding is cleared.
		hasSession, serving := false, false
		if prev, err := c.registry.GetGuildAssignment(ctx, guildID); err == nil {
			hasSession = prev.HasActiveSession
			serving = prev.IsActivelyServing
		} else if !errors.Is(err, types.ErrAssignmentNotFound) {
			return c.failMigration(ctx, req, err)
		}

		data, err := json.Marshal(req)
		if err != nil {
			return c.failMigration(ctx, req, err)
		}
		if err := c.store.Set(ctx, migrationKeyPrefix+guildID, data, c.cfg.Migration.Timeout); err != nil {
			return c.failMigration(ctx, req, err)
		}

		c.publishEvent(ctx, types.MigrationStarted{Request: req})

		if err := c.affinity.RemoveAffinity(ctx, guildID); err != nil {
			return c.failMigration(ctx, req, err)
		}
		if err := c.affinity.SetAffinity(ctx, guildID, toInstanceID, target.ServiceType); err != nil {
			return c.failMigration(ctx, req, err)
		}
		if hasSession || serving {
			if err := c.affinity.TouchActivity(ctx, guildID, hasSession, serving); err != nil {
				c.logger.Warn("failed to restore session flags after migration",
					"guild_id", guildID, "error", err)
			}
		}

		if err := c.store.Delete(ctx, migrationKeyPrefix+guildID); err != nil {
			c.logger.Warn("failed to delete migration request, will TTL-expire",
				"guild_id", guildID, "error", err)
		}

		duration := c.clock.Since(start)
		c.publishEvent(ctx, types.MigrationCompleted{Request: req, Duration: duration})
		c.metrics.RecordMigration(reason, true, duration)
		c.invokeHook("migration", func(ctx context.Context) error {
			if c.hooks.OnMigration == nil {
				return nil
			}

			return c.hooks.OnMigration(ctx, req, nil)
		})

		c.logger.Info("guild migrated",
			"guild_id", guildID,
			"from", fromInstanceID,
			"to", toInstanceID,
			"reason", reason,
			"duration", duration,
		)

		return nil
	})
}

// failMigration publishes the failure, records metrics, and wraps the cause.
func (c *Coordinator) failMigration(ctx context.Context, req types.MigrationRequest, cause error) error {
	c.publishEvent(ctx, types.MigrationFailed{Request: req, Error: cause.Error()})
	c.metrics.RecordMigration(req.Reason, false, c.clock.Since(req.RequestedAt))
	c.invokeHook("migration", func(ctx context.Context) error {
		if c.hooks.OnMigration == nil {
			return nil
		}

		return c.hooks.OnMigration(ctx, req, cause)
	})

	return fmt.Errorf("%w: guild %s (%s -> %s): %v",
		ErrMigrationFailed, req.GuildID, req.FromInstanceID, req.ToInstanceID, cause)
}

// priorityFor maps migration reasons to scheduling priorities. Failure
// recovery outranks planned movement.
func priorityFor(reason types.MigrationReason) types.MigrationPriority {
	switch reason {
	case types.MigrationInstanceFailure:
		return types.PriorityHigh
	case types.MigrationInstanceShutdown:
		return types.PriorityHigh
	case types.MigrationRebalance:
		return types.PriorityLow
	default:
		return types.PriorityNormal
	}
}

// publishEvent broadcasts a cluster event, logging (not failing) on bus
// errors.
func (c *Coordinator) publishEvent(ctx context.Context, payload types.EventPayload) {
	if err := c.bus.Publish(ctx, types.NewEvent(payload)); err != nil {
		c.logger.Warn("failed to publish cluster event", "type", payload.EventType(), "error", err)
	}
}
