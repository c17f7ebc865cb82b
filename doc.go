// Package coord provides sharded, fault-tolerant coordination for guild
// workloads spread across a fleet of service instances.
//
// A cluster is a set of processes (gateway, audio, api, worker pools)
// sharing one coordination store (Redis in production, in-memory for tests
// and single-node deployments). Each process runs one Coordinator, which
// registers the instance, publishes heartbeats, watches peers for failures,
// and keeps every guild bound to exactly one healthy instance.
//
// # Quick Start
//
// Basic usage with default settings:
//
//	import (
//	    "github.com/Lucascis/coord"
//	    "github.com/Lucascis/coord/store"
//	)
//
//	st, err := store.NewRedisClient("redis://localhost:6379", "coord")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	c, err := coord.NewCoordinator(coord.Config{
//	    ServiceType: coord.ServiceAudio,
//	    Host:        "10.0.0.5",
//	    Port:        8080,
//	}, st)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := c.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Stop(context.Background())
//
// # Key Features
//
//   - Majority Locking: leases valid only when a quorum of store nodes
//     grants them, with drift compensation and auto-extension
//   - Failure Detection: heartbeat-driven, with a derived missed-count so
//     all peers reach the same verdict without shared counters
//   - Session Affinity: guilds with active sessions are sticky and never
//     moved by rebalancing
//   - Leader-Elected Rebalancing: one coordinator at a time evaluates load
//     and migrates guilds from overloaded to underloaded instances
//   - Typed Cluster Events: a closed event set broadcast over store pub/sub
//     or NATS
//
// # Architecture
//
// Guild ownership moves through exactly one path, the migration flow:
//
//	request record → started event → clear old binding → write new binding
//	              → delete record → completed event
//
// Old bindings are cleared before new ones are written, so a failure
// mid-migration leaves a guild briefly unowned, never owned twice. Unowned
// guilds are marked stale and retried by the next rebalance pass.
//
// # Advanced Usage
//
// Custom strategy and hooks:
//
//	import (
//	    "github.com/Lucascis/coord"
//	    "github.com/Lucascis/coord/strategy"
//	)
//
//	sel := strategy.NewConsistentHash(
//	    strategy.WithVirtualNodes(300),
//	)
//
//	hooks := &coord.Hooks{
//	    OnGuildAssigned: func(ctx context.Context, guildID string) error {
//	        return connectGuild(ctx, guildID)
//	    },
//	}
//
//	c, err := coord.NewCoordinator(cfg, st,
//	    coord.WithStrategy(sel),
//	    coord.WithHooks(hooks),
//	)
//
// See the examples/ directory for complete working examples.
package coord
