// Package blackboard provides the Redis schema and client for the locbridge
// seed event audit trail.
//
// # Overview
//
// The bridge publishes a SeedEvent for every teach and set outcome and for every
// write of the live pose into the PLC. Events go to a Pub/Sub channel for live
// watchers and into a capped sorted set for later listing. The latest live pose is
// kept in a hash so operators can inspect it without connecting to the Locator.
//
// Redis is write-only from the bridge's side: nothing stored here is read back to
// rebuild synchronization state after a restart.
//
// # Multi-Instance Support
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so several
// bridges can share one Redis server.
//
// # Redis Schema
//
//	locbridge:{instance}:seed_events    Pub/Sub channel, JSON SeedEvent
//	locbridge:{instance}:seed_history   ZSET, member JSON SeedEvent, score timestamp ms
//	locbridge:{instance}:current_pose   HASH, latest pose written as seed zero
//
// # Usage Example
//
//	client, err := blackboard.NewClient(&redis.Options{Addr: "localhost:6379"}, "line-3")
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	ev := blackboard.NewSeedEvent(blackboard.EventTaught, 3)
//	ev.X, ev.Y, ev.Yaw = 1.0, 2.0, 0.5
//	if err := client.RecordSeedEvent(ctx, ev); err != nil {
//		return err
//	}
package blackboard
