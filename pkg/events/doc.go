/*
Package events provides an in-process pub/sub broker for registry change
events.

Engines publish an event after their transaction commits (service
created, dependency removed, port allocated, template generated, ...).
The server wires an audit subscriber that logs every event; other
subscribers can attach for notifications or cache invalidation.

Delivery is best-effort: Publish never blocks a registry operation, the
broker buffers bursts, and a subscriber that stops draining its channel
misses events rather than stalling the broadcast loop. Dropped counts are
observable for monitoring.
*/
package events
