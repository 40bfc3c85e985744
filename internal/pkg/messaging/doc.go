// Package messaging provides a broker-agnostic API for publishing and
// consuming messages.
//
// Business code depends on Publisher and Consumer only. Drivers: NATS core
// subjects with queue groups, NSQ topics with channels, Kafka topics with
// consumer groups, and an in-process memory broker for single-node setups and
// tests.
package messaging
