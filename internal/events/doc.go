// Package events publishes session lifecycle events to Kafka.
//
// Each event is a JSON document keyed by guild id so that one guild's events
// land on one partition in order. Without configured brokers NewPublisher
// returns a publisher that discards everything.
package events
