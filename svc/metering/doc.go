// Package metering wires the subscription and usage metering engine into a
// deployable service: configuration from the environment, injected store
// backends, and a chi router exposing the decision API, the usage meter, and
// the gateway webhook endpoint.
//
// The package composes but does not reimplement: quota decisions live in
// pkg/usagegate, lifecycle event processing in pkg/reconciler, and state in
// the pkg/entitlement and pkg/ledger stores. Hosts choose the backends:
// memory for a single process, Redis/Postgres to share state across replicas.
package metering
