// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - ContentStore: Offline content persistence (SQLite or memory)
//   - MutationQueue: FIFO persistence of writes made while offline
//   - ContentFetcher: Content API client
//   - MutationReplayer: Mutation API client
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - ConnectivityProbe: Without it the network state only changes when set explicitly.
//   - SchedulerStore: Without it no background tasks run.
//   - Metrics: Without it nothing is recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
