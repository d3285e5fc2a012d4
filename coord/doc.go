// Package coord provides the multi-year coordination core for the workforce
// simulator: cross-year cost attribution, tiered caching of expensive
// intermediate results, and profiling-driven coordination optimization.
//
// # Reading Guide
//
// Start with these files to understand the shared domain model:
//   - types.go: WorkforceMetrics snapshots and SimulationEvent, the two
//     inputs supplied by the business-simulation layer
//   - config.go: configuration grouping structs and YAML loading
//
// # Architecture
//
// The coord package defines shared types and configuration; the systems
// live in sub-packages:
//   - coord/cache/: three-tier cache manager (fast, compressed, persistent)
//     with adaptive promotion/demotion and cascading invalidation
//   - coord/attribution/: cross-year cost attribution with selectable
//     allocation strategies and audit-grade integrity validation
//   - coord/profile/: phase profiling, continuous resource sampling, and
//     bottleneck classification
//   - coord/optimize/: the coordination optimizer state machine and the
//     advisory resource optimizer
//   - coord/metric/: Prometheus instrumentation shared by the above
//
// Sub-packages depend on coord and on each other only in the direction
// listed: optimize is the top-level driver and wires the other three.
package coord
