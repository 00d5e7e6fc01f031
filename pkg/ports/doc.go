/*
Package ports defines the driven ports (interfaces) of the Arbor engine.

These interfaces decouple the authoring and playback cores from external
collaborators, so the same story can be served from memory, a directory of
YAML files, Redis, SQLite or a Loam document repository.

# Key Interfaces

  - GraphRepository: loads and persists the StoryGraph of a unit.
  - SceneSource: resolves a scene reference to its content.
  - StoryCatalog: resolves a story to its ordered units and ending mode.
  - EntitlementResolver: answers whether a reader may open a unit.
  - ProgressStore: persists reading progress snapshots.
  - DistributedLocker: coordinates access to a session across replicas.

Adapters verify themselves against the exported Run*Contract suites.
*/
package ports
