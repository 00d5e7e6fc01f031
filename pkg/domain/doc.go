/*
Package domain contains the core models of the Arbor story engine.

It defines the branching-narrative graph (nodes, edges, story variables), the
external content units the graph points at (scenes and their text), the story
catalog entry that chains units together, and the runtime vocabulary shared
by the authoring and playback packages (progress snapshots, playback events,
typed errors). The package is pure data plus invariants and has no I/O.

# Key Entities

  - StoryGraph: arena of GraphNodes keyed by id plus an edge list. Nodes never
    reference each other directly; every lookup goes through the id map.
  - GraphNode: tagged union over NodeType. Exactly one payload pointer matching
    the type is set.
  - GraphEdge: directed connection from a node output slot to another node.
  - VariableStore: the mutable name to value state of one reading session.
  - Story: the ordered units of a work and its ending mode.
  - Progress: the persisted reading pointer of a session.
*/
package domain
