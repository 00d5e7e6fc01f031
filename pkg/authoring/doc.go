/*
Package authoring implements the operations an editor performs on a story graph.

An Editor owns one in-memory StoryGraph. Every operation is synchronous,
validated before mutation and atomic: it either succeeds completely or
returns a typed error (see the sentinels in pkg/domain) and leaves the graph
untouched. Successful mutations schedule a debounced write through the
configured ports.GraphPersister; Flush forces the write and waits for it.

# Usage

	ed, err := authoring.Open(ctx, "ep1", repo, authoring.WithQuietPeriod(2*time.Second))
	id, err := ed.CreateNode(domain.NodeTypeScene, domain.Position{X: 0, Y: 200}, map[string]any{"sceneRef": "sc-1"})
	_, err = ed.Connect(ed.Graph().StartNodeID, "", id)
	res, err := ed.Place(id, domain.NodeTypeChoice, nil) // guided placement + connect
	err = ed.Close(ctx)                                  // flushes pending edits
*/
package authoring
