package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/authoring"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/dsl"
)

func newTestServer(t *testing.T) (*Server, *arbor.Engine) {
	t.Helper()
	b := dsl.New("ep1")
	b.Add("start").Start().Go("hall")
	b.Add("hall").Scene("hall").
		Say("guard", "Halt!").
		Choice("What now?").
		Option("Fight", "win").
		Option("Flee", "lose")
	b.Add("win").Ending(domain.EndingGood, "Hero")
	b.Add("lose").Ending(domain.EndingBad, "Run away")
	repo, err := dsl.BuildRepository(b)
	require.NoError(t, err)

	eng, err := arbor.New("", arbor.WithRepository(repo))
	require.NoError(t, err)
	s := NewServer(eng, nil)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, eng
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return tc.Text
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	var v T
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &v))
	return v
}

func TestGetGraph(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleGetGraph(ctx, call(map[string]any{"unit_id": "ep1"}))
	require.NoError(t, err)
	g := decodeResult[domain.StoryGraph](t, res)
	assert.Equal(t, "start", g.StartNodeID)
	assert.Len(t, g.Nodes, 4)

	res, err = s.handleGetGraph(ctx, call(map[string]any{"unit_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAuthoringTools(t *testing.T) {
	s, eng := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleCreateNode(ctx, call(map[string]any{"unit_id": "ep2", "type": "start", "x": 10, "y": 20}))
	require.NoError(t, err)
	startID := decodeResult[map[string]string](t, res)["id"]
	require.NotEmpty(t, startID)

	res, err = s.handlePlacement(ctx, call(map[string]any{"unit_id": "ep2", "source_id": startID, "type": "ending", "preview": true}))
	require.NoError(t, err)
	proposal := decodeResult[authoring.Proposal](t, res)
	assert.Equal(t, domain.NodeTypeEnding, proposal.NodeType)

	res, err = s.handlePlacement(ctx, call(map[string]any{"unit_id": "ep2", "source_id": startID, "type": "ending"}))
	require.NoError(t, err)
	placed := decodeResult[authoring.PlacementResult](t, res)
	assert.NotEmpty(t, placed.EdgeID)

	// Mutating tools persist immediately.
	g, err := eng.Inspect(ctx, "ep2")
	require.NoError(t, err)
	assert.Equal(t, startID, g.StartNodeID)
	n, ok := g.Node(startID)
	require.True(t, ok)
	assert.Equal(t, domain.Position{X: 10, Y: 20}, n.Position)
	_, ok = g.Node(placed.NodeID)
	assert.True(t, ok)

	res, err = s.handleValidate(ctx, call(map[string]any{"unit_id": "ep2"}))
	require.NoError(t, err)
	report := decodeResult[arbor.Report](t, res)
	assert.True(t, report.Valid(), report.Issues)

	res, err = s.handleConnect(ctx, call(map[string]any{"unit_id": "ep2", "source_id": startID, "target_id": placed.NodeID}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "the default slot is already wired")

	res, err = s.handleRemoveNode(ctx, call(map[string]any{"unit_id": "ep2", "node_id": startID}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), domain.ErrStartRemoval.Error())

	res, err = s.handleRemoveNode(ctx, call(map[string]any{"unit_id": "ep2", "node_id": placed.NodeID}))
	require.NoError(t, err)
	assert.False(t, res.IsError, text(t, res))
	g, err = eng.Inspect(ctx, "ep2")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)
}

func TestSimulateTool(t *testing.T) {
	s, eng := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleSimulate(ctx, call(map[string]any{"unit_id": "ep1", "choices": []any{float64(0)}}))
	require.NoError(t, err)
	tr := decodeResult[arbor.Transcript](t, res)
	require.NotNil(t, tr.Progress)
	assert.Equal(t, domain.StatusEnded, tr.Progress.Status)
	assert.Equal(t, "win", tr.Progress.NodeID)

	ids, err := eng.Sessions().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestInvalidArguments(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleGetGraph(context.Background(), call(map[string]any{"unit_id": "ep1", "bogus": 1}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "invalid arguments")
}
