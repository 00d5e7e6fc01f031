package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/authoring"
	"github.com/aretw0/arbor/pkg/domain"
)

type unitArgs struct {
	UnitID string `mapstructure:"unit_id"`
}

type nodeArgs struct {
	UnitID string          `mapstructure:"unit_id"`
	Type   domain.NodeType `mapstructure:"type"`
	X      float64         `mapstructure:"x"`
	Y      float64         `mapstructure:"y"`
	Data   map[string]any  `mapstructure:"data"`
}

type connectArgs struct {
	UnitID   string `mapstructure:"unit_id"`
	SourceID string `mapstructure:"source_id"`
	Slot     string `mapstructure:"slot"`
	TargetID string `mapstructure:"target_id"`
}

type placementArgs struct {
	UnitID   string          `mapstructure:"unit_id"`
	SourceID string          `mapstructure:"source_id"`
	Type     domain.NodeType `mapstructure:"type"`
	Data     map[string]any  `mapstructure:"data"`
	Preview  bool            `mapstructure:"preview"`
}

type removeArgs struct {
	UnitID string `mapstructure:"unit_id"`
	NodeID string `mapstructure:"node_id"`
}

type simulateArgs struct {
	StoryID   string         `mapstructure:"story_id"`
	UnitID    string         `mapstructure:"unit_id"`
	Choices   []int          `mapstructure:"choices"`
	Variables map[string]any `mapstructure:"variables"`
}

// bind decodes the loosely typed tool arguments into target.
func bind(request mcp.CallToolRequest, target any) error {
	args := request.GetArguments()
	if args == nil {
		args = map[string]any{}
	}
	if err := domain.Decode(args, target); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func errorResult(action string, err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", action, err)), nil
}

// editor returns the open editor of a unit, opening it on first use.
func (s *Server) editor(ctx context.Context, unitID string) (*authoring.Editor, error) {
	if unitID == "" {
		return nil, fmt.Errorf("%w: unit_id is required", domain.ErrUnitNotFound)
	}
	s.editorMu.Lock()
	defer s.editorMu.Unlock()
	if ed, err := s.editors.Get(unitID); err == nil {
		return ed, nil
	}
	ed, err := s.engine.Edit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	s.editors.Register(unitID, ed)
	return ed, nil
}

// edit applies fn to the unit's editor and flushes it.
func (s *Server) edit(ctx context.Context, unitID string, fn func(ed *authoring.Editor) (any, error)) (*mcp.CallToolResult, error) {
	ed, err := s.editor(ctx, unitID)
	if err != nil {
		return errorResult("failed to open unit", err)
	}
	out, err := fn(ed)
	if err != nil {
		return errorResult("edit rejected", err)
	}
	if err := ed.Flush(ctx); err != nil {
		return errorResult("failed to save unit", err)
	}
	s.logger.Debug("Unit edited via MCP", "unit_id", unitID)
	return jsonResult(out)
}

func (s *Server) currentGraph(ctx context.Context, unitID string) (*domain.StoryGraph, error) {
	if ed, err := s.editors.Get(unitID); err == nil {
		return ed.Graph(), nil
	}
	return s.engine.Inspect(ctx, unitID)
}

func (s *Server) handleGetGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args unitArgs
	if err := bind(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.currentGraph(ctx, args.UnitID)
	if err != nil {
		return errorResult("failed to load graph", err)
	}
	return jsonResult(g)
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args unitArgs
	if err := bind(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var report arbor.Report
	if ed, err := s.editors.Get(args.UnitID); err == nil {
		report = ed.Validate()
	} else {
		report, err = s.engine.Validate(ctx, args.UnitID)
		if err != nil {
			return errorResult("failed to validate", err)
		}
	}
	return jsonResult(report)
}

func (s *Server) handleCreateNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args nodeArgs
	if err := bind(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.edit(ctx, args.UnitID, func(ed *authoring.Editor) (any, error) {
		id, err := ed.CreateNode(args.Type, domain.Position{X: args.X, Y: args.Y}, args.Data)
		return map[string]string{"id": id}, err
	})
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args connectArgs
	if err := bind(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.edit(ctx, args.UnitID, func(ed *authoring.Editor) (any, error) {
		id, err := ed.Connect(args.SourceID, args.Slot, args.TargetID)
		return map[string]string{"id": id}, err
	})
}

func (s *Server) handlePlacement(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args placementArgs
	if err := bind(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if args.Preview {
		ed, err := s.editor(ctx, args.UnitID)
		if err != nil {
			return errorResult("failed to open unit", err)
		}
		p, err := ed.GuidedPlacement(args.SourceID, args.Type)
		if err != nil {
			return errorResult("no placement", err)
		}
		return jsonResult(p)
	}
	return s.edit(ctx, args.UnitID, func(ed *authoring.Editor) (any, error) {
		return ed.Place(args.SourceID, args.Type, args.Data)
	})
}

func (s *Server) handleRemoveNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args removeArgs
	if err := bind(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return s.edit(ctx, args.UnitID, func(ed *authoring.Editor) (any, error) {
		return map[string]string{"removed": args.NodeID}, ed.RemoveNode(args.NodeID)
	})
}

func (s *Server) handleSimulate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args simulateArgs
	if err := bind(request, &args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var opts []arbor.ReadOption
	if len(args.Variables) > 0 {
		opts = append(opts, arbor.WithVariables(domain.VariableStore(args.Variables)))
	}
	tr, err := s.engine.Simulate(ctx, args.StoryID, args.UnitID, args.Choices, opts...)
	if err != nil {
		return errorResult("simulation failed", err)
	}
	return jsonResult(tr)
}
