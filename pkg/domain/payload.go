package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodePayload builds the typed payload for a node of type t from loosely
// typed data, as received from editors, HTTP bodies or document metadata.
// The payload matching t is set on node; other payload fields are cleared.
func DecodePayload(node *GraphNode, t NodeType, data map[string]any) error {
	node.Type = t
	node.Scene, node.Choice, node.Branch = nil, nil, nil
	node.Ending, node.Modifier, node.Comment = nil, nil, nil

	var target any
	switch t {
	case NodeTypeStart:
		return nil
	case NodeTypeScene:
		node.Scene = &ScenePayload{}
		target = node.Scene
	case NodeTypeChoice:
		node.Choice = &ChoicePayload{Layout: LayoutVertical}
		target = node.Choice
	case NodeTypeBranch:
		node.Branch = &BranchPayload{}
		target = node.Branch
	case NodeTypeEnding:
		node.Ending = &EndingPayload{EndingType: EndingNormal}
		target = node.Ending
	case NodeTypeVariableModifier:
		node.Modifier = &ModifierPayload{}
		target = node.Modifier
	case NodeTypeComment:
		node.Comment = &CommentPayload{}
		target = node.Comment
	default:
		return fmt.Errorf("%w: unknown node type %q", ErrInvalidNode, t)
	}
	if len(data) == 0 {
		return nil
	}
	if err := decodeInto(data, target); err != nil {
		return fmt.Errorf("%w: decode %s payload: %v", ErrInvalidNode, t, err)
	}
	return nil
}

// DecodeStory decodes a story catalog entry from loosely typed metadata.
func DecodeStory(data map[string]any) (*Story, error) {
	var s Story
	if err := decodeInto(data, &s); err != nil {
		return nil, fmt.Errorf("decode story: %w", err)
	}
	if s.EndingMode == "" {
		s.EndingMode = EndingModeMultiple
	}
	return &s, nil
}

// Decode fills target from loosely typed data (maps, slices and scalars as
// produced by YAML or JSON decoders) using the mapstructure tags.
func Decode(data any, target any) error {
	return decodeInto(data, target)
}

func decodeInto(data any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}
