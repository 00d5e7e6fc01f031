package domain

// TextType classifies a unit of scene text.
type TextType string

const (
	TextNarration     TextType = "narration"
	TextDialogue      TextType = "dialogue"
	TextSystemMessage TextType = "system_message"
)

// TextContent is one unit of scene text revealed to the reader.
type TextContent struct {
	Type       TextType `json:"type" yaml:"type"`
	SpeakerRef string   `json:"speakerRef,omitempty" yaml:"speakerRef,omitempty"`
	Content    string   `json:"content" yaml:"content"`
}

// Recorded reports whether the unit is kept in the reading history.
func (t TextContent) Recorded() bool {
	return t.Type == TextDialogue || t.Type == TextNarration
}

// Background describes the scene backdrop. Opaque to the runtime.
type Background struct {
	AssetRef string         `json:"assetRef,omitempty" yaml:"assetRef,omitempty"`
	Props    map[string]any `json:"props,omitempty" yaml:"props,omitempty"`
}

// CharacterPlacement puts a character instance on stage.
// The runtime only looks at Visible.
type CharacterPlacement struct {
	InstanceID    string         `json:"instanceId" yaml:"instanceId"`
	CharacterRef  string         `json:"characterRef,omitempty" yaml:"characterRef,omitempty"`
	Transform     map[string]any `json:"transform,omitempty" yaml:"transform,omitempty"`
	Visible       bool           `json:"visible" yaml:"visible"`
	StatusEffects []string       `json:"statusEffects,omitempty" yaml:"statusEffects,omitempty"`
}

// AudioCue is a sound or music trigger attached to a scene.
type AudioCue struct {
	AssetRef string  `json:"assetRef" yaml:"assetRef"`
	Channel  string  `json:"channel,omitempty" yaml:"channel,omitempty"`
	Loop     bool    `json:"loop,omitempty" yaml:"loop,omitempty"`
	Volume   float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
}

// Scene is an external content unit referenced by scene nodes.
type Scene struct {
	ID         string               `json:"id" yaml:"id"`
	Texts      []TextContent        `json:"texts" yaml:"texts"`
	Background Background           `json:"background" yaml:"background"`
	Characters []CharacterPlacement `json:"characters,omitempty" yaml:"characters,omitempty"`
	Audio      []AudioCue           `json:"audio,omitempty" yaml:"audio,omitempty"`
}

// Stage is the part of a scene a presentation layer may show on entry.
// Texts are excluded; lines surface one at a time as they are revealed.
type Stage struct {
	ID         string               `json:"id"`
	TextCount  int                  `json:"textCount"`
	Background Background           `json:"background"`
	Characters []CharacterPlacement `json:"characters,omitempty"`
	Audio      []AudioCue           `json:"audio,omitempty"`
}

// Stage projects the scene without its script.
func (s *Scene) Stage() *Stage {
	if s == nil {
		return nil
	}
	return &Stage{
		ID:         s.ID,
		TextCount:  len(s.Texts),
		Background: s.Background,
		Characters: append([]CharacterPlacement(nil), s.Characters...),
		Audio:      append([]AudioCue(nil), s.Audio...),
	}
}

// VisibleCharacters returns the placements currently on stage.
func (s *Scene) VisibleCharacters() []CharacterPlacement {
	var out []CharacterPlacement
	for _, c := range s.Characters {
		if c.Visible {
			out = append(out, c)
		}
	}
	return out
}

// Bundle is a loadable unit: its graph plus every scene its nodes reference.
type Bundle struct {
	Graph  *StoryGraph       `json:"graph"`
	Scenes map[string]*Scene `json:"scenes"`
}
