package domain

// EndingMode selects how the units of a story relate to endings.
type EndingMode string

const (
	// EndingModeSingle chains units into one continuous work with a single ending.
	EndingModeSingle EndingMode = "single"
	// EndingModeMultiple surfaces each unit's endings to the reader.
	EndingModeMultiple EndingMode = "multiple"
)

// UnitRef names one loadable unit (episode) of a story.
type UnitRef struct {
	ID    string `json:"id" yaml:"id" mapstructure:"id"`
	Title string `json:"title" yaml:"title" mapstructure:"title"`
}

// Story is the catalog entry of a work. Units are in reading order.
type Story struct {
	ID         string     `json:"id" yaml:"id" mapstructure:"id"`
	Title      string     `json:"title" yaml:"title" mapstructure:"title"`
	EndingMode EndingMode `json:"endingMode" yaml:"endingMode" mapstructure:"endingMode"`
	Units      []UnitRef  `json:"units" yaml:"units" mapstructure:"units"`
}

// SingleEnding reports whether units chain through episode boundaries.
func (s *Story) SingleEnding() bool {
	return s.EndingMode == EndingModeSingle
}

// UnitIndex returns the position of unitID, or -1.
func (s *Story) UnitIndex(unitID string) int {
	for i, u := range s.Units {
		if u.ID == unitID {
			return i
		}
	}
	return -1
}

// NextUnit returns the unit following unitID.
func (s *Story) NextUnit(unitID string) (UnitRef, bool) {
	i := s.UnitIndex(unitID)
	if i < 0 || i+1 >= len(s.Units) {
		return UnitRef{}, false
	}
	return s.Units[i+1], true
}

// IsFinalUnit reports whether unitID is the last unit of the story.
func (s *Story) IsFinalUnit(unitID string) bool {
	return len(s.Units) > 0 && s.Units[len(s.Units)-1].ID == unitID
}

// FirstUnit returns the opening unit.
func (s *Story) FirstUnit() (UnitRef, bool) {
	if len(s.Units) == 0 {
		return UnitRef{}, false
	}
	return s.Units[0], true
}
