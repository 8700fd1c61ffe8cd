package core

// BBox is the pixel extent of the drawing surface.
type BBox struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MapConfig is the small per-room config block carried in full syncs.
type MapConfig struct {
	BBox           BBox `json:"bbox"`
	ThrottleMillis int  `json:"throttleMillis"`
}

// SceneState is the authoritative snapshot of one room: the ordered group
// list, the theme, and the map config. It is the unit of full sync and
// must be fully reconstructable by a cold subscriber.
type SceneState struct {
	Groups []MarkerGroup `json:"markerGroups"`
	Theme  Theme         `json:"theme,omitempty"`
	Config MapConfig     `json:"config"`
}

// Clone returns a deep copy so callers can hand out snapshots without
// sharing mutable state.
func (s SceneState) Clone() SceneState {
	out := s
	out.Groups = make([]MarkerGroup, len(s.Groups))
	for i, g := range s.Groups {
		out.Groups[i] = g.Clone()
	}
	out.Theme = s.Theme.Clone()
	return out
}

// GroupIndex returns the position of the group with the given ID, or -1.
func (s SceneState) GroupIndex(id string) int {
	for i, g := range s.Groups {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// Group returns the group with the given ID.
func (s SceneState) Group(id string) (MarkerGroup, bool) {
	if i := s.GroupIndex(id); i >= 0 {
		return s.Groups[i], true
	}
	return MarkerGroup{}, false
}
