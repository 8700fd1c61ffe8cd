package scene

import (
	"reflect"

	"github.com/clutterstack/flymap/pkg/core"
	"github.com/clutterstack/flymap/pkg/streaming"
)

// Diff computes a vocabulary-conformant event sequence transforming old
// into new. Granularity is an optimization, not a contract: whenever a
// change cannot be expressed incrementally (a removed group, a removed
// theme key, a config change) it falls back to one full_state replace.
func Diff(old, new core.SceneState) []streaming.Event {
	if needsFullReplace(old, new) {
		return []streaming.Event{FullStateEvent(new)}
	}

	var events []streaming.Event
	for _, ng := range new.Groups {
		og, existed := old.Group(ng.ID)
		if !existed {
			events = append(events, groupUpdateEvent(ng))
			continue
		}
		events = append(events, diffGroup(og, ng)...)
	}

	if themeChanged(old.Theme, new.Theme) {
		events = append(events, streaming.Event{
			Type:    streaming.TypeThemeChange,
			Payload: streaming.ThemeChangePayload{Theme: changedThemeKeys(old.Theme, new.Theme)},
		})
	}
	return events
}

// FullStateEvent wraps a scene snapshot as a full_state event.
func FullStateEvent(s core.SceneState) streaming.Event {
	return streaming.Event{
		Type: streaming.TypeFullState,
		Payload: streaming.FullStatePayload{
			Groups: s.Groups,
			Theme:  s.Theme,
			Config: s.Config,
		},
	}
}

func groupUpdateEvent(g core.MarkerGroup) streaming.Event {
	st := g.Style
	return streaming.Event{
		Type: streaming.TypeGroupUpdate,
		Payload: streaming.GroupUpdatePayload{
			GroupID: g.ID,
			Markers: g.Nodes,
			Label:   g.Label,
			Style:   &st,
		},
	}
}

// needsFullReplace detects changes the incremental vocabulary cannot
// express.
func needsFullReplace(old, new core.SceneState) bool {
	if old.Config != new.Config {
		return true
	}
	for _, og := range old.Groups {
		if new.GroupIndex(og.ID) < 0 {
			return true // group removal has no incremental message
		}
	}
	for k := range old.Theme {
		if _, ok := new.Theme[k]; !ok {
			return true // theme_change merges, it cannot delete keys
		}
	}
	return false
}

// diffGroup emits the smallest events for one surviving group.
func diffGroup(og, ng core.MarkerGroup) []streaming.Event {
	var events []streaming.Event

	if og.Label != ng.Label || og.Style != ng.Style {
		return []streaming.Event{groupUpdateEvent(ng)}
	}

	if !nodesEqual(og.Nodes, ng.Nodes) {
		if added, ok := singleNodeAdded(og.Nodes, ng.Nodes); ok {
			events = append(events, streaming.Event{
				Type:    streaming.TypeMarkerAdd,
				Payload: streaming.MarkerAddPayload{GroupID: ng.ID, Marker: added},
			})
		} else if removed, ok := singleNodeRemoved(og.Nodes, ng.Nodes); ok {
			events = append(events, streaming.Event{
				Type:    streaming.TypeMarkerRemove,
				Payload: streaming.MarkerRemovePayload{GroupID: ng.ID, MarkerID: removed.ID},
			})
		} else {
			events = append(events, groupUpdateEvent(ng))
		}
	}

	if og.Visible != ng.Visible {
		events = append(events, streaming.Event{
			Type:    streaming.TypeVisibilityToggle,
			Payload: streaming.VisibilityTogglePayload{GroupID: ng.ID, Visible: ng.Visible},
		})
	}
	return events
}

func nodesEqual(a, b []core.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !reflect.DeepEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// singleNodeAdded reports whether b is exactly a plus one appended node.
func singleNodeAdded(a, b []core.Node) (core.Node, bool) {
	if len(b) != len(a)+1 || !nodesEqual(a, b[:len(a)]) {
		return core.Node{}, false
	}
	return b[len(b)-1], true
}

// singleNodeRemoved reports whether b is exactly a minus one node.
func singleNodeRemoved(a, b []core.Node) (core.Node, bool) {
	if len(b) != len(a)-1 {
		return core.Node{}, false
	}
	skipped := -1
	j := 0
	for i := range a {
		if j < len(b) && reflect.DeepEqual(a[i], b[j]) {
			j++
			continue
		}
		if skipped >= 0 {
			return core.Node{}, false
		}
		skipped = i
	}
	if skipped < 0 {
		return core.Node{}, false
	}
	return a[skipped], true
}

func themeChanged(old, new core.Theme) bool {
	return len(changedThemeKeys(old, new)) > 0
}

// changedThemeKeys returns only the keys whose values changed, matching
// theme_change's merge semantics.
func changedThemeKeys(old, new core.Theme) core.Theme {
	out := core.Theme{}
	for k, v := range new {
		if old[k] != v {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
