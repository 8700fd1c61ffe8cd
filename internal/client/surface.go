package client

import (
	"github.com/clutterstack/flymap/pkg/core"
)

// Surface is the rendering target a reconciler drives. Implementations
// wrap whatever actually draws (a canvas bridge, a DOM patcher, a test
// recorder). Calls arrive one at a time from the reconciler goroutine;
// a Surface never needs its own locking.
type Surface interface {
	// RenderFull redraws everything from a fresh mirror.
	RenderFull(state core.SceneState)
	// RenderGroup redraws one group after a bulk marker replace.
	RenderGroup(group core.MarkerGroup)
	// RenderMarkerAdd draws one new or moved marker.
	RenderMarkerAdd(groupID string, marker core.Node)
	// RenderMarkerRemove erases one marker.
	RenderMarkerRemove(groupID, markerID string)
	// RenderTheme restyles the surface after a theme merge.
	RenderTheme(theme core.Theme)
	// RenderVisibility hides or re-shows a group without erasing its
	// marker data.
	RenderVisibility(groupID string, visible bool)
	// Clear discards every client-rendered element.
	Clear()
	// MarkStatic flags the surface as server-rendered-only, the visible
	// "not live" indicator of fallback mode.
	MarkStatic()
}

// Support is the pre-flight check result: the pieces the client runtime
// must have before a connect attempt is worth making.
type Support struct {
	// Transport reports whether the runtime has a usable socket
	// transport.
	Transport bool
	// Surface reports whether the rendering surface element exists.
	Surface bool
	// Runtime reports whether the hosting page's client runtime loaded.
	Runtime bool
}

func (s Support) OK() bool {
	return s.Transport && s.Surface && s.Runtime
}

// FullSupport is the common case of an environment with everything
// present.
func FullSupport() Support {
	return Support{Transport: true, Surface: true, Runtime: true}
}
