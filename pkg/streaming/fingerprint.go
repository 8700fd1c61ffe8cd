package streaming

import (
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/clutterstack/flymap/pkg/core"
)

// Fingerprint computes a stable digest of a scene state, used to answer
// sync_requests. Two states with equal canonical JSON always produce the
// same fingerprint; collisions only cost an unnecessary full_state push.
func Fingerprint(s core.SceneState) (string, error) {
	data, err := json.Marshal(FullStatePayload{
		Groups: s.Groups,
		Theme:  s.Theme,
		Config: s.Config,
	})
	if err != nil {
		return "", fmt.Errorf("fingerprint scene: %w", err)
	}
	h := fnv.New64a()
	_, _ = h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
