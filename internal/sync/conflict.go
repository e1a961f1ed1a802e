package sync

import (
	"fmt"
	"time"

	"github.com/atlasops/plansync/internal/core/config"
	"github.com/atlasops/plansync/internal/core/plan"
)

// Strategy is the conflict-resolution policy for one sync run. It
// applies uniformly to every item in the run.
type Strategy string

const (
	// StrategyLocalWins pushes local status over remote unconditionally.
	StrategyLocalWins Strategy = config.StrategyLocalWins
	// StrategyRemoteWins pulls remote status over local unconditionally.
	StrategyRemoteWins Strategy = config.StrategyRemoteWins
	// StrategyNewerWins lets whichever side changed after the last sync
	// win, judged by the issue's updatedAt against the mapping's
	// syncedAt. The default.
	StrategyNewerWins Strategy = config.StrategyNewerWins
	// StrategyPrompt defers every disagreement to the caller.
	StrategyPrompt Strategy = config.StrategyPrompt
)

// ParseStrategy validates a strategy name from configuration or flags.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLocalWins, StrategyRemoteWins, StrategyNewerWins, StrategyPrompt:
		return Strategy(s), nil
	case "":
		return StrategyNewerWins, nil
	}
	return "", fmt.Errorf("unknown conflict strategy %q", s)
}

// Resolution is the outcome of resolving one status disagreement.
type Resolution int

const (
	// ResolutionLocal means the local status stands and may be pushed.
	ResolutionLocal Resolution = iota
	// ResolutionRemote means the remote status stands and may be pulled.
	ResolutionRemote
	// ResolutionDeferred means neither side acts until a human decides.
	ResolutionDeferred
)

func (r Resolution) String() string {
	switch r {
	case ResolutionLocal:
		return "local"
	case ResolutionRemote:
		return "remote"
	default:
		return "deferred"
	}
}

// Resolve applies the strategy to one disagreement. For newer_wins the
// remote side wins only when the issue changed strictly after the
// mapping's last successful sync.
func Resolve(strategy Strategy, mapping plan.IssueMapping, remoteUpdatedAt time.Time) Resolution {
	switch strategy {
	case StrategyLocalWins:
		return ResolutionLocal
	case StrategyRemoteWins:
		return ResolutionRemote
	case StrategyPrompt:
		return ResolutionDeferred
	default:
		if remoteUpdatedAt.After(mapping.SyncedAt) {
			return ResolutionRemote
		}
		return ResolutionLocal
	}
}
