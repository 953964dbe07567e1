package graph

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

const (
	headsPrefix   = "refs/heads/"
	remotesPrefix = "refs/remotes/"
	tagsPrefix    = "refs/tags/"
)

func isRemoteRef(name string) bool {
	return strings.HasPrefix(name, remotesPrefix)
}

func isLocalBranchRef(name string) bool {
	return strings.HasPrefix(name, headsPrefix)
}

// configuredRemoteTrackingBranches maps each configured local branch ref to
// its remote-tracking counterpart (refs/heads/foo → refs/remotes/origin/foo).
func configuredRemoteTrackingBranches(view *repoView) (map[string]string, error) {
	cfg, err := view.config()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(cfg.Branches))
	for name, branch := range cfg.Branches {
		if branch.Remote == "" {
			continue
		}
		mergeRef := branch.Merge.String()
		if mergeRef == "" {
			mergeRef = headsPrefix + name
		}
		short := strings.TrimPrefix(mergeRef, headsPrefix)
		out[headsPrefix+name] = remotesPrefix + branch.Remote + "/" + short
	}
	return out, nil
}

// remoteNames returns the configured remote names.
func remoteNames(view *repoView) ([]string, error) {
	cfg, err := view.config()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cfg.Remotes))
	for name := range cfg.Remotes {
		names = append(names, name)
	}
	return names, nil
}

// extractRemoteName picks the remote a tracking ref belongs to. Remote names
// may contain slashes, so the longest configured name wins.
func extractRemoteName(refName string, remotes []string) string {
	rest, ok := strings.CutPrefix(refName, remotesPrefix)
	if !ok {
		return ""
	}
	best := ""
	for _, remote := range remotes {
		if strings.HasPrefix(rest, remote+"/") && len(remote) > len(best) {
			best = remote
		}
	}
	return best
}

// upstreamLocalForTrackingBranch derives the local branch a remote-tracking
// ref corresponds to, preferring the branch configuration over the naming
// convention.
func upstreamLocalForTrackingBranch(view *repoView, trackingRef string, tracked map[string]string) (string, bool) {
	for local, remote := range tracked {
		if remote == trackingRef {
			return local, true
		}
	}
	remotes, err := remoteNames(view)
	if err != nil {
		return "", false
	}
	remote := extractRemoteName(trackingRef, remotes)
	if remote == "" {
		return "", false
	}
	short := strings.TrimPrefix(trackingRef, remotesPrefix+remote+"/")
	local := headsPrefix + short
	if _, ok := view.resolveRef(plumbing.ReferenceName(local)); !ok {
		return "", false
	}
	return local, true
}

// symbolicRemotesOf collects the remote names implied by the workspaces'
// targets and push remotes, deduped, push-remote first.
func symbolicRemotesOf(view *repoView, workspaces []workspaceInfo) []string {
	remotes, err := remoteNames(view)
	if err != nil {
		return nil
	}
	type ordered struct {
		order int
		name  string
	}
	var v []ordered
	for _, ws := range workspaces {
		if ws.meta == nil {
			continue
		}
		if ws.meta.PushRemote != nil {
			v = append(v, ordered{0, *ws.meta.PushRemote})
		}
		if ws.meta.TargetRef != nil {
			if remote := extractRemoteName(*ws.meta.TargetRef, remotes); remote != "" {
				v = append(v, ordered{1, remote})
			}
		}
	}
	seen := make(map[string]struct{})
	var out []string
	for pass := 0; pass <= 1; pass++ {
		for _, entry := range v {
			if entry.order != pass {
				continue
			}
			if _, dup := seen[entry.name]; dup {
				continue
			}
			seen[entry.name] = struct{}{}
			out = append(out, entry.name)
		}
	}
	return out
}
