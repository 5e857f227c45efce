package hub

import (
	"fmt"
	"time"
)

// visitKey identifies one (hub, path) pair visited during a single
// top-level resolution. The resolver refuses to retarget into a pair it
// has already visited, which is what bounds retargeting to a finite number
// of steps even under a pathological alias cycle (§4.3 Termination).
type visitKey struct {
	hubID string
	path  string
}

// Handle is the Core API's entry point: resolve req against h, escalating
// to ancestors, retargeting through aliases and approximate matches, and
// falling back to StatusNotFound if nothing claims it.
func (h *Hub) Handle(req Request) Response {
	start := time.Now()
	resp := h.handle(req)
	if h.metrics != nil {
		h.metrics.ResolutionDurationSecs.WithLabelValues(h.scope.String()).Observe(time.Since(start).Seconds())
		h.metrics.ResolutionsTotal.WithLabelValues(h.scope.String(), resp.Status.String()).Inc()
	}
	return resp
}

func (h *Hub) handle(req Request) Response {
	if req.Path == "" {
		return notFoundResponse()
	}
	if req.Metadata == nil {
		req.Metadata = Metadata{}
	}
	visited := make(map[visitKey]bool)
	return h.resolve(req, visited)
}

// resolve runs the state machine of §4.3 for req at hub h. visited is
// shared across the whole top-level call, including escalation into
// ancestors and retargeting within this hub.
func (h *Hub) resolve(req Request, visited map[visitKey]bool) Response {
	visited[visitKey{hubID: h.id, path: req.Path}] = true

	// 1. Intercept.
	if resp, ok := h.interceptors.InterceptRequest(req); ok {
		resp.Metadata = resp.Metadata.Clone()
		if resp.Metadata == nil {
			resp.Metadata = Metadata{}
		}
		resp.Metadata[metaIntercepted] = "true"
		resp.Status = StatusIntercepted
		return resp
	}

	// 2. LocalLookup.
	if entry, ok := h.registry.Lookup(req.Path); ok {
		return entry.Handler(req)
	}

	// 3. Escalate.
	if parent := h.Parent(); parent != nil {
		return parent.resolve(req, visited)
	}

	// 4. AliasFallback.
	if entry, ok := h.registry.LookupAliasOf(req.Path); ok {
		key := visitKey{hubID: h.id, path: entry.Path}
		if !visited[key] {
			retargeted := req.clone()
			retargeted.Path = entry.Path
			retargeted.Metadata[metaOriginalPath] = req.Path
			resp := h.resolve(retargeted, visited)
			resp.Metadata = resp.Metadata.Clone()
			if resp.Metadata == nil {
				resp.Metadata = Metadata{}
			}
			resp.Metadata[metaOriginalPath] = req.Path
			return resp
		}
	}

	// 5. Approximate.
	if entry, _, ok := h.registry.LookupSimilar(req.Path, similarityThreshold); ok {
		key := visitKey{hubID: h.id, path: entry.Path}
		if !visited[key] {
			retargeted := req.clone()
			retargeted.Path = entry.Path
			retargeted.Metadata[metaOriginalPath] = req.Path
			resp := h.resolve(retargeted, visited)
			if resp.Status == StatusNotFound {
				return resp
			}
			resp.Metadata = resp.Metadata.Clone()
			if resp.Metadata == nil {
				resp.Metadata = Metadata{}
			}
			resp.Metadata[metaApproximated] = "true"
			resp.Metadata[metaOriginalPath] = req.Path
			resp.Status = StatusApproximated
			return resp
		}
	}

	// 6. NotFound.
	return notFoundResponse()
}

// String aids debugging: it reports which hub a visitKey belongs to.
func (k visitKey) String() string {
	return fmt.Sprintf("%s:%s", k.hubID, k.path)
}
