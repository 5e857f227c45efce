package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleEmptyPathIsNotFound(t *testing.T) {
	h := New(ScopeThread)
	resp := h.Handle(Request{Path: ""})
	assert.Equal(t, StatusNotFound, resp.Status)
}

func TestHandleLocalLookupSucceeds(t *testing.T) {
	h := New(ScopeThread)
	require.NoError(t, h.Register("/ping", echoHandler("pong"), nil))

	resp := h.Handle(Request{Path: "/ping"})
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "pong", resp.Payload.TypeTag)
}

func TestHandleInterceptShortCircuitsLocalLookup(t *testing.T) {
	h := New(ScopeThread)
	require.NoError(t, h.Register("/ping", echoHandler("pong"), nil))
	h.RegisterInterceptor("/ping", 1, func(req Request) InterceptResult {
		return InterceptResult{Matched: true, Response: Response{Payload: Payload{Value: "intercepted-value"}}}
	})

	resp := h.Handle(Request{Path: "/ping"})
	assert.Equal(t, StatusIntercepted, resp.Status)
	assert.Equal(t, "intercepted-value", resp.Payload.Value)
	assert.Equal(t, "true", resp.Metadata[metaIntercepted])
}

// TestHandleEscalatesToParent covers the case where a child hub has no
// matching local entry but a registered ancestor does.
func TestHandleEscalatesToParent(t *testing.T) {
	parent := New(ScopeProcess, WithID("parent"))
	child := New(ScopeThread, WithID("child"))
	require.NoError(t, child.AttachParent(parent))

	require.NoError(t, parent.Register("/shared", echoHandler("from-parent"), nil))

	resp := child.Handle(Request{Path: "/shared"})
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "from-parent", resp.Payload.TypeTag)
}

// TestHandleAliasFallbackRetargets is Concrete Scenario 3: a registered
// handler declares a fallback target; requesting the (unregistered) fallback
// path retargets to the handler and stamps original_path.
func TestHandleAliasFallbackRetargets(t *testing.T) {
	h := New(ScopeThread)
	require.NoError(t, h.Register("/v2/res", echoHandler("v2"), Metadata{"fallback": "/v1/res"}))

	resp := h.Handle(Request{Path: "/v1/res"})
	require.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "v2", resp.Payload.TypeTag)
	assert.Equal(t, "/v1/res", resp.Metadata[metaOriginalPath])
}

func TestHandleApproximateMatchesSimilarPath(t *testing.T) {
	h := New(ScopeThread)
	require.NoError(t, h.Register("/api/v1/users/list", echoHandler("list"), nil))

	resp := h.Handle(Request{Path: "/api/v1/users/listing"})
	require.Equal(t, StatusApproximated, resp.Status)
	assert.Equal(t, "true", resp.Metadata[metaApproximated])
	assert.Equal(t, "/api/v1/users/listing", resp.Metadata[metaOriginalPath])
}

func TestHandleNotFoundWhenNothingMatches(t *testing.T) {
	h := New(ScopeThread)
	resp := h.Handle(Request{Path: "/nowhere"})
	assert.Equal(t, StatusNotFound, resp.Status)
}

// TestHandleReciprocalAliasStillInvokesLocalHandlers documents that when
// both sides of a "mutual alias" are themselves directly registered, each
// resolves via its own handler (LocalLookup always takes precedence over
// AliasFallback) — the retargeting machinery is never reached for either
// path. A registered entry's own handler return value is final.
func TestHandleReciprocalAliasStillInvokesLocalHandlers(t *testing.T) {
	h := New(ScopeThread)
	require.NoError(t, h.Register("/a", echoHandler("a"), Metadata{"fallback": "/b"}))
	require.NoError(t, h.Register("/b", echoHandler("b"), Metadata{"fallback": "/a"}))

	respA := h.Handle(Request{Path: "/a"})
	assert.Equal(t, StatusSuccess, respA.Status)
	assert.Equal(t, "a", respA.Payload.TypeTag)

	respB := h.Handle(Request{Path: "/b"})
	assert.Equal(t, StatusSuccess, respB.Status)
	assert.Equal(t, "b", respB.Payload.TypeTag)
}

// TestHandleAliasCycleYieldsNotFound is Concrete Scenario 6: a reciprocal
// alias pair where neither path is itself directly resolvable (both "stub"
// handlers explicitly report NotFound, modeling endpoints that exist only
// to redirect elsewhere). The observable outcome is NotFound.
func TestHandleAliasCycleYieldsNotFound(t *testing.T) {
	h := New(ScopeThread)
	stub := func(Request) Response { return Response{Status: StatusNotFound} }
	require.NoError(t, h.Register("/a", stub, Metadata{"fallback": "/b"}))
	require.NoError(t, h.Register("/b", stub, Metadata{"fallback": "/a"}))

	resp := h.Handle(Request{Path: "/a"})
	assert.Equal(t, StatusNotFound, resp.Status)
}

// TestResolveGuardsAgainstRevisitingAliasTarget is a white-box test of the
// retarget guard itself: it pre-seeds the visited set as though the alias
// target had already been entered once in this resolution, and confirms
// resolve degrades straight to NotFound instead of recursing into it again.
// This is what bounds retargeting to a finite number of steps under §4.3's
// Termination guarantee, independent of how a black-box caller might
// construct a cyclic configuration.
func TestResolveGuardsAgainstRevisitingAliasTarget(t *testing.T) {
	h := New(ScopeThread, WithID("h"))
	require.NoError(t, h.Register("/y", echoHandler("y"), Metadata{"fallback": "/x"}))

	visited := map[visitKey]bool{
		{hubID: "h", path: "/y"}: true,
	}

	resp := h.resolve(Request{Path: "/x", Metadata: Metadata{}}, visited)
	assert.Equal(t, StatusNotFound, resp.Status)
}

func TestHandleHandlerErrorPassesThroughUnchanged(t *testing.T) {
	h := New(ScopeThread)
	require.NoError(t, h.Register("/broken", func(Request) Response {
		return Response{Status: StatusError}
	}, nil))

	resp := h.Handle(Request{Path: "/broken"})
	assert.Equal(t, StatusError, resp.Status)
}
