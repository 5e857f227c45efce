package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(tag string) Handler {
	return func(req Request) Response {
		return Response{Payload: Payload{TypeTag: tag, Value: req.Path}, Status: StatusSuccess}
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("/users/create", echoHandler("ok"), nil)

	entry, ok := r.Lookup("/users/create")
	require.True(t, ok)
	assert.Equal(t, "/users/create", entry.Path)

	_, ok = r.Lookup("/users/delete")
	assert.False(t, ok)
}

// TestRegistryRegisterIsLastWriterWins verifies a second Register call on the
// same path replaces the first (no error, no merge).
func TestRegistryRegisterIsLastWriterWins(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("/p", echoHandler("first"), nil)
	r.Register("/p", echoHandler("second"), nil)

	entry, ok := r.Lookup("/p")
	require.True(t, ok)
	resp := entry.Handler(Request{Path: "/p"})
	assert.Equal(t, "second", resp.Payload.TypeTag)
}

func TestRegistryLookupAliasOf(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("/v2/res", echoHandler("v2"), Metadata{"fallback": "/v1/res"})

	entry, ok := r.LookupAliasOf("/v1/res")
	require.True(t, ok)
	assert.Equal(t, "/v2/res", entry.Path)

	_, ok = r.LookupAliasOf("/v1/other")
	assert.False(t, ok)
}

func TestRegistryLookupSimilar(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("/api/v1/users/list", echoHandler("list"), nil)

	entry, score, ok := r.LookupSimilar("/api/v1/users/listing", similarityThreshold)
	require.True(t, ok)
	assert.Equal(t, "/api/v1/users/list", entry.Path)
	assert.GreaterOrEqual(t, score, similarityThreshold)

	_, _, ok = r.LookupSimilar("/completely/unrelated/thing", similarityThreshold)
	assert.False(t, ok)
}

// TestRegistryLookupSimilarUsesCacheAcrossGenerations checks that a later
// Register invalidates a previously memoized miss for the same query.
func TestRegistryLookupSimilarUsesCacheAcrossGenerations(t *testing.T) {
	r := NewRegistry(nil)

	_, _, ok := r.LookupSimilar("/api/v1/orders/list", similarityThreshold)
	assert.False(t, ok)

	r.Register("/api/v1/orders/list", echoHandler("orders"), nil)

	entry, _, ok := r.LookupSimilar("/api/v1/orders/list", similarityThreshold)
	require.True(t, ok)
	assert.Equal(t, "/api/v1/orders/list", entry.Path)
}

func TestSegmentSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "/a/b", b: "/a/b", want: 1.0},
		{name: "empty either side", a: "", b: "/a", want: 0},
		{name: "substring containment", a: "/api/v1/users", b: "/api/v1/users/list", want: exactContainmentScore},
		{name: "no overlap", a: "/a/b", b: "/c/d", want: 0},
		{name: "partial overlap", a: "/a/b/c", b: "/a/b/d", want: float64(2) / float64(3)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, segmentSimilarity(tt.a, tt.b), 0.0001)
		})
	}
}
