package requestid

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_Propagates(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", FromContext(ctx))
}

func TestFromContext_GeneratesWhenMissing(t *testing.T) {
	a := FromContext(context.Background())
	b := FromContext(context.Background())
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestApply(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-2")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://x/", nil)
	require.NoError(t, err)
	assert.Equal(t, "req-2", Apply(req))
	assert.Equal(t, "req-2", req.Header.Get(Header))

	req.Header.Set(Header, "caller")
	assert.Equal(t, "caller", Apply(req))
}
