package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reactmesh/core"
	"github.com/hupe1980/reactmesh/model"
)

func fast(o *Options) {
	o.InitialInterval = time.Millisecond
	o.MaxInterval = 2 * time.Millisecond
}

func TestRetry_RecoversFromRateLimit(t *testing.T) {
	calls := 0
	p := Wrap(model.ProviderFunc(func(ctx context.Context, req model.Request) (*model.Response, error) {
		calls++
		if calls < 3 {
			return nil, model.NewStatusError("test", http.StatusTooManyRequests, errors.New("slow down"))
		}
		return model.TextResponse("ok"), nil
	}), fast)

	resp, err := p.Complete(context.Background(), model.Request{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 3, calls)
}

func TestRetry_GivesUp(t *testing.T) {
	calls := 0
	p := Wrap(model.ProviderFunc(func(ctx context.Context, req model.Request) (*model.Response, error) {
		calls++
		return nil, model.NewStatusError("test", http.StatusServiceUnavailable, errors.New("down"))
	}), fast, func(o *Options) { o.MaxRetries = 2 })

	_, err := p.Complete(context.Background(), model.Request{})
	assert.ErrorIs(t, err, core.ErrProviderUnavailable)
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	p := Wrap(model.ProviderFunc(func(ctx context.Context, req model.Request) (*model.Response, error) {
		calls++
		return nil, model.NewStatusError("test", http.StatusBadRequest, errors.New("bad request"))
	}), fast)

	_, err := p.Complete(context.Background(), model.Request{})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var se *model.StatusError
	assert.True(t, errors.As(err, &se))
}

func TestRetry_ProtocolViolationNotRetried(t *testing.T) {
	calls := 0
	p := Wrap(model.ProviderFunc(func(ctx context.Context, req model.Request) (*model.Response, error) {
		calls++
		return nil, core.ErrProtocolViolation
	}), fast)

	_, err := p.Complete(context.Background(), model.Request{})
	assert.ErrorIs(t, err, core.ErrProtocolViolation)
	assert.Equal(t, 1, calls)
}
