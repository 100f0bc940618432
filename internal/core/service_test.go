package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConnector struct {
	mu      sync.Mutex
	stores  map[string]*fakeStore
	failErr error
}

func (c *fakeConnector) Connect(_ context.Context, schema string) (Store, error) {
	if c.failErr != nil {
		return nil, c.failErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	store := newFakeStore()
	store.schema = schema
	if c.stores == nil {
		c.stores = make(map[string]*fakeStore)
	}
	c.stores[schema] = store
	return store, nil
}

func newTestService(conn *fakeConnector, feeds map[string]*memFeed) *Service {
	open := func(path string) (OpenFeed, error) {
		feed, ok := feeds[path]
		if !ok {
			return nil, errors.New("open " + path + ": no such file or directory")
		}
		return feed, nil
	}
	return NewService(conn, open, newTestSchema().all(), ServiceConfig{MaxConcurrent: 1, MaxWait: 50 * time.Millisecond})
}

func TestService_LoadCompletes(t *testing.T) {
	conn := &fakeConnector{}
	svc := newTestService(conn, map[string]*memFeed{"/feeds/metro.zip": validFeed()})

	id, err := svc.StartLoad(context.Background(), "/feeds/metro.zip")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := svc.WaitLoad(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, LoadComplete, status.State)
	assert.Equal(t, SchemaNameFor(id), status.Schema)
	require.NotNil(t, status.Result)
	assert.Equal(t, id, status.Result.ID)
	assert.Equal(t, 2, status.Result.Tables["stops"].RowCount)
	assert.NotNil(t, status.FinishedAt)
	assert.Empty(t, status.CurrentTable)

	require.NoError(t, svc.Shutdown(ctx))
	assert.Equal(t, 0, svc.Limiter().Active())
	assert.Len(t, svc.ListLoads(), 1)

	conn.mu.Lock()
	store := conn.stores[status.Schema]
	conn.mu.Unlock()
	require.NotNil(t, store)
	store.mu.Lock()
	assert.True(t, store.closed)
	store.mu.Unlock()
}

func TestService_OpenFailureReleasesSlot(t *testing.T) {
	svc := newTestService(&fakeConnector{}, nil)

	_, err := svc.StartLoad(context.Background(), "/missing.zip")
	require.Error(t, err)
	assert.Equal(t, "FEED001", MapError(err).Code)
	assert.Equal(t, 1, svc.Limiter().Available())
}

func TestService_ConnectFailure(t *testing.T) {
	conn := &fakeConnector{failErr: errors.New("dial tcp: connection refused")}
	svc := newTestService(conn, map[string]*memFeed{"feed": validFeed()})

	id, err := svc.StartLoad(context.Background(), "feed")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := svc.WaitLoad(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, LoadFailed, status.State)
	assert.Equal(t, "DB004", status.ErrorCode)
	assert.Nil(t, status.Result)
}

func TestService_UnknownLoad(t *testing.T) {
	svc := newTestService(&fakeConnector{}, nil)

	_, err := svc.GetLoad("nope")
	assert.True(t, errors.Is(err, ErrLoadNotFound))
	assert.True(t, errors.Is(svc.CancelLoad("nope"), ErrLoadNotFound))
}

func TestSchemaNameFor(t *testing.T) {
	assert.Equal(t, "feed_1b4e28ba_2d71", SchemaNameFor("1b4e28ba-2d71"))
}
