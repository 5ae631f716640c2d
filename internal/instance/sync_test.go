package instance

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdeskhq/zapdesk/internal/db/dbtest"
)

type fakeFetcher struct {
	infos map[string]ConnectionInfo
	errs  map[string]error
}

func (f *fakeFetcher) FetchConnectionInfo(_ context.Context, inst Instance) (ConnectionInfo, error) {
	if err := f.errs[inst.InstanceName]; err != nil {
		return ConnectionInfo{}, err
	}
	return f.infos[inst.InstanceName], nil
}

func TestSyncAll_UpdatesEachInstance(t *testing.T) {
	t.Parallel()

	fake := &dbtest.Fake{}
	fake.QueueRows(
		instanceRow(uuid.New(), "support-line", true),
		instanceRow(uuid.New(), "sales-line", true),
	)
	fake.QueueExec(1)
	fake.QueueExec(1)

	fetcher := &fakeFetcher{infos: map[string]ConnectionInfo{
		"support-line": {Status: "open", PhoneNumber: "5511911112222"},
		"sales-line":   {Status: "close"},
	}}
	syncer := NewSyncer(nil, NewService(nil, fake), fetcher)

	require.NoError(t, syncer.SyncAll(context.Background()))
	require.Len(t, fake.Calls, 3)
	assert.Equal(t, StatusConnected, fake.Calls[1].Args[4])
	assert.Equal(t, StatusDisconnected, fake.Calls[2].Args[4])
}

func TestSyncAll_PartialFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	fake := &dbtest.Fake{}
	fake.QueueRows(
		instanceRow(uuid.New(), "support-line", true),
		instanceRow(uuid.New(), "sales-line", true),
	)
	fake.QueueExec(1)

	fetcher := &fakeFetcher{
		infos: map[string]ConnectionInfo{"sales-line": {Status: "open"}},
		errs:  map[string]error{"support-line": errors.New("gateway timeout")},
	}
	syncer := NewSyncer(nil, NewService(nil, fake), fetcher)

	assert.NoError(t, syncer.SyncAll(context.Background()))
}

func TestSyncAll_AllFailedIsAnError(t *testing.T) {
	t.Parallel()

	fake := &dbtest.Fake{}
	fake.QueueRows(instanceRow(uuid.New(), "support-line", true))

	fetcher := &fakeFetcher{errs: map[string]error{"support-line": errors.New("gateway down")}}
	syncer := NewSyncer(nil, NewService(nil, fake), fetcher)

	assert.Error(t, syncer.SyncAll(context.Background()))
}

func TestSyncOne_ReturnsRefreshedInstance(t *testing.T) {
	t.Parallel()

	fake := &dbtest.Fake{}
	id := uuid.New()
	fake.QueueRow(instanceRow(id, "support-line", true)...)
	fake.QueueExec(1)
	fake.QueueRow(instanceRow(id, "support-line", true)...)

	fetcher := &fakeFetcher{infos: map[string]ConnectionInfo{
		"support-line": {Status: "open", PhoneNumber: "5511911112222"},
	}}
	syncer := NewSyncer(nil, NewService(nil, fake), fetcher)

	inst, err := syncer.SyncOne(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, inst.ID)
	assert.Len(t, fake.Calls, 3)
}
