package instance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdeskhq/zapdesk/internal/db/dbtest"
)

func instanceRow(id uuid.UUID, name string, active bool) []any {
	now := time.Now().UTC()
	return []any{
		id, "evo-" + name, name, name, "", "", StatusConnected,
		"5511911112222", "Suporte", "", active, true,
		"", (*time.Time)(nil), now, now,
	}
}

func TestGetByEvolutionID(t *testing.T) {
	t.Parallel()

	fake := &dbtest.Fake{}
	id := uuid.New()
	fake.QueueRow(instanceRow(id, "support-line", true)...)

	svc := NewService(nil, fake)
	inst, err := svc.GetByEvolutionID(context.Background(), "evo-support-line")
	require.NoError(t, err)
	assert.Equal(t, id, inst.ID)
	assert.Equal(t, "support-line", inst.InstanceName)

	require.Len(t, fake.Calls, 1)
	assert.Contains(t, fake.Calls[0].SQL, "evolution_id = $1")
}

func TestGetByName_NotFound(t *testing.T) {
	t.Parallel()

	fake := &dbtest.Fake{}
	fake.QueueRowErr(pgx.ErrNoRows)

	svc := NewService(nil, fake)
	_, err := svc.GetByName(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	t.Parallel()

	fake := &dbtest.Fake{}
	fake.QueueRows(
		instanceRow(uuid.New(), "support-line", true),
		instanceRow(uuid.New(), "sales-line", false),
	)

	svc := NewService(nil, fake)
	items, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "sales-line", items[1].InstanceName)
	assert.False(t, items[1].IsActive)
}

func TestSetActive(t *testing.T) {
	t.Parallel()

	fake := &dbtest.Fake{}
	id := uuid.New()
	fake.QueueRow(instanceRow(id, "support-line", false)...)

	svc := NewService(nil, fake)
	inst, err := svc.SetActive(context.Background(), id, false)
	require.NoError(t, err)
	assert.False(t, inst.IsActive)
	require.Len(t, fake.Calls, 1)
	assert.Equal(t, []any{id, false}, fake.Calls[0].Args)
}

func TestUpdateConnectionInfo(t *testing.T) {
	t.Parallel()

	fake := &dbtest.Fake{}
	fake.QueueExec(1)

	svc := NewService(nil, fake)
	id := uuid.New()
	err := svc.UpdateConnectionInfo(context.Background(), id, ConnectionInfo{
		PhoneNumber: "5511911112222",
		ProfileName: "Suporte",
		Status:      StatusConnected,
		Connected:   true,
	})
	require.NoError(t, err)

	require.Len(t, fake.Calls, 1)
	call := fake.Calls[0]
	assert.Contains(t, call.SQL, "COALESCE(NULLIF($2, ''), phone_number)")
	require.Len(t, call.Args, 6)
	assert.NotNil(t, call.Args[5], "connected instance records last_connection")
}

func TestUpdateConnectionInfo_DisconnectedKeepsLastConnection(t *testing.T) {
	t.Parallel()

	fake := &dbtest.Fake{}
	fake.QueueExec(1)

	svc := NewService(nil, fake)
	err := svc.UpdateConnectionInfo(context.Background(), uuid.New(), ConnectionInfo{
		Status: StatusDisconnected,
	})
	require.NoError(t, err)

	require.Len(t, fake.Calls, 1)
	lastConnection, ok := fake.Calls[0].Args[5].(*time.Time)
	require.True(t, ok)
	assert.Nil(t, lastConnection)
}

func TestAllows(t *testing.T) {
	t.Parallel()

	open := Instance{}
	assert.True(t, open.Allows("5511999998888"))

	restricted := Instance{AuthorizedNumbers: "5511000000000, 5511999998888"}
	assert.True(t, restricted.Allows("5511999998888"))
	assert.False(t, restricted.Allows("5511777776666"))
}

func TestMapGatewayStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, StatusConnected, MapGatewayStatus("open"))
	assert.Equal(t, StatusConnected, MapGatewayStatus(" OPEN "))
	assert.Equal(t, StatusConnecting, MapGatewayStatus("connecting"))
	assert.Equal(t, StatusDisconnected, MapGatewayStatus("close"))
	assert.Equal(t, StatusDisconnected, MapGatewayStatus(""))
}
