package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdeskhq/zapdesk/internal/instance"
)

type fakeInstanceStore struct {
	items     []instance.Instance
	setActive *bool
}

func (f *fakeInstanceStore) List(context.Context) ([]instance.Instance, error) {
	return f.items, nil
}

func (f *fakeInstanceStore) Get(_ context.Context, id uuid.UUID) (instance.Instance, error) {
	for _, inst := range f.items {
		if inst.ID == id {
			return inst, nil
		}
	}
	return instance.Instance{}, instance.ErrNotFound
}

func (f *fakeInstanceStore) SetActive(ctx context.Context, id uuid.UUID, active bool) (instance.Instance, error) {
	inst, err := f.Get(ctx, id)
	if err != nil {
		return instance.Instance{}, err
	}
	f.setActive = &active
	inst.IsActive = active
	return inst, nil
}

type fakeSyncer struct {
	allCalled bool
	oneID     uuid.UUID
	err       error
}

func (f *fakeSyncer) SyncAll(context.Context) error {
	f.allCalled = true
	return f.err
}

func (f *fakeSyncer) SyncOne(_ context.Context, id uuid.UUID) (instance.Instance, error) {
	f.oneID = id
	if f.err != nil {
		return instance.Instance{}, f.err
	}
	return instance.Instance{ID: id, Status: instance.StatusConnected}, nil
}

func instancesRouter(store *fakeInstanceStore, syncer *fakeSyncer) *echo.Echo {
	e := echo.New()
	h := NewInstancesHandler(nil, store)
	if syncer != nil {
		h.SetSyncer(syncer)
	}
	h.Register(e)
	return e
}

func TestInstances_List(t *testing.T) {
	t.Parallel()

	store := &fakeInstanceStore{items: []instance.Instance{
		{ID: uuid.New(), InstanceName: "support-line"},
		{ID: uuid.New(), InstanceName: "sales-line"},
	}}
	req := httptest.NewRequest(http.MethodGet, "/instances", nil)
	rec := httptest.NewRecorder()
	instancesRouter(store, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Items []instance.Instance `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Items, 2)
}

func TestInstances_SetActive(t *testing.T) {
	t.Parallel()

	inst := instance.Instance{ID: uuid.New(), InstanceName: "support-line", IsActive: true}
	store := &fakeInstanceStore{items: []instance.Instance{inst}}

	req := httptest.NewRequest(http.MethodPut, "/instances/"+inst.ID.String()+"/active",
		strings.NewReader(`{"active": false}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	instancesRouter(store, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, store.setActive)
	assert.False(t, *store.setActive)
}

func TestInstances_SetActiveRequiresFlag(t *testing.T) {
	t.Parallel()

	inst := instance.Instance{ID: uuid.New()}
	store := &fakeInstanceStore{items: []instance.Instance{inst}}

	req := httptest.NewRequest(http.MethodPut, "/instances/"+inst.ID.String()+"/active",
		strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	instancesRouter(store, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, store.setActive)
}

func TestInstances_SetActiveUnknownID(t *testing.T) {
	t.Parallel()

	store := &fakeInstanceStore{}
	req := httptest.NewRequest(http.MethodPut, "/instances/"+uuid.NewString()+"/active",
		strings.NewReader(`{"active": true}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	instancesRouter(store, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInstances_InvalidID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/instances/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	instancesRouter(&fakeInstanceStore{}, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInstances_SyncOne(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	syncer := &fakeSyncer{}
	req := httptest.NewRequest(http.MethodPost, "/instances/"+id.String()+"/sync", nil)
	rec := httptest.NewRecorder()
	instancesRouter(&fakeInstanceStore{}, syncer).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, syncer.oneID)
}

func TestInstances_SyncAll(t *testing.T) {
	t.Parallel()

	syncer := &fakeSyncer{}
	req := httptest.NewRequest(http.MethodPost, "/instances/sync", nil)
	rec := httptest.NewRecorder()
	instancesRouter(&fakeInstanceStore{}, syncer).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, syncer.allCalled)
}

func TestInstances_SyncWithoutSyncer(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/instances/sync", nil)
	rec := httptest.NewRecorder()
	instancesRouter(&fakeInstanceStore{}, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
