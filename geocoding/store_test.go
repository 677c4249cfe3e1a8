package geocoding

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muelltonne/muellbot/model"
)

type fakeStore struct {
	entries map[string]model.LocationKey
	saves   int
}

func (f *fakeStore) GetLocation(_ context.Context, canonical string) (model.LocationKey, error) {
	key, ok := f.entries[canonical]
	if !ok {
		return "", model.ErrNotFound
	}
	return key, nil
}

func (f *fakeStore) SaveLocation(_ context.Context, canonical string, key model.LocationKey) error {
	f.entries[canonical] = key
	f.saves++
	return nil
}

func TestResolvePrefersPersistentStoreOverUpstream(t *testing.T) {
	client, calls := newTestClient(t, singleMatch, http.StatusOK)
	store := &fakeStore{entries: map[string]model.LocationKey{
		"kaiserstraße,1": "innenstadt-west",
	}}
	client.store = store

	key, err := client.Resolve(context.Background(), model.Address{Street: "Kaiserstraße", HouseNumber: "1"})
	require.NoError(t, err)
	assert.Equal(t, model.LocationKey("innenstadt-west"), key)
	assert.Equal(t, int64(0), calls.Load(), "store hit must not reach the upstream")
}

func TestResolveWritesThroughToStore(t *testing.T) {
	client, _ := newTestClient(t, singleMatch, http.StatusOK)
	store := &fakeStore{entries: map[string]model.LocationKey{}}
	client.store = store

	_, err := client.Resolve(context.Background(), model.Address{Street: "Kaiserstraße", HouseNumber: "1"})
	require.NoError(t, err)

	assert.Equal(t, 1, store.saves)
	assert.Equal(t, model.LocationKey("innenstadt-west"), store.entries["kaiserstraße,1"])
}

func TestNegativeResultIsNotPersisted(t *testing.T) {
	client, _ := newTestClient(t, noMatch, http.StatusOK)
	store := &fakeStore{entries: map[string]model.LocationKey{}}
	client.store = store
	client.negativeTTL = time.Hour

	_, err := client.Resolve(context.Background(), model.Address{Street: "Gibtsnicht", HouseNumber: "1"})
	require.ErrorIs(t, err, model.ErrAddressNotFound)
	assert.Empty(t, store.entries)
}
