package banks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	banks []Bank
	err   error
	calls int
}

func (f *fakeStore) List(context.Context) ([]Bank, error) {
	f.calls++
	return f.banks, f.err
}

func TestListLoadsOnce(t *testing.T) {
	store := &fakeStore{banks: []Bank{{Code: "0102", Name: "Banco de Venezuela"}}}
	svc := NewService(store)

	for i := 0; i < 3; i++ {
		banks, err := svc.List(context.Background())
		require.NoError(t, err)
		assert.Len(t, banks, 1)
	}
	assert.Equal(t, 1, store.calls)
}

func TestListRetriesAfterError(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	svc := NewService(store)

	_, err := svc.List(context.Background())
	require.Error(t, err)

	store.err = nil
	banks, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, banks)
	assert.NotNil(t, banks)
	assert.Equal(t, 2, store.calls)
}
