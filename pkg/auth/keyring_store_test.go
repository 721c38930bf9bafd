package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyringStoreIndex(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	require.NoError(t, store.Store(&Account{Username: "work", Cookie: "web_session=w"}))
	require.NoError(t, store.Store(&Account{Username: "home", Cookie: "web_session=h"}))
	require.NoError(t, store.Store(&Account{Username: "work", Cookie: "web_session=w2"}))

	accounts, err := store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "home", accounts[0].Username)
	assert.Equal(t, "web_session=w2", accounts[1].Cookie)

	require.NoError(t, store.Delete("home"))
	assert.False(t, store.Exists("home"))
	assert.ErrorIs(t, store.Delete("home"), ErrCredentialsNotFound)

	accounts, err = store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "work", accounts[0].Username)

	_, err = store.Retrieve("")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
