package users_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yiny1/simplefs/ferr"
	"github.com/yiny1/simplefs/users"
)

func TestDefaultRecordsRoundTrip(t *testing.T) {
	records, err := users.DefaultRecords()
	require.NoError(t, err)

	raw, err := users.Marshal(records)
	require.NoError(t, err)

	parsed, err := users.Unmarshal(raw)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, uint16(users.RootUID), parsed[0].Uid)
	assert.Equal(t, users.DefaultRootUsername, parsed[0].Username)
}

func TestAuthenticate(t *testing.T) {
	records, err := users.DefaultRecords()
	require.NoError(t, err)
	table := users.NewTable(records)

	_, err = table.Authenticate(users.DefaultRootUsername, users.DefaultRootPassword)
	assert.NoError(t, err)

	_, err = table.Authenticate(users.DefaultRootUsername, "wrong")
	assert.ErrorIs(t, err, ferr.NotAuthenticated)
}

func TestAddAndSetPassword(t *testing.T) {
	table := users.NewTable(nil)
	require.NoError(t, table.Add(users.Record{Uid: 1, Gid: 1, Username: "alice", PasswordHash: mustHash(t, "s3cret")}))

	err := table.Add(users.Record{Uid: 2, Gid: 1, Username: "alice"})
	assert.ErrorIs(t, err, ferr.AlreadyExists)

	require.NoError(t, table.SetPassword("alice", "newpass"))
	_, err = table.Authenticate("alice", "newpass")
	assert.NoError(t, err)
}

func mustHash(t *testing.T, plaintext string) string {
	t.Helper()
	hash, err := users.HashPassword(plaintext)
	require.NoError(t, err)
	return hash
}
