package repositories

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityRepository_CreateIfAbsent(t *testing.T) {
	req := require.New(t)
	repo := NewIdentityRepository(openBadger(t))

	created, err := repo.CreateIfAbsent("a@university.edu")
	req.NoError(err)
	req.True(created)

	// Second login with the same address is not a new identity.
	created, err = repo.CreateIfAbsent("a@university.edu")
	req.NoError(err)
	req.False(created)

	exists, err := repo.Exists("a@university.edu")
	req.NoError(err)
	req.True(exists)

	exists, err = repo.Exists("unknown@university.edu")
	req.NoError(err)
	req.False(exists)
}
