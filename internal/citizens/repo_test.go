package citizens

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquezdaniela/reciclaje-municipal/internal/testdb"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db"
)

func TestCreateAndFind(t *testing.T) {
	conn, _ := testdb.Open(t)
	repo := NewRepository(conn)
	u := testdb.SeedUser(t, conn, "ana", false)

	c, err := repo.Create(context.Background(), u.ID, "Calle 1", "+5691234")
	require.NoError(t, err)
	assert.False(t, c.RegisteredAt.IsZero())

	got, err := repo.FindByUserID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, "ana", got.User.Username)
}

func TestCreateIsOneToOne(t *testing.T) {
	conn, _ := testdb.Open(t)
	repo := NewRepository(conn)
	u := testdb.SeedUser(t, conn, "ana", false)

	_, err := repo.Create(context.Background(), u.ID, "Calle 1", "1")
	require.NoError(t, err)
	_, err = repo.Create(context.Background(), u.ID, "Calle 2", "2")
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))
}

func TestCreateRequiresUser(t *testing.T) {
	conn, _ := testdb.Open(t)
	_, err := NewRepository(conn).Create(context.Background(), uuid.New(), "x", "1")
	require.Error(t, err)
	assert.True(t, db.IsForeignKeyViolation(err, ""))
}
