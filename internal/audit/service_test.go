package audit

import (
	"errors"
	"testing"

	"tienda-backend/internal/models"
	"tienda-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWriteLogSnapshots(t *testing.T) {
	db := testutil.NewDB(t)
	uid := uint(7)

	require.NoError(t, WriteLog(db, LogOptions{
		Actor:      Actor{UserID: &uid, UserName: "ana"},
		EntityType: "sale",
		EntityID:   3,
		Action:     models.AuditActionCreate,
		After:      map[string]any{"code": "V-00001"},
	}))

	var log models.AuditLog
	require.NoError(t, db.First(&log).Error)
	assert.Equal(t, "null", log.BeforeData)
	assert.JSONEq(t, `{"code":"V-00001"}`, log.AfterData)
	assert.Equal(t, "ana", log.UserName)
	require.NotNil(t, log.UserID)
	assert.Equal(t, uid, *log.UserID)
}

func TestWriteLogRollsBackWithCaller(t *testing.T) {
	db := testutil.NewDB(t)
	boom := errors.New("boom")

	err := db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, WriteLog(tx, LogOptions{EntityType: "sale", EntityID: 1, Action: models.AuditActionDelete}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&n).Error)
	assert.Zero(t, n)
}
