package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// dryRunDB 只生成 SQL, 不连接数据库
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "parley:parley@tcp(127.0.0.1:3306)/parley?parseTime=True",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestUpdateLastMessageNeverMovesBackwards(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 123456789, time.UTC)
	stmt := updateLastMessage(dryRunDB(t), 7, "65f000000000000000000001", at).Statement

	sql := stmt.SQL.String()
	require.Contains(t, sql, "UPDATE `conversations`")
	require.Contains(t, sql, "id = ? AND last_message_at <= ?")
	require.Contains(t, stmt.Vars, uint64(7))
	require.Contains(t, stmt.Vars, at.Truncate(time.Millisecond))
	require.NotContains(t, stmt.Vars, at)
}

