package migration

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/logging"
)

const sentinel = `SELECT to_regclass\('public.document_tags'\) IS NOT NULL`

func TestEnsureMigrated(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(mock sqlmock.Sqlmock)
		wantErr    string
		wantEvent  string
	}{
		{
			name: "schema exists",
			setupMocks: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(sentinel).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
			},
			wantEvent: "db_migration_skip",
		},
		{
			name: "fresh database",
			setupMocks: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(sentinel).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
				mock.ExpectBegin()
				for range steps {
					mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
				}
				mock.ExpectCommit()
			},
			wantEvent: "db_migration_success",
		},
		{
			name: "step fails",
			setupMocks: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(sentinel).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
				mock.ExpectBegin()
				mock.ExpectExec("CREATE TABLE IF NOT EXISTS documents").WillReturnError(errors.New("permission denied"))
				mock.ExpectRollback()
			},
			wantErr:   "migration step create_table_documents: permission denied",
			wantEvent: "db_migration_failed",
		},
		{
			name: "sentinel check fails",
			setupMocks: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(sentinel).WillReturnError(errors.New("connection reset"))
			},
			wantErr:   "check schema sentinel",
			wantEvent: "db_migration_failed",
		},
		{
			name: "commit fails",
			setupMocks: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(sentinel).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
				mock.ExpectBegin()
				for range steps {
					mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
				}
				mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))
			},
			wantErr:   "commit migration",
			wantEvent: "db_migration_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.setupMocks(mock)

			var buf bytes.Buffer
			err = EnsureMigrated(context.Background(), db, logging.New(&buf, time.UTC, "database"), "db")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.True(t, strings.Contains(buf.String(), `"event":"`+tt.wantEvent+`"`), buf.String())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
