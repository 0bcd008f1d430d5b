package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitnotify/models"
)

// setupTestDB creates a new test database connection with a mock
func setupTestDB(t *testing.T) (*DB, sqlmock.Sqlmock, func()) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(mockDB, "sqlmock")
	database := &DB{conn: sqlxDB}

	cleanup := func() {
		database.Close()
		mockDB.Close()
	}

	return database, mock, cleanup
}

func TestGetRefs(t *testing.T) {
	tests := []struct {
		name        string
		repoID      int64
		mockSetup   func(sqlmock.Sqlmock)
		expected    models.RefSnapshot
		expectedErr error
	}{
		{
			name:   "successful retrieval",
			repoID: 1,
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"ref_name", "last_hash"}).
					AddRow("refs/heads/main", "aaaa111").
					AddRow("refs/tags/v1", "bbbb222")
				mock.ExpectQuery("SELECT ref_name, last_hash").
					WithArgs(int64(1)).
					WillReturnRows(rows)
			},
			expected: models.RefSnapshot{
				"refs/heads/main": "aaaa111",
				"refs/tags/v1":    "bbbb222",
			},
		},
		{
			name:   "no tracked refs",
			repoID: 2,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT ref_name, last_hash").
					WithArgs(int64(2)).
					WillReturnRows(sqlmock.NewRows([]string{"ref_name", "last_hash"}))
			},
			expected: models.RefSnapshot{},
		},
		{
			name:   "query failure",
			repoID: 3,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT ref_name, last_hash").
					WithArgs(int64(3)).
					WillReturnError(sql.ErrConnDone)
			},
			expectedErr: ErrQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			result, err := database.GetRefs(context.Background(), tt.repoID)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpsertRef(t *testing.T) {
	tests := []struct {
		name        string
		refName     string
		hash        string
		mockSetup   func(sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name:    "successful upsert",
			refName: "refs/heads/main",
			hash:    "aaaa111",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO repository_refs").
					WithArgs(int64(1), "refs/heads/main", "aaaa111").
					WillReturnResult(sqlmock.NewResult(1, 1))
			},
		},
		{
			name:        "empty ref name",
			refName:     "",
			hash:        "aaaa111",
			mockSetup:   func(mock sqlmock.Sqlmock) {},
			expectedErr: ErrInvalidInput,
		},
		{
			name:        "empty hash",
			refName:     "refs/heads/main",
			hash:        "",
			mockSetup:   func(mock sqlmock.Sqlmock) {},
			expectedErr: ErrInvalidInput,
		},
		{
			name:    "query failure",
			refName: "refs/heads/main",
			hash:    "aaaa111",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("INSERT INTO repository_refs").
					WithArgs(int64(1), "refs/heads/main", "aaaa111").
					WillReturnError(sql.ErrConnDone)
			},
			expectedErr: ErrQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			err := database.UpsertRef(context.Background(), 1, tt.refName, tt.hash)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDeleteRef(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM repository_refs").
		WithArgs(int64(1), "refs/heads/gone").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := database.DeleteRef(context.Background(), 1, "refs/heads/gone")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscribersWithPreferences(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{
		"id", "notify_on_new_branch", "notify_on_new_tag",
		"notify_on_branch_update", "notify_on_new_pr", "notify_on_pr_update",
	}).
		AddRow(100, true, false, true, false, false).
		AddRow(200, false, false, false, false, false)
	mock.ExpectQuery("SELECT").
		WithArgs(int64(1)).
		WillReturnRows(rows)

	subscribers, err := database.SubscribersWithPreferences(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, subscribers, 2)

	assert.Equal(t, int64(100), subscribers[0].ChatID)
	assert.True(t, subscribers[0].NotifyOnNewBranch)
	assert.False(t, subscribers[0].NotifyOnNewTag)
	assert.True(t, subscribers[0].NotifyOnBranchUpdate)

	assert.Equal(t, int64(200), subscribers[1].ChatID)
	assert.False(t, subscribers[1].NotifyOnNewBranch)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddSubscription(t *testing.T) {
	tests := []struct {
		name        string
		repoURL     string
		mockSetup   func(sqlmock.Sqlmock)
		expectedID  int64
		expectedErr error
	}{
		{
			name:    "new repository",
			repoURL: "https://github.com/owner/repo",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO subscribers").
					WithArgs(int64(100), "alice").
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectQuery("INSERT INTO repositories").
					WithArgs("https://github.com/owner/repo", hashURL("https://github.com/owner/repo")).
					WillReturnRows(sqlmock.NewRows([]string{"id", "url", "url_hash"}).
						AddRow(1, "https://github.com/owner/repo", hashURL("https://github.com/owner/repo")))
				mock.ExpectExec("INSERT INTO subscriptions").
					WithArgs(int64(100), int64(1)).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
			expectedID: 1,
		},
		{
			name:    "existing repository resolves to same row",
			repoURL: "https://github.com/owner/repo",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO subscribers").
					WithArgs(int64(100), "alice").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("INSERT INTO repositories").
					WithArgs("https://github.com/owner/repo", hashURL("https://github.com/owner/repo")).
					WillReturnRows(sqlmock.NewRows([]string{"id", "url", "url_hash"}).
						AddRow(7, "https://github.com/owner/repo", hashURL("https://github.com/owner/repo")))
				mock.ExpectExec("INSERT INTO subscriptions").
					WithArgs(int64(100), int64(7)).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectCommit()
			},
			expectedID: 7,
		},
		{
			name:        "empty url",
			repoURL:     "",
			mockSetup:   func(mock sqlmock.Sqlmock) {},
			expectedErr: ErrInvalidInput,
		},
		{
			name:    "transaction failure",
			repoURL: "https://github.com/owner/repo",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(sql.ErrConnDone)
			},
			expectedErr: ErrTransactionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			subscriber := models.Subscriber{ID: 100, Username: "alice"}
			repo, err := database.AddSubscription(context.Background(), subscriber, tt.repoURL)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedID, repo.ID)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetRepositoryByID(t *testing.T) {
	tests := []struct {
		name        string
		repoID      int64
		mockSetup   func(sqlmock.Sqlmock)
		expected    *models.Repository
		expectedErr error
	}{
		{
			name:   "successful retrieval",
			repoID: 1,
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "url", "url_hash"}).
					AddRow(1, "https://github.com/owner/repo", hashURL("https://github.com/owner/repo"))
				mock.ExpectQuery("SELECT id, url, url_hash").
					WithArgs(int64(1)).
					WillReturnRows(rows)
			},
			expected: &models.Repository{
				ID:      1,
				URL:     "https://github.com/owner/repo",
				URLHash: hashURL("https://github.com/owner/repo"),
			},
		},
		{
			name:   "repository not found",
			repoID: 999,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT id, url, url_hash").
					WithArgs(int64(999)).
					WillReturnError(sql.ErrNoRows)
			},
			expectedErr: ErrRepositoryNotFound,
		},
		{
			name:   "query failure",
			repoID: 2,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT id, url, url_hash").
					WithArgs(int64(2)).
					WillReturnError(sql.ErrConnDone)
			},
			expectedErr: ErrQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			result, err := database.GetRepositoryByID(context.Background(), tt.repoID)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListSubscriptions(t *testing.T) {
	tests := []struct {
		name         string
		subscriberID int64
		mockSetup    func(sqlmock.Sqlmock)
		expected     []models.Repository
		expectedErr  error
	}{
		{
			name:         "subscriber with two subscriptions",
			subscriberID: 100,
			mockSetup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "url", "url_hash"}).
					AddRow(1, "https://github.com/owner/a", hashURL("https://github.com/owner/a")).
					AddRow(2, "https://github.com/owner/b", hashURL("https://github.com/owner/b"))
				mock.ExpectQuery("SELECT r.id, r.url, r.url_hash").
					WithArgs(int64(100)).
					WillReturnRows(rows)
			},
			expected: []models.Repository{
				{ID: 1, URL: "https://github.com/owner/a", URLHash: hashURL("https://github.com/owner/a")},
				{ID: 2, URL: "https://github.com/owner/b", URLHash: hashURL("https://github.com/owner/b")},
			},
		},
		{
			name:         "subscriber with no subscriptions",
			subscriberID: 200,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT r.id, r.url, r.url_hash").
					WithArgs(int64(200)).
					WillReturnRows(sqlmock.NewRows([]string{"id", "url", "url_hash"}))
			},
			expected: nil,
		},
		{
			name:         "query failure",
			subscriberID: 300,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT r.id, r.url, r.url_hash").
					WithArgs(int64(300)).
					WillReturnError(sql.ErrConnDone)
			},
			expectedErr: ErrQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			result, err := database.ListSubscriptions(context.Background(), tt.subscriberID)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRemoveSubscription(t *testing.T) {
	tests := []struct {
		name        string
		mockSetup   func(sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name: "successful removal",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM subscriptions").
					WithArgs(int64(100), int64(1)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "query failure",
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("DELETE FROM subscriptions").
					WithArgs(int64(100), int64(1)).
					WillReturnError(sql.ErrConnDone)
			},
			expectedErr: ErrQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			err := database.RemoveSubscription(context.Background(), 100, 1)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSetNotificationsEnabled(t *testing.T) {
	tests := []struct {
		name        string
		enabled     bool
		mockSetup   func(sqlmock.Sqlmock)
		expectedErr error
	}{
		{
			name:    "enable notifications",
			enabled: true,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE subscribers").
					WithArgs(true, int64(100)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name:    "disable notifications",
			enabled: false,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE subscribers").
					WithArgs(false, int64(100)).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name:    "query failure",
			enabled: true,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec("UPDATE subscribers").
					WithArgs(true, int64(100)).
					WillReturnError(sql.ErrConnDone)
			},
			expectedErr: ErrQueryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			err := database.SetNotificationsEnabled(context.Background(), 100, tt.enabled)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRemoveRepository(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM repository_refs").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM subscriptions").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM repositories").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := database.RemoveRepository(context.Background(), 1)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveOrphanRepositories(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM repository_refs").
		WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec("DELETE FROM repositories").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	removed, err := database.RemoveOrphanRepositories(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveOrphanSubscribers(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM subscribers").
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := database.RemoveOrphanSubscribers(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveSubscriber(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM subscriptions").
		WithArgs(int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM subscribers").
		WithArgs(int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := database.RemoveSubscriber(context.Background(), 100)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotificationsEnabled(t *testing.T) {
	tests := []struct {
		name         string
		subscriberID int64
		mockSetup    func(sqlmock.Sqlmock)
		expected     bool
		expectedErr  error
	}{
		{
			name:         "enabled",
			subscriberID: 100,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT notifications_enabled").
					WithArgs(int64(100)).
					WillReturnRows(sqlmock.NewRows([]string{"notifications_enabled"}).AddRow(true))
			},
			expected: true,
		},
		{
			name:         "subscriber not found",
			subscriberID: 999,
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT notifications_enabled").
					WithArgs(int64(999)).
					WillReturnError(sql.ErrNoRows)
			},
			expectedErr: ErrSubscriberNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			database, mock, cleanup := setupTestDB(t)
			defer cleanup()

			tt.mockSetup(mock)

			enabled, err := database.GetNotificationsEnabled(context.Background(), tt.subscriberID)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, enabled)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSetPreferences(t *testing.T) {
	database, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("UPDATE subscriptions").
		WithArgs(true, false, true, false, false, int64(100), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	pref := models.Preference{NotifyOnNewBranch: true, NotifyOnBranchUpdate: true}
	err := database.SetPreferences(context.Background(), 100, 1, pref)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
