package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"wanderfeed/internal/models"
	"wanderfeed/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestPostRepository_LockForUpdateUsesRowLock(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "posts" WHERE id = \$1 .*FOR UPDATE`).
		WithArgs(sqlmock.AnyArg(), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "caption"}).AddRow(id.String(), "hello"))

	post, err := repo.LockForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, post.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_LockForUpdateNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.LockForUpdate(context.Background(), uuid.New())
	assert.True(t, models.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCounterRepository_ReconcileStatements(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCounterRepository(db)

	for i, spec := range counterSpecs {
		prefix := regexp.QuoteMeta("UPDATE " + spec.table + " SET " + spec.column + " = (")
		mock.ExpectExec(prefix).WillReturnResult(sqlmock.NewResult(0, int64(i)))
	}

	fixed, err := repo.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Len(t, fixed, len(counterSpecs))
	assert.Equal(t, int64(1), fixed["following_count"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_RollsBackOnError(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	tx := NewTransactor(db)
	users := NewUserRepository(db, nil)
	ctx := context.Background()

	boom := errors.New("boom")
	var created uuid.UUID
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		u := &models.User{Username: "ghost"}
		require.NoError(t, users.Create(ctx, u))
		created = u.ID
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = users.GetByID(ctx, created)
	assert.True(t, models.IsNotFound(err))
}

func TestTransactor_NestedCallsJoinOuterTx(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	tx := NewTransactor(db)
	ctx := context.Background()

	err := tx.WithinTx(ctx, func(outer context.Context) error {
		return tx.WithinTx(outer, func(inner context.Context) error {
			assert.Equal(t, outer, inner)
			return nil
		})
	})
	assert.NoError(t, err)
}

func TestFollowRepository_InsertIfAbsentAndRecount(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	follows := NewFollowRepository(db)
	users := NewUserRepository(db, nil)
	ctx := context.Background()

	a := testutil.CreateUser(t, db)
	b := testutil.CreateUser(t, db)

	inserted, err := follows.InsertIfAbsent(ctx, &models.Follow{FollowerID: a.ID, FollowingID: b.ID})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = follows.InsertIfAbsent(ctx, &models.Follow{FollowerID: a.ID, FollowingID: b.ID})
	require.NoError(t, err)
	assert.False(t, inserted, "natural key already present")

	n, err := users.RecountFollowers(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	edge, err := follows.FindForUpdate(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.NotNil(t, edge)
	require.NoError(t, follows.SetState(ctx, edge.ID, models.EdgeInactive))

	n, err = users.RecountFollowers(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	stored, err := users.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.FollowersCount)

	missing, err := follows.FindForUpdate(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepository_InsertIfAbsentByExternalID(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	users := NewUserRepository(db, nil)
	ctx := context.Background()

	ext := "user_abc"
	created, err := users.InsertIfAbsentByExternalID(ctx, &models.User{ExternalID: &ext, Username: "abc"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = users.InsertIfAbsentByExternalID(ctx, &models.User{ExternalID: &ext, Username: "abc2"})
	require.NoError(t, err)
	assert.False(t, created)

	u, err := users.GetByExternalID(ctx, ext)
	require.NoError(t, err)
	assert.Equal(t, "abc", u.Username)

	id, err := users.UserIDForSubject(ctx, ext)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	require.NoError(t, users.Deactivate(ctx, u.ID, time.Now().UTC()))
	_, err = users.UserIDForSubject(ctx, ext)
	assert.True(t, models.IsNotFound(err), "deactivated accounts do not authenticate")
}

func TestPostRepository_TrendingFilterAndOrder(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	posts := NewPostRepository(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db)
	now := time.Now().UTC()

	p1 := testutil.CreatePost(t, db, author.ID, func(p *models.Post) {
		p.IsFeatured = true
		p.LikesCount = 5
		p.CreatedAt = now.AddDate(0, 0, -30)
	})
	testutil.CreatePost(t, db, author.ID, func(p *models.Post) {
		p.CreatedAt = now.AddDate(0, 0, -10)
	})
	p3 := testutil.CreatePost(t, db, author.ID, func(p *models.Post) {
		p.LikesCount = 50
		p.CreatedAt = now.AddDate(0, 0, -1)
	})
	testutil.CreatePost(t, db, author.ID, func(p *models.Post) {
		p.IsPublished = false
		p.IsFeatured = true
	})

	got, err := posts.ListTrending(ctx, now.AddDate(0, 0, -7), 20, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, p3.ID, got[0].ID)
	assert.Equal(t, p1.ID, got[1].ID)
}

func TestSaveRepository_CollectionsAndLocations(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	saves := NewSaveRepository(db)
	ctx := context.Background()
	u := testutil.CreateUser(t, db)
	author := testutil.CreateUser(t, db)

	italy := "Italy"
	rome := "Rome"
	for i := 0; i < 3; i++ {
		p := testutil.CreatePost(t, db, author.ID)
		_, err := saves.InsertIfAbsent(ctx, &models.SavedPost{
			UserID: u.ID, PostID: p.ID, CollectionName: &italy, LocationCategory: &rome,
		})
		require.NoError(t, err)
	}
	p := testutil.CreatePost(t, db, author.ID)
	_, err := saves.InsertIfAbsent(ctx, &models.SavedPost{UserID: u.ID, PostID: p.ID, State: models.EdgeInactive, CollectionName: &italy})
	require.NoError(t, err)

	cols, err := saves.Collections(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.CollectionSummary{{Name: "Italy", Count: 3}}, cols)

	locs, err := saves.Locations(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.LocationSummary{{Category: "Rome", Count: 3}}, locs)

	listed, err := saves.ListActive(ctx, u.ID, SavedFilter{Collection: "Italy"}, 20, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	listed, err = saves.ListActive(ctx, u.ID, SavedFilter{Collection: "Spain"}, 20, 0)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestReviewRepository_StatsAndListing(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	reviews := NewReviewRepository(db)
	ctx := context.Background()
	author := testutil.CreateUser(t, db)
	post := testutil.CreatePost(t, db, author.ID)

	r1 := testutil.CreateUser(t, db, func(u *models.User) { u.IsVerified = true })
	r2 := testutil.CreateUser(t, db)
	r3 := testutil.CreateUser(t, db)

	require.NoError(t, reviews.Create(ctx, &models.Review{PostID: post.ID, UserID: r1.ID, Rating: 5, HelpfulCount: 1}))
	require.NoError(t, reviews.Create(ctx, &models.Review{PostID: post.ID, UserID: r2.ID, Rating: 4, HelpfulCount: 7}))
	require.NoError(t, reviews.Create(ctx, &models.Review{PostID: post.ID, UserID: r3.ID, Rating: 1, Status: models.ReviewDeleted}))

	stats, err := reviews.ActiveStats(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.InDelta(t, 4.5, stats.Average, 0.001)

	list, total, err := reviews.ListActiveByPost(ctx, post.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, list, 2)
	assert.Equal(t, r2.ID, list[0].UserID, "most helpful first")
	assert.Equal(t, r1.Username, list[1].Username)
	assert.True(t, list[1].IsVerified)

	has, err := reviews.HasActive(ctx, r3.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, has, "deleted reviews do not count")
}

func TestReviewRepository_PartialIndexRejectsSecondActive(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	reviews := NewReviewRepository(db)
	ctx := context.Background()
	u := testutil.CreateUser(t, db)
	post := testutil.CreatePost(t, db, u.ID)

	require.NoError(t, reviews.Create(ctx, &models.Review{PostID: post.ID, UserID: u.ID, Rating: 3}))
	err := reviews.Create(ctx, &models.Review{PostID: post.ID, UserID: u.ID, Rating: 4})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestCounterRepository_ReconcileRepairsDrift(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := NewCounterRepository(db)
	ctx := context.Background()

	a := testutil.CreateUser(t, db)
	b := testutil.CreateUser(t, db)
	post := testutil.CreatePost(t, db, a.ID)
	require.NoError(t, db.Create(&models.Follow{FollowerID: a.ID, FollowingID: b.ID}).Error)
	require.NoError(t, db.Create(&models.Like{UserID: b.ID, PostID: post.ID}).Error)
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumn("likes_count", 42).Error)

	fixed, err := repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fixed["followers_count"])
	assert.Equal(t, int64(1), fixed["following_count"])
	assert.Equal(t, int64(1), fixed["likes_count"])
	assert.Equal(t, int64(1), fixed["posts_count"])

	var stored models.Post
	require.NoError(t, db.First(&stored, "id = ?", post.ID).Error)
	assert.Equal(t, int64(1), stored.LikesCount)

	fixed, err = repo.Reconcile(ctx)
	require.NoError(t, err)
	for name, n := range fixed {
		assert.Zero(t, n, name)
	}
}
