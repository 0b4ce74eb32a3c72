package service

import (
	"context"
	"testing"
	"time"

	"wanderfeed/internal/models"
	"wanderfeed/internal/repository"
	"wanderfeed/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	db         *gorm.DB
	users      repository.UserRepository
	posts      repository.PostRepository
	engagement *EngagementService
	reviews    *ReviewService
	identity   *IdentityService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	tx := repository.NewTransactor(db)
	users := repository.NewUserRepository(db, nil)
	posts := repository.NewPostRepository(db)
	clock := func() time.Time { return fixedNow }

	return &testEnv{
		db:    db,
		users: users,
		posts: posts,
		engagement: NewEngagementService(EngagementDeps{
			Tx:       tx,
			Users:    users,
			Posts:    posts,
			Follows:  repository.NewFollowRepository(db),
			Likes:    repository.NewLikeRepository(db),
			Saves:    repository.NewSaveRepository(db),
			Counters: repository.NewCounterRepository(db),
			Clock:    clock,
		}),
		reviews:  NewReviewService(tx, posts, repository.NewReviewRepository(db)),
		identity: NewIdentityService(users, clock),
	}
}

func (e *testEnv) user(t *testing.T) *models.User {
	return testutil.CreateUser(t, e.db)
}

func (e *testEnv) post(t *testing.T, author uuid.UUID, mutate ...func(*models.Post)) *models.Post {
	return testutil.CreatePost(t, e.db, author, mutate...)
}

func (e *testEnv) reloadUser(t *testing.T, id uuid.UUID) *models.User {
	t.Helper()
	var u models.User
	require.NoError(t, e.db.First(&u, "id = ?", id).Error)
	return &u
}

func (e *testEnv) reloadPost(t *testing.T, id uuid.UUID) *models.Post {
	t.Helper()
	var p models.Post
	require.NoError(t, e.db.First(&p, "id = ?", id).Error)
	return &p
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, models.ErrorCode(err), "unexpected error: %v", err)
}

var bg = context.Background()
