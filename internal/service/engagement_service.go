package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"wanderfeed/internal/middleware"
	"wanderfeed/internal/models"
	"wanderfeed/internal/observability"
	"wanderfeed/internal/repository"
	"wanderfeed/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// trendingWindow bounds how old a non-featured post may be to trend.
const trendingWindow = 7 * 24 * time.Hour

// EngagementService owns follows, likes, saves, post creation and the feed.
type EngagementService struct {
	tx       repository.Transactor
	users    repository.UserRepository
	posts    repository.PostRepository
	follows  repository.FollowRepository
	likes    repository.LikeRepository
	saves    repository.SaveRepository
	counters repository.CounterRepository
	now      Clock
}

// EngagementDeps are the collaborators of EngagementService.
type EngagementDeps struct {
	Tx       repository.Transactor
	Users    repository.UserRepository
	Posts    repository.PostRepository
	Follows  repository.FollowRepository
	Likes    repository.LikeRepository
	Saves    repository.SaveRepository
	Counters repository.CounterRepository
	Clock    Clock
}

func NewEngagementService(d EngagementDeps) *EngagementService {
	now := d.Clock
	if now == nil {
		now = systemClock
	}
	return &EngagementService{
		tx:       d.Tx,
		users:    d.Users,
		posts:    d.Posts,
		follows:  d.Follows,
		likes:    d.Likes,
		saves:    d.Saves,
		counters: d.Counters,
		now:      now,
	}
}

type FollowResult struct {
	Action         models.ToggleAction `json:"action"`
	FollowersCount int64               `json:"followers_count"`
}

type LikeResult struct {
	Action     models.ToggleAction `json:"action"`
	LikesCount int64               `json:"likes_count"`
}

// SaveOptions carries the optional organizational metadata of a save.
type SaveOptions struct {
	CollectionName string     `json:"collection_name" validate:"max=120"`
	Notes          string     `json:"notes" validate:"max=2000"`
	TripPlanID     *uuid.UUID `json:"trip_plan_id"`
}

type SaveResult struct {
	Action     models.ToggleAction `json:"action"`
	SavesCount int64               `json:"saves_count"`
	Collection *string             `json:"collection_name,omitempty"`
}

type FeedPage struct {
	Items  []models.FeedItem `json:"items"`
	Page   int               `json:"page"`
	Limit  int               `json:"limit"`
	Source models.FeedSource `json:"source"`
}

// CreatePostInput is the author-supplied content of a new post.
type CreatePostInput struct {
	Caption      string              `json:"caption" validate:"required,max=2200"`
	Images       []string            `json:"images" validate:"max=10,dive,required"`
	LocationName string              `json:"location_name" validate:"required,max=255"`
	Coordinates  *models.Coordinates `json:"location_coordinates"`
	Country      string              `json:"country" validate:"required,max=120"`
	City         string              `json:"city" validate:"max=120"`
	PostType     string              `json:"post_type" validate:"required,post_type"`
	Category     string              `json:"category" validate:"required,max=64"`
	Tags         []string            `json:"tags" validate:"max=30,dive,max=50"`
	BookingInfo  *models.BookingInfo `json:"booking_info"`
	PriceRange   string              `json:"price_range" validate:"max=16"`
	IsPublished  *bool               `json:"is_published"`
}

// SavedPostItem is a saved post with the viewer's save metadata.
type SavedPostItem struct {
	models.FeedItem
	SavedInfo models.SavedPost `json:"saved_info"`
}

// ReconcileReport summarizes one reconciliation run.
type ReconcileReport struct {
	Fixed    map[string]int64 `json:"fixed"`
	Total    int64            `json:"total"`
	Duration time.Duration    `json:"duration"`
}

// edgeOps adapts one edge repository to toggleEdge.
type edgeOps struct {
	find   func(ctx context.Context) (*models.Edge, error)
	insert func(ctx context.Context) (bool, error)
	set    func(ctx context.Context, id uuid.UUID, state models.EdgeState) error
}

var errEdgeVanished = errors.New("edge missing after conflicting insert")

// toggleEdge flips an existing edge or creates it active. A first-sight
// insert that loses a race re-reads the winner's row under lock and flips it.
// It must run inside a transaction.
func toggleEdge(ctx context.Context, ops edgeOps) (models.EdgeState, error) {
	edge, err := ops.find(ctx)
	if err != nil {
		return "", err
	}
	if edge == nil {
		inserted, err := ops.insert(ctx)
		if err != nil {
			return "", err
		}
		if inserted {
			return models.EdgeActive, nil
		}
		if edge, err = ops.find(ctx); err != nil {
			return "", err
		}
		if edge == nil {
			return "", errEdgeVanished
		}
	}
	next := edge.State.Toggle()
	if err := ops.set(ctx, edge.ID, next); err != nil {
		return "", err
	}
	return next, nil
}

// ToggleFollow follows or unfollows followingID and recounts both users.
func (s *EngagementService) ToggleFollow(ctx context.Context, followerID, followingID uuid.UUID) (*FollowResult, error) {
	if followerID == followingID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}

	var result FollowResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.LockForUpdate(ctx, followerID, followingID); err != nil {
			return err
		}
		state, err := toggleEdge(ctx, edgeOps{
			find: func(ctx context.Context) (*models.Edge, error) {
				f, err := s.follows.FindForUpdate(ctx, followerID, followingID)
				if f == nil {
					return nil, err
				}
				return &f.Edge, nil
			},
			insert: func(ctx context.Context) (bool, error) {
				return s.follows.InsertIfAbsent(ctx, &models.Follow{FollowerID: followerID, FollowingID: followingID})
			},
			set: s.follows.SetState,
		})
		if err != nil {
			return err
		}

		result.Action = models.ActionUnfollowed
		if state.IsActive() {
			result.Action = models.ActionFollowed
		}
		if result.FollowersCount, err = s.users.RecountFollowers(ctx, followingID); err != nil {
			return err
		}
		_, err = s.users.RecountFollowing(ctx, followerID)
		return err
	})
	if err != nil {
		return nil, wrapErr(err)
	}

	s.users.InvalidateCache(ctx, followerID, followingID)
	observability.ToggleTotal.WithLabelValues("follow", string(result.Action)).Inc()
	middleware.Logger.InfoContext(ctx, "follow toggled",
		slog.String("following_id", followingID.String()),
		slog.String("action", string(result.Action)),
	)
	return &result, nil
}

// ToggleLike likes or unlikes a post and recounts its likes.
func (s *EngagementService) ToggleLike(ctx context.Context, userID, postID uuid.UUID) (*LikeResult, error) {
	var result LikeResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		post, err := s.posts.LockForUpdate(ctx, postID)
		if err != nil {
			return err
		}
		if post.UserID == userID {
			return models.NewValidationError("You cannot like your own post")
		}
		state, err := toggleEdge(ctx, edgeOps{
			find: func(ctx context.Context) (*models.Edge, error) {
				l, err := s.likes.FindForUpdate(ctx, userID, postID)
				if l == nil {
					return nil, err
				}
				return &l.Edge, nil
			},
			insert: func(ctx context.Context) (bool, error) {
				return s.likes.InsertIfAbsent(ctx, &models.Like{UserID: userID, PostID: postID})
			},
			set: s.likes.SetState,
		})
		if err != nil {
			return err
		}

		result.Action = models.ActionUnliked
		if state.IsActive() {
			result.Action = models.ActionLiked
		}
		result.LikesCount, err = s.posts.RecountLikes(ctx, postID)
		return err
	})
	if err != nil {
		return nil, wrapErr(err)
	}

	observability.ToggleTotal.WithLabelValues("like", string(result.Action)).Inc()
	return &result, nil
}

// locationCategory derives the grouping label of a first-time save.
func locationCategory(p *models.Post) *string {
	if p.City != nil && strings.TrimSpace(*p.City) != "" {
		return nonEmpty(strings.TrimSpace(*p.City))
	}
	if c := strings.TrimSpace(p.Country); c != "" {
		return &c
	}
	return nonEmpty(strings.TrimSpace(p.LocationName))
}

// ToggleSave saves or unsaves a post. Reactivation only overwrites the
// collection, notes and trip plan that are supplied.
func (s *EngagementService) ToggleSave(ctx context.Context, userID, postID uuid.UUID, opts SaveOptions) (*SaveResult, error) {
	if err := validation.Struct(opts); err != nil {
		return nil, err
	}
	opts.CollectionName = strings.TrimSpace(opts.CollectionName)
	opts.Notes = strings.TrimSpace(opts.Notes)

	var result SaveResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		post, err := s.posts.LockForUpdate(ctx, postID)
		if err != nil {
			return err
		}

		save, err := s.saves.FindForUpdate(ctx, userID, postID)
		if err != nil {
			return err
		}
		inserted := false
		if save == nil {
			fresh := &models.SavedPost{
				UserID:           userID,
				PostID:           postID,
				CollectionName:   nonEmpty(opts.CollectionName),
				LocationCategory: locationCategory(post),
				PersonalNotes:    nonEmpty(opts.Notes),
				TripPlanID:       opts.TripPlanID,
			}
			if inserted, err = s.saves.InsertIfAbsent(ctx, fresh); err != nil {
				return err
			}
			if inserted {
				save = fresh
			} else if save, err = s.saves.FindForUpdate(ctx, userID, postID); err != nil {
				return err
			} else if save == nil {
				return errEdgeVanished
			}
		}
		if !inserted {
			applySave(save, opts)
			if err := s.saves.Update(ctx, save); err != nil {
				return err
			}
		}

		result.Action = models.ActionUnsaved
		if save.State.IsActive() {
			result.Action = models.ActionSaved
		}
		result.Collection = save.CollectionName
		result.SavesCount, err = s.posts.RecountSaves(ctx, postID)
		return err
	})
	if err != nil {
		return nil, wrapErr(err)
	}

	observability.ToggleTotal.WithLabelValues("save", string(result.Action)).Inc()
	return &result, nil
}

// applySave toggles an existing save and, when it becomes active, applies
// the supplied metadata.
func applySave(save *models.SavedPost, opts SaveOptions) {
	save.State = save.State.Toggle()
	if !save.State.IsActive() {
		return
	}
	if opts.CollectionName != "" {
		save.CollectionName = &opts.CollectionName
	}
	if opts.Notes != "" {
		save.PersonalNotes = &opts.Notes
	}
	if opts.TripPlanID != nil {
		save.TripPlanID = opts.TripPlanID
	}
}

// ComposeFeed returns posts by followed users, or the trending set when the
// user follows nobody.
func (s *EngagementService) ComposeFeed(ctx context.Context, userID uuid.UUID, page, limit int) (*FeedPage, error) {
	p := NewPage(page, limit)
	ctx, span := observability.StartSpan(ctx, "feed.compose", attribute.Int("page", p.Page))
	defer span.End()

	following, err := s.follows.CountActiveFollowing(ctx, userID)
	if err != nil {
		span.Fail(err)
		return nil, wrapErr(err)
	}

	var (
		posts  []models.Post
		source models.FeedSource
	)
	if following == 0 {
		source = models.FeedSourceTrending
		posts, err = s.posts.ListTrending(ctx, s.now().Add(-trendingWindow), p.Limit, p.Offset())
	} else {
		source = models.FeedSourceFollowing
		posts, err = s.posts.ListFollowingFeed(ctx, userID, p.Limit, p.Offset())
	}
	if err != nil {
		return nil, wrapErr(err)
	}

	items, err := s.enrich(ctx, userID, posts)
	if err != nil {
		span.Fail(err)
		return nil, wrapErr(err)
	}
	span.Set(attribute.String("feed.source", string(source)), attribute.Int("feed.items", len(items)))
	observability.FeedRequestsTotal.WithLabelValues(string(source)).Inc()
	return &FeedPage{Items: items, Page: p.Page, Limit: p.Limit, Source: source}, nil
}

// enrich attaches author profiles and the viewer's active like/save flags.
// viewerID may be uuid.Nil for anonymous reads.
func (s *EngagementService) enrich(ctx context.Context, viewerID uuid.UUID, posts []models.Post) ([]models.FeedItem, error) {
	items := make([]models.FeedItem, 0, len(posts))
	if len(posts) == 0 {
		return items, nil
	}

	postIDs := make([]uuid.UUID, 0, len(posts))
	authorIDs := make([]uuid.UUID, 0, len(posts))
	for i := range posts {
		postIDs = append(postIDs, posts[i].ID)
		authorIDs = append(authorIDs, posts[i].UserID)
	}

	authors, err := s.users.GetByIDs(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	liked := map[uuid.UUID]bool{}
	saved := map[uuid.UUID]bool{}
	if viewerID != uuid.Nil {
		if liked, err = s.likes.ActivePostIDs(ctx, viewerID, postIDs); err != nil {
			return nil, err
		}
		if saved, err = s.saves.ActivePostIDs(ctx, viewerID, postIDs); err != nil {
			return nil, err
		}
	}

	for i := range posts {
		items = append(items, models.FeedItem{
			Post:    posts[i],
			Author:  authorProfile(authors[posts[i].UserID]),
			IsLiked: liked[posts[i].ID],
			IsSaved: saved[posts[i].ID],
		})
	}
	return items, nil
}

// CreatePost stores a new post and recounts the author's posts.
func (s *EngagementService) CreatePost(ctx context.Context, userID uuid.UUID, in CreatePostInput) (*models.Post, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	zero := 0.0
	post := &models.Post{
		UserID:              userID,
		Caption:             strings.TrimSpace(in.Caption),
		Images:              models.StringList(in.Images),
		LocationName:        strings.TrimSpace(in.LocationName),
		LocationCoordinates: in.Coordinates,
		Country:             strings.TrimSpace(in.Country),
		City:                nonEmpty(strings.TrimSpace(in.City)),
		PostType:            models.PostType(in.PostType),
		Category:            in.Category,
		Tags:                models.StringList(in.Tags),
		BookingInfo:         in.BookingInfo,
		ExperienceRating:    &zero,
		PriceRange:          nonEmpty(in.PriceRange),
		IsPublished:         in.IsPublished == nil || *in.IsPublished,
	}
	if err := s.insertPost(ctx, post); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "post created", slog.String("post_id", post.ID.String()))
	return post, nil
}

// insertPost creates post under a lock on its author and recounts the
// author's posts_count in the same transaction.
func (s *EngagementService) insertPost(ctx context.Context, post *models.Post) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.users.LockForUpdate(ctx, post.UserID); err != nil {
			return err
		}
		if err := s.posts.Create(ctx, post); err != nil {
			return err
		}
		_, err := s.users.RecountPosts(ctx, post.UserID)
		return err
	})
	if err != nil {
		return wrapErr(err)
	}
	s.users.InvalidateCache(ctx, post.UserID)
	return nil
}

// GetPost returns one post enriched for viewerID. Unpublished posts are
// visible to their author only.
func (s *EngagementService) GetPost(ctx context.Context, viewerID, postID uuid.UUID) (*models.FeedItem, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, wrapErr(err)
	}
	if !post.IsPublished && post.UserID != viewerID {
		return nil, models.NewNotFoundError("Post", postID)
	}
	items, err := s.enrich(ctx, viewerID, []models.Post{*post})
	if err != nil {
		return nil, wrapErr(err)
	}
	return &items[0], nil
}

// GetProfile returns a user's public profile.
func (s *EngagementService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, wrapErr(err)
	}
	if user.IsDeactivated() {
		return nil, models.NewNotFoundError("User", userID)
	}
	return user, nil
}

func (s *EngagementService) ListUserPosts(ctx context.Context, viewerID, authorID uuid.UUID, page, limit int) ([]models.FeedItem, error) {
	if _, err := s.GetProfile(ctx, authorID); err != nil {
		return nil, err
	}
	p := NewPage(page, limit)
	posts, err := s.posts.ListByUser(ctx, authorID, p.Limit, p.Offset())
	if err != nil {
		return nil, wrapErr(err)
	}
	items, err := s.enrich(ctx, viewerID, posts)
	return items, wrapErr(err)
}

// ListSavedPosts lists the user's active saves, newest first, optionally
// filtered by collection or location category.
func (s *EngagementService) ListSavedPosts(ctx context.Context, userID uuid.UUID, filter repository.SavedFilter, page, limit int) ([]SavedPostItem, error) {
	p := NewPage(page, limit)
	saves, err := s.saves.ListActive(ctx, userID, filter, p.Limit, p.Offset())
	if err != nil {
		return nil, wrapErr(err)
	}

	ids := make([]uuid.UUID, 0, len(saves))
	for _, sv := range saves {
		ids = append(ids, sv.PostID)
	}
	posts, err := s.posts.ListByIDs(ctx, ids)
	if err != nil {
		return nil, wrapErr(err)
	}
	items, err := s.enrich(ctx, userID, posts)
	if err != nil {
		return nil, wrapErr(err)
	}
	byPost := make(map[uuid.UUID]models.FeedItem, len(items))
	for _, it := range items {
		byPost[it.ID] = it
	}

	out := make([]SavedPostItem, 0, len(saves))
	for _, sv := range saves {
		item, ok := byPost[sv.PostID]
		if !ok {
			continue
		}
		out = append(out, SavedPostItem{FeedItem: item, SavedInfo: sv})
	}
	return out, nil
}

func (s *EngagementService) ListSavedCollections(ctx context.Context, userID uuid.UUID) ([]models.CollectionSummary, error) {
	out, err := s.saves.Collections(ctx, userID)
	if err != nil {
		return nil, wrapErr(err)
	}
	if out == nil {
		out = []models.CollectionSummary{}
	}
	return out, nil
}

func (s *EngagementService) ListSavedLocations(ctx context.Context, userID uuid.UUID) ([]models.LocationSummary, error) {
	out, err := s.saves.Locations(ctx, userID)
	if err != nil {
		return nil, wrapErr(err)
	}
	if out == nil {
		out = []models.LocationSummary{}
	}
	return out, nil
}

func (s *EngagementService) ListFollowers(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.AuthorProfile, error) {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	p := NewPage(page, limit)
	users, err := s.users.ListFollowers(ctx, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, wrapErr(err)
	}
	return authorProfiles(users), nil
}

func (s *EngagementService) ListFollowing(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.AuthorProfile, error) {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	p := NewPage(page, limit)
	users, err := s.users.ListFollowing(ctx, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, wrapErr(err)
	}
	return authorProfiles(users), nil
}

// ReconcileCounters rewrites every counter that drifted from its source rows.
func (s *EngagementService) ReconcileCounters(ctx context.Context) (*ReconcileReport, error) {
	start := s.now()
	fixed, err := s.counters.Reconcile(ctx)
	if err != nil {
		return nil, wrapErr(err)
	}

	report := &ReconcileReport{Fixed: fixed, Duration: s.now().Sub(start)}
	for name, n := range fixed {
		report.Total += n
		if n > 0 {
			observability.CounterDriftTotal.WithLabelValues(name).Add(float64(n))
		}
	}
	if report.Total > 0 {
		middleware.Logger.WarnContext(ctx, "counter drift repaired",
			slog.Int64("rows", report.Total),
			slog.Any("fixed", fixed),
		)
	}
	return report, nil
}
