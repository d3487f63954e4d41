package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scoop_backend/internal/model"
	"scoop_backend/internal/repository"
)

// ScoopKeyPrefix is the object folder scoop media must be uploaded to.
const ScoopKeyPrefix = "scoops/"

// ScoopService manages 24h ephemeral posts. A scoop is treated as gone once
// its lifetime has passed, whether or not it was purged yet.
type ScoopService struct {
	scoopRepo     repository.ScoopRepository // nil when scoops are disabled
	relationships *RelationshipService
	users         *UserService
	visibility    *VisibilityService
	objects       ObjectStore
	fanout        int
	now           func() time.Time
	logger        *zap.Logger
}

func NewScoopService(
	scoopRepo repository.ScoopRepository,
	relationships *RelationshipService,
	users *UserService,
	visibility *VisibilityService,
	objects ObjectStore,
	fanout int,
	logger *zap.Logger,
) *ScoopService {
	if fanout <= 0 {
		fanout = 8
	}
	return &ScoopService{
		scoopRepo:     scoopRepo,
		relationships: relationships,
		users:         users,
		visibility:    visibility,
		objects:       objects,
		fanout:        fanout,
		now:           func() time.Time { return time.Now().UTC() },
		logger:        logger.Named("scoops"),
	}
}

func (s *ScoopService) Enabled() bool { return s != nil && s.scoopRepo != nil }

func (s *ScoopService) Create(ctx context.Context, userID string, req model.CreateScoopRequest) (*model.Scoop, error) {
	if !s.Enabled() {
		return nil, model.ErrScoopsDisabled
	}
	key := strings.TrimSpace(req.MediaKey)
	if !strings.HasPrefix(key, ScoopKeyPrefix) || len(key) == len(ScoopKeyPrefix) {
		return nil, model.ErrInvalidScoopKey
	}
	if req.MediaType != model.ScoopMediaImage && req.MediaType != model.ScoopMediaVideo {
		return nil, model.Validationf("mediaType must be image or video")
	}

	author, err := s.users.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	scoop := &model.Scoop{
		ID:           uuid.NewString(),
		UserID:       userID,
		Handle:       author.Handle,
		AvatarKey:    author.AvatarKey,
		MediaKey:     key,
		MediaType:    req.MediaType,
		Caption:      strings.TrimSpace(req.Caption),
		TextOverlays: req.TextOverlays,
		CreatedAt:    now,
		ExpiresAt:    now.Add(model.ScoopLifetime),
	}
	if err := s.scoopRepo.Create(ctx, scoop); err != nil {
		return nil, err
	}
	s.logger.Info("scoop created", zap.String("scoop_id", scoop.ID), zap.String("user_id", userID))
	return scoop, nil
}

// Feed returns live scoops of the viewer and everyone they follow, grouped by
// author. Groups are ordered by their newest scoop, the viewer's own first.
func (s *ScoopService) Feed(ctx context.Context, viewerID string) (*model.ScoopFeedResponse, error) {
	if !s.Enabled() {
		return nil, model.ErrScoopsDisabled
	}
	now := s.now()

	following, err := s.relationships.FollowingIDs(ctx, viewerID)
	if err != nil {
		s.logger.Warn("follow lookup failed, showing own scoops only", zap.String("viewer_id", viewerID), zap.Error(err))
	}
	authors := dedupe(append([]string{viewerID}, following...))

	blocked, err := s.relationships.BlockSet(ctx, viewerID)
	if err != nil {
		s.logger.Warn("block set lookup failed, scoops unfiltered", zap.String("viewer_id", viewerID), zap.Error(err))
	}

	results := make([][]model.Scoop, len(authors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for i, authorID := range authors {
		if _, skip := blocked[authorID]; skip {
			continue
		}
		g.Go(func() error {
			scoops, err := s.scoopRepo.ListByAuthor(gctx, authorID, now.Add(-model.ScoopLifetime))
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("scoop sub-query failed", zap.String("author_id", authorID), zap.Error(err))
				return nil
			}
			results[i] = scoops
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var ids []string
	groups := make([]model.ScoopGroup, 0, len(authors))
	for i, scoops := range results {
		live := scoops[:0:0]
		for _, sc := range scoops {
			if !sc.IsExpired(now) {
				live = append(live, sc)
			}
		}
		if len(live) == 0 {
			continue
		}
		sort.SliceStable(live, func(a, b int) bool { return live[a].CreatedAt.Before(live[b].CreatedAt) })
		groups = append(groups, model.ScoopGroup{
			Author: model.UserSummary{ID: authors[i], Handle: live[0].Handle, AvatarKey: live[0].AvatarKey},
			Scoops: live,
		})
		ids = append(ids, authors[i])
	}

	sort.SliceStable(groups, func(a, b int) bool {
		if (groups[a].Author.ID == viewerID) != (groups[b].Author.ID == viewerID) {
			return groups[a].Author.ID == viewerID
		}
		return newest(groups[a]).After(newest(groups[b]))
	})

	sums, err := s.users.ResolveSummaries(ctx, ids)
	if err != nil {
		s.logger.Warn("scoop author hydration failed", zap.Error(err))
	}
	for i := range groups {
		if sum, ok := sums[groups[i].Author.ID]; ok {
			groups[i].Author = sum
		}
	}
	return &model.ScoopFeedResponse{Groups: groups}, nil
}

func newest(g model.ScoopGroup) time.Time {
	return g.Scoops[len(g.Scoops)-1].CreatedAt
}

// live loads a scoop that has not expired.
func (s *ScoopService) live(ctx context.Context, scoopID string) (*model.Scoop, error) {
	scoop, err := s.scoopRepo.Get(ctx, scoopID)
	if err != nil {
		return nil, err
	}
	if scoop.IsExpired(s.now()) {
		return nil, model.ErrScoopNotFound
	}
	return scoop, nil
}

// View records one view per viewer. The author's own views are not counted.
func (s *ScoopService) View(ctx context.Context, viewerID, scoopID string) (*model.ScoopViewResponse, error) {
	if !s.Enabled() {
		return nil, model.ErrScoopsDisabled
	}
	scoop, err := s.live(ctx, scoopID)
	if err != nil {
		return nil, err
	}
	if scoop.UserID == viewerID {
		return &model.ScoopViewResponse{Recorded: false, ViewCount: scoop.ViewCount}, nil
	}
	ok, err := s.visibility.CanViewContent(ctx, viewerID, scoop.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrProfilePrivate
	}

	viewer := model.ScoopViewer{UserID: viewerID, ViewedAt: s.now()}
	if u, err := s.users.GetByID(ctx, viewerID); err == nil {
		viewer.Handle = u.Handle
	}
	added, err := s.scoopRepo.AddViewer(ctx, scoopID, viewer)
	if err != nil {
		return nil, err
	}
	if !added {
		return &model.ScoopViewResponse{Recorded: false, ViewCount: scoop.ViewCount}, nil
	}
	count, err := s.scoopRepo.IncrementViews(ctx, scoopID)
	if err != nil {
		// the viewer row is the record of truth; the counter is display only
		s.logger.Warn("scoop view counter failed", zap.String("scoop_id", scoopID), zap.Error(err))
		count = scoop.ViewCount + 1
	}
	return &model.ScoopViewResponse{Recorded: true, ViewCount: count}, nil
}

// Viewers lists who saw the scoop, for its author only.
func (s *ScoopService) Viewers(ctx context.Context, userID, scoopID string) (*model.UserListResponse, error) {
	if !s.Enabled() {
		return nil, model.ErrScoopsDisabled
	}
	scoop, err := s.scoopRepo.Get(ctx, scoopID)
	if err != nil {
		return nil, err
	}
	if scoop.UserID != userID {
		return nil, model.ErrNotScoopOwner
	}
	viewers, err := s.scoopRepo.ListViewers(ctx, scoopID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(viewers, func(a, b int) bool { return viewers[a].ViewedAt.After(viewers[b].ViewedAt) })

	ids := make([]string, 0, len(viewers))
	for _, v := range viewers {
		ids = append(ids, v.UserID)
	}
	sums, err := s.users.ResolveSummaries(ctx, ids)
	if err != nil {
		s.logger.Warn("viewer hydration failed", zap.String("scoop_id", scoopID), zap.Error(err))
	}
	users := make([]model.UserSummary, 0, len(viewers))
	for _, v := range viewers {
		sum, ok := sums[v.UserID]
		if !ok {
			sum = model.UserSummary{ID: v.UserID, Handle: v.Handle}
		}
		users = append(users, sum)
	}
	return &model.UserListResponse{Users: users, Count: len(users)}, nil
}

func (s *ScoopService) Delete(ctx context.Context, userID, scoopID string) error {
	if !s.Enabled() {
		return model.ErrScoopsDisabled
	}
	scoop, err := s.scoopRepo.Get(ctx, scoopID)
	if err != nil {
		return err
	}
	if scoop.UserID != userID {
		return model.ErrNotScoopOwner
	}
	if err := s.scoopRepo.Delete(ctx, scoop); err != nil {
		return err
	}
	s.deleteMedia(ctx, scoop).Log(s.logger, zap.String("scoop_id", scoopID))
	return nil
}

func (s *ScoopService) deleteMedia(ctx context.Context, scoop *model.Scoop) model.Outcome {
	if s.objects == nil {
		return model.Skip("scoop_media")
	}
	return model.Failed("scoop_media", s.objects.Delete(ctx, scoop.MediaKey))
}

// Purge physically removes scoops that expired before now. Reads never depend
// on it having run.
func (s *ScoopService) Purge(ctx context.Context, now time.Time) (int, error) {
	if !s.Enabled() {
		return 0, model.ErrScoopsDisabled
	}
	all, err := s.scoopRepo.ListAll(ctx, 0)
	if err != nil {
		return 0, err
	}
	purged := 0
	var errs []error
	for i := range all {
		if !all[i].IsExpired(now) {
			continue
		}
		if err := s.scoopRepo.Delete(ctx, &all[i]); err != nil {
			errs = append(errs, err)
			continue
		}
		s.deleteMedia(ctx, &all[i]).Log(s.logger, zap.String("scoop_id", all[i].ID))
		purged++
	}
	s.logger.Info("expired scoops purged", zap.Int("purged", purged), zap.Int("scanned", len(all)), zap.Int("failed", len(errs)))
	return purged, errors.Join(errs...)
}

// DeleteAllByUser removes every scoop userID posted, expired or not.
func (s *ScoopService) DeleteAllByUser(ctx context.Context, userID string) model.Outcome {
	const step = "scoops"
	if !s.Enabled() {
		return model.Skip(step)
	}
	scoops, err := s.scoopRepo.ListByAuthor(ctx, userID, time.Unix(0, 0))
	if err != nil {
		return model.Failed(step, err)
	}
	var errs []error
	for i := range scoops {
		if err := s.scoopRepo.Delete(ctx, &scoops[i]); err != nil {
			errs = append(errs, err)
			continue
		}
		s.deleteMedia(ctx, &scoops[i]).Log(s.logger, zap.String("scoop_id", scoops[i].ID))
	}
	return model.Failed(step, errors.Join(errs...))
}
