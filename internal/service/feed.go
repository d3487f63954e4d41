package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scoop_backend/internal/metrics"
	"scoop_backend/internal/model"
	"scoop_backend/internal/repository"
)

const (
	// FeedDefaultLimit is the default number of posts per page
	FeedDefaultLimit = 20

	// FeedMaxLimit is the maximum number of posts per page
	FeedMaxLimit = 100

	// maxRefsPerAuthor bounds one author's sub-query in the fan-out
	maxRefsPerAuthor = 200

	// maxGlobalRefs bounds the global recency fallback
	maxGlobalRefs = 500
)

// Feed scopes
const (
	FeedScopeFollowing = ""
	FeedScopeGlobal    = "global"
)

// Degradation steps reported in FeedResponse.Degraded and metrics.
const (
	degradedFollows   = "follows"
	degradedAuthors   = "author_posts"
	degradedBlocks    = "blocks"
	degradedHydration = "hydration"
	degradedComments  = "comments"
	degradedGlobal    = "global"
	degradedPosts     = "posts"
)

// FeedQuery is the paging input of a feed read.
type FeedQuery struct {
	Limit  int
	Offset int
	Scope  string
}

func (q FeedQuery) normalized() FeedQuery {
	if q.Limit <= 0 {
		q.Limit = FeedDefaultLimit
	}
	if q.Limit > FeedMaxLimit {
		q.Limit = FeedMaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// FeedService assembles feeds. It holds no per-request state; every read fans
// out to the store and merges the results.
type FeedService struct {
	postRepo      repository.PostRepository
	commentRepo   repository.CommentRepository
	relationships *RelationshipService
	users         *UserService
	visibility    *VisibilityService
	fanout        int
	metrics       *metrics.Metrics
	logger        *zap.Logger
}

func NewFeedService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	relationships *RelationshipService,
	users *UserService,
	visibility *VisibilityService,
	fanout int,
	m *metrics.Metrics,
	logger *zap.Logger,
) *FeedService {
	if fanout <= 0 {
		fanout = 8
	}
	return &FeedService{
		postRepo:      postRepo,
		commentRepo:   commentRepo,
		relationships: relationships,
		users:         users,
		visibility:    visibility,
		fanout:        fanout,
		metrics:       m,
		logger:        logger.Named("feed"),
	}
}

// degradation collects the steps that failed softly during one request.
type degradation struct {
	mu    sync.Mutex
	steps []string
}

func (d *degradation) add(step string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.steps {
		if s == step {
			return
		}
	}
	d.steps = append(d.steps, step)
}

// GetFeed returns the viewer's home feed.
//
// Flow:
// 1. Resolve the follow set, always including the viewer
// 2. Fan out one bounded query per author and merge newest first
// 3. Fall back to the global recency index if that yields nothing
// 4. Drop authors with a block in either direction
// 5. Apply offset/limit
// 6. Load the page's posts and hydrate authors and comment previews
//
// Sub-query failures degrade the response (fewer items, missing enrichment)
// instead of failing it.
func (s *FeedService) GetFeed(ctx context.Context, viewerID string, q FeedQuery) (*model.FeedResponse, error) {
	startTime := time.Now()
	q = q.normalized()
	want := q.Offset + q.Limit
	deg := &degradation{}

	var refs []model.PostRef
	source := model.FeedSourceFollowing
	if q.Scope != FeedScopeGlobal {
		following, err := s.relationships.FollowingIDs(ctx, viewerID)
		if err != nil {
			s.logger.Warn("follow set lookup failed, using global feed", zap.String("viewer_id", viewerID), zap.Error(err))
			deg.add(degradedFollows)
		} else {
			authors := dedupe(append([]string{viewerID}, following...))
			refs, err = s.fanOut(ctx, authors, min(want, maxRefsPerAuthor), deg)
			if err != nil {
				return nil, err
			}
		}
	}
	if len(refs) == 0 {
		source = model.FeedSourceGlobal
		global, err := s.postRepo.RecentRefs(ctx, min(want*2, maxGlobalRefs))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("global index read failed, serving empty feed", zap.String("viewer_id", viewerID), zap.Error(err))
			deg.add(degradedGlobal)
			global = nil
		}
		refs = global
	}

	refs = mergeRefs(refs)
	refs = s.filterBlocked(ctx, viewerID, refs, deg)
	page := paginate(refs, q.Offset, q.Limit)

	items, err := s.loadItems(ctx, page, deg)
	if err != nil {
		return nil, err
	}

	s.report(deg)
	s.logger.Debug("feed served",
		zap.String("viewer_id", viewerID), zap.String("source", source), zap.Int("items", len(items)),
		zap.Strings("degraded", deg.steps), zap.Duration("duration", time.Since(startTime)))
	return &model.FeedResponse{Items: items, Source: source, Degraded: deg.steps}, nil
}

// GetUserPosts lists ownerID's posts for viewerID, gated by the visibility policy.
func (s *FeedService) GetUserPosts(ctx context.Context, viewerID, ownerID string, q FeedQuery) (*model.FeedResponse, error) {
	q = q.normalized()
	ok, err := s.visibility.CanViewContent(ctx, viewerID, ownerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrProfilePrivate
	}

	refs, err := s.postRepo.RefsByAuthor(ctx, ownerID, q.Offset+q.Limit)
	if err != nil {
		return nil, err
	}
	deg := &degradation{}
	items, err := s.loadItems(ctx, paginate(mergeRefs(refs), q.Offset, q.Limit), deg)
	if err != nil {
		return nil, err
	}
	s.report(deg)
	return &model.FeedResponse{Items: items, Source: model.FeedSourceProfile, Degraded: deg.steps}, nil
}

// fanOut queries each author's timeline with bounded concurrency. A failed
// sub-query contributes nothing; a cancelled parent context aborts the lot.
func (s *FeedService) fanOut(ctx context.Context, authors []string, perAuthor int, deg *degradation) ([]model.PostRef, error) {
	results := make([][]model.PostRef, len(authors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for i, authorID := range authors {
		g.Go(func() error {
			refs, err := s.postRepo.RefsByAuthor(gctx, authorID, perAuthor)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn("author sub-query failed", zap.String("author_id", authorID), zap.Error(err))
				deg.add(degradedAuthors)
				return nil
			}
			results[i] = refs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []model.PostRef
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, nil
}

// mergeRefs sorts newest first, breaking timestamp ties by id (descending),
// and drops duplicate post ids.
func mergeRefs(refs []model.PostRef) []model.PostRef {
	sort.SliceStable(refs, func(i, j int) bool {
		if !refs[i].CreatedAt.Equal(refs[j].CreatedAt) {
			return refs[i].CreatedAt.After(refs[j].CreatedAt)
		}
		return refs[i].PostID > refs[j].PostID
	})
	out := refs[:0]
	seen := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		if _, dup := seen[r.PostID]; dup {
			continue
		}
		seen[r.PostID] = struct{}{}
		out = append(out, r)
	}
	return out
}

// filterBlocked removes authors with a block edge to or from the viewer. If the
// block set cannot be read completely, whatever was read is still applied.
func (s *FeedService) filterBlocked(ctx context.Context, viewerID string, refs []model.PostRef, deg *degradation) []model.PostRef {
	blocked, err := s.relationships.BlockSet(ctx, viewerID)
	if err != nil {
		s.logger.Warn("block set lookup failed, feed may be unfiltered", zap.String("viewer_id", viewerID), zap.Error(err))
		deg.add(degradedBlocks)
	}
	if len(blocked) == 0 {
		return refs
	}
	out := make([]model.PostRef, 0, len(refs))
	for _, r := range refs {
		if _, skip := blocked[r.AuthorID]; !skip {
			out = append(out, r)
		}
	}
	return out
}

func paginate(refs []model.PostRef, offset, limit int) []model.PostRef {
	if offset >= len(refs) {
		return nil
	}
	return refs[offset:min(offset+limit, len(refs))]
}

// loadItems batch-gets the page's posts, keeping page order. Refs whose post
// is gone (deleted between index and read) are skipped. A failed batch read
// yields an empty page; only a cancelled context is returned as an error.
func (s *FeedService) loadItems(ctx context.Context, page []model.PostRef, deg *degradation) ([]model.FeedItem, error) {
	if len(page) == 0 {
		return []model.FeedItem{}, nil
	}
	ids := make([]string, 0, len(page))
	for _, r := range page {
		ids = append(ids, r.PostID)
	}
	posts, err := s.postRepo.BatchGet(ctx, ids)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("post batch read failed", zap.Int("posts", len(ids)), zap.Error(err))
		deg.add(degradedPosts)
		return []model.FeedItem{}, nil
	}
	byID := make(map[string]model.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	ordered := make([]model.Post, 0, len(page))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return s.hydrate(ctx, ordered, deg), nil
}

// hydrate overrides the author snapshot with live values and attaches comment
// previews. Both steps are best-effort.
func (s *FeedService) hydrate(ctx context.Context, posts []model.Post, deg *degradation) []model.FeedItem {
	items := make([]model.FeedItem, len(posts))
	authorIDs := make([]string, 0, len(posts))
	for i, p := range posts {
		items[i] = model.FeedItem{
			ID:          p.ID,
			UserID:      p.UserID,
			Handle:      p.Handle,
			DisplayName: p.DisplayName,
			AvatarKey:   p.AvatarKey,
			Text:        p.Text,
			Images:      p.Images,
			CreatedAt:   p.CreatedAt,
			Comments:    []model.CommentPreview{},
		}
		if items[i].Images == nil {
			items[i].Images = []model.PostImage{}
		}
		authorIDs = append(authorIDs, p.UserID)
	}

	authors, err := s.users.ResolveSummaries(ctx, authorIDs)
	if err != nil {
		s.logger.Warn("author hydration failed, keeping snapshots", zap.Error(err))
		deg.add(degradedHydration)
	}
	for i := range items {
		if a, ok := authors[items[i].UserID]; ok {
			applySummary(&items[i], a)
		}
	}

	s.attachPreviews(ctx, items, deg)
	return items
}

func applySummary(item *model.FeedItem, a model.UserSummary) {
	if a.Handle != "" {
		item.Handle = a.Handle
	}
	item.AvatarKey = a.AvatarKey
	item.DisplayName = a.DisplayName
}

// attachPreviews loads, per item and concurrently, the comment count and the
// oldest CommentPreviewSize comments, then resolves all commenters in one batch.
func (s *FeedService) attachPreviews(ctx context.Context, items []model.FeedItem, deg *degradation) {
	if len(items) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(s.fanout)
	for i := range items {
		g.Go(func() error {
			comments, err := s.commentRepo.ListByPost(ctx, items[i].ID, 0)
			if err != nil {
				s.logger.Warn("comment preview failed", zap.String("post_id", items[i].ID), zap.Error(err))
				deg.add(degradedComments)
				return nil
			}
			items[i].CommentCount = len(comments)
			previews := make([]model.CommentPreview, 0, model.CommentPreviewSize)
			for j := 0; j < len(comments) && j < model.CommentPreviewSize; j++ {
				previews = append(previews, comments[j].Preview())
			}
			items[i].Comments = previews
			return nil
		})
	}
	_ = g.Wait()

	var commenterIDs []string
	for _, it := range items {
		for _, c := range it.Comments {
			commenterIDs = append(commenterIDs, c.UserID)
		}
	}
	if len(commenterIDs) == 0 {
		return
	}
	commenters, err := s.users.ResolveSummaries(ctx, commenterIDs)
	if err != nil {
		deg.add(degradedHydration)
		return
	}
	for i := range items {
		for j := range items[i].Comments {
			if c, ok := commenters[items[i].Comments[j].UserID]; ok {
				items[i].Comments[j].AvatarKey = c.AvatarKey
				if c.Handle != "" {
					items[i].Comments[j].Handle = c.Handle
				}
			}
		}
	}
}

// HydratePost renders one post like a feed item.
func (s *FeedService) HydratePost(ctx context.Context, post *model.Post) model.FeedItem {
	deg := &degradation{}
	items := s.hydrate(ctx, []model.Post{*post}, deg)
	s.report(deg)
	return items[0]
}

func (s *FeedService) report(deg *degradation) {
	for _, step := range deg.steps {
		s.metrics.FeedDegraded(step)
	}
}
