package service

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"scoop_backend/internal/model"
	"scoop_backend/internal/repository"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50
)

// ProfileService serves the public profile surfaces. Discovery is open; the
// lists behind a profile follow the visibility policy.
type ProfileService struct {
	users         *UserService
	handleRepo    repository.HandleRepository
	relationships *RelationshipService
	visibility    *VisibilityService
	logger        *zap.Logger
}

func NewProfileService(
	users *UserService,
	handleRepo repository.HandleRepository,
	relationships *RelationshipService,
	visibility *VisibilityService,
	logger *zap.Logger,
) *ProfileService {
	return &ProfileService{
		users:         users,
		handleRepo:    handleRepo,
		relationships: relationships,
		visibility:    visibility,
		logger:        logger.Named("profiles"),
	}
}

// GetProfile returns the profile header for handle. Counts and relationship
// flags are enrichment: a failed lookup leaves them zero.
func (s *ProfileService) GetProfile(ctx context.Context, viewerID, handle string) (*model.ProfileResponse, error) {
	ownerID, err := s.users.ResolveHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	owner, err := s.users.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	resp := &model.ProfileResponse{User: owner.Summary(), IsSelf: viewerID == ownerID}
	fields := []zap.Field{zap.String("viewer_id", viewerID), zap.String("owner_id", ownerID)}

	if resp.FollowerCount, err = s.relationships.CountFollowers(ctx, ownerID); err != nil {
		s.logger.Warn("follower count failed", append(fields, zap.Error(err))...)
	}
	if resp.FollowingCount, err = s.relationships.CountFollowing(ctx, ownerID); err != nil {
		s.logger.Warn("following count failed", append(fields, zap.Error(err))...)
	}
	if !resp.IsSelf {
		if resp.IsFollowing, err = s.relationships.IsFollowing(ctx, viewerID, ownerID); err != nil {
			s.logger.Warn("follow check failed", append(fields, zap.Error(err))...)
		}
		if !resp.IsFollowing {
			if resp.RequestPending, err = s.relationships.HasPendingRequest(ctx, viewerID, ownerID); err != nil {
				s.logger.Warn("pending request check failed", append(fields, zap.Error(err))...)
			}
		}
	}
	if resp.CanView, err = s.visibility.CanViewContent(ctx, viewerID, ownerID); err != nil {
		s.logger.Warn("visibility check failed", append(fields, zap.Error(err))...)
	}
	return resp, nil
}

// gate resolves handle and checks the viewer may see the owner's content.
func (s *ProfileService) gate(ctx context.Context, viewerID, handle string) (string, error) {
	ownerID, err := s.users.ResolveHandle(ctx, handle)
	if err != nil {
		return "", err
	}
	ok, err := s.visibility.CanViewContent(ctx, viewerID, ownerID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", model.ErrProfilePrivate
	}
	return ownerID, nil
}

func (s *ProfileService) Followers(ctx context.Context, viewerID, handle string) (*model.UserListResponse, error) {
	ownerID, err := s.gate(ctx, viewerID, handle)
	if err != nil {
		return nil, err
	}
	list, err := s.relationships.ListFollowers(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.withoutBlocked(ctx, viewerID, list), nil
}

func (s *ProfileService) Following(ctx context.Context, viewerID, handle string) (*model.UserListResponse, error) {
	ownerID, err := s.gate(ctx, viewerID, handle)
	if err != nil {
		return nil, err
	}
	list, err := s.relationships.ListFollowing(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.withoutBlocked(ctx, viewerID, list), nil
}

// OwnerID resolves handle for the profile post listing, which gates itself.
func (s *ProfileService) OwnerID(ctx context.Context, handle string) (string, error) {
	return s.users.ResolveHandle(ctx, handle)
}

// withoutBlocked drops users with a block to or from the viewer. If the block
// set cannot be read the list is returned unfiltered.
func (s *ProfileService) withoutBlocked(ctx context.Context, viewerID string, list *model.UserListResponse) *model.UserListResponse {
	blocked, err := s.relationships.BlockSet(ctx, viewerID)
	if err != nil {
		s.logger.Warn("block set lookup failed, list unfiltered", zap.String("viewer_id", viewerID), zap.Error(err))
	}
	if len(blocked) == 0 {
		return list
	}
	kept := list.Users[:0]
	for _, u := range list.Users {
		if _, skip := blocked[u.ID]; !skip {
			kept = append(kept, u)
		}
	}
	list.Users = kept
	list.Count = len(kept)
	return list
}

// Search is a handle prefix search. The viewer and anyone with a block
// between them and the viewer are left out.
func (s *ProfileService) Search(ctx context.Context, viewerID, query string, limit int) (*model.UserListResponse, error) {
	prefix := model.NormalizeHandle(query)
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)
	if prefix == "" || strings.ContainsAny(prefix, " \t") {
		return &model.UserListResponse{Users: []model.UserSummary{}}, nil
	}

	// over-fetch so filtering still fills a page
	entries, err := s.handleRepo.SearchPrefix(ctx, prefix, limit*2)
	if err != nil {
		return nil, err
	}

	blocked, err := s.relationships.BlockSet(ctx, viewerID)
	if err != nil {
		s.logger.Warn("block set lookup failed, search unfiltered", zap.String("viewer_id", viewerID), zap.Error(err))
	}

	ids := make([]string, 0, limit)
	for _, e := range entries {
		if e.UserID == viewerID {
			continue
		}
		if _, skip := blocked[e.UserID]; skip {
			continue
		}
		ids = append(ids, e.UserID)
		if len(ids) == limit {
			break
		}
	}

	users, err := s.users.SummaryList(ctx, ids)
	if err != nil {
		s.logger.Warn("search hydration failed", zap.Error(err))
	}
	if len(users) < len(ids) {
		// fall back to the index rows for anything that did not hydrate
		have := make(map[string]struct{}, len(users))
		for _, u := range users {
			have[u.ID] = struct{}{}
		}
		for _, e := range entries {
			if _, ok := have[e.UserID]; ok || !slices.Contains(ids, e.UserID) {
				continue
			}
			users = append(users, model.UserSummary{ID: e.UserID, Handle: e.Handle})
			have[e.UserID] = struct{}{}
		}
	}
	return &model.UserListResponse{Users: users, Count: len(users)}, nil
}
