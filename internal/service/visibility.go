package service

import (
	"context"
	"slices"

	"scoop_backend/internal/model"
	"scoop_backend/internal/repository"
)

// VisibilityService answers "may the viewer see or comment on this".
// Profiles are private by default: only the owner and followers see content.
type VisibilityService struct {
	relationships *RelationshipService
	users         *UserService
	commentRepo   repository.CommentRepository
}

func NewVisibilityService(relationships *RelationshipService, users *UserService, commentRepo repository.CommentRepository) *VisibilityService {
	return &VisibilityService{relationships: relationships, users: users, commentRepo: commentRepo}
}

// CanViewContent is true for the owner, and for a follower when no block
// exists between the two.
func (s *VisibilityService) CanViewContent(ctx context.Context, viewerID, ownerID string) (bool, error) {
	if viewerID == ownerID {
		return true, nil
	}
	blocked, err := s.relationships.HasBlockBetween(ctx, viewerID, ownerID)
	if err != nil || blocked {
		return false, err
	}
	return s.relationships.IsFollowing(ctx, viewerID, ownerID)
}

// CanComment is true when the viewer owns the post, follows its author, is
// mentioned in its text or already commented on it. The last clause keeps a
// thread open after a follow lapses.
func (s *VisibilityService) CanComment(ctx context.Context, viewerID string, post *model.Post) (bool, error) {
	if viewerID == post.UserID {
		return true, nil
	}
	blocked, err := s.relationships.HasBlockBetween(ctx, viewerID, post.UserID)
	if err != nil || blocked {
		return false, err
	}

	following, err := s.relationships.IsFollowing(ctx, viewerID, post.UserID)
	if err != nil || following {
		return following, err
	}

	if mentions := ExtractMentions(post.Text); len(mentions) > 0 {
		viewer, err := s.users.GetByID(ctx, viewerID)
		if err != nil && !model.IsUserNotFound(err) {
			return false, err
		}
		if viewer != nil && viewer.Handle != "" && slices.Contains(mentions, viewer.Handle) {
			return true, nil
		}
	}

	comments, err := s.commentRepo.ListByPost(ctx, post.ID, 0)
	if err != nil {
		return false, err
	}
	for _, c := range comments {
		if c.UserID == viewerID {
			return true, nil
		}
	}
	return false, nil
}
