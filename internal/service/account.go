package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"scoop_backend/internal/model"
)

// CredentialDeleter removes the login at the identity provider.
type CredentialDeleter interface {
	DeleteUser(ctx context.Context, userID string) error
}

// AccountService deletes an account and everything it owns. Steps run
// independently; a failed step is reported and the rest still run.
type AccountService struct {
	users         *UserService
	posts         *PostService
	comments      *CommentService
	reactions     *ReactionService
	relationships *RelationshipService
	notifications *NotificationService
	invites       *InviteService
	push          *PushService
	scoops        *ScoopService
	objects       ObjectStore       // nil when media storage is not configured
	credentials   CredentialDeleter // nil when no identity provider admin client is configured
	logger        *zap.Logger
}

// AccountDeps groups the collaborators of AccountService.
type AccountDeps struct {
	Users         *UserService
	Posts         *PostService
	Comments      *CommentService
	Reactions     *ReactionService
	Relationships *RelationshipService
	Notifications *NotificationService
	Invites       *InviteService
	Push          *PushService
	Scoops        *ScoopService
	Objects       ObjectStore
	Credentials   CredentialDeleter
}

func NewAccountService(deps AccountDeps, logger *zap.Logger) *AccountService {
	return &AccountService{
		users:         deps.Users,
		posts:         deps.Posts,
		comments:      deps.Comments,
		reactions:     deps.Reactions,
		relationships: deps.Relationships,
		notifications: deps.Notifications,
		invites:       deps.Invites,
		push:          deps.Push,
		scoops:        deps.Scoops,
		objects:       deps.Objects,
		credentials:   deps.Credentials,
		logger:        logger.Named("account"),
	}
}

// Delete removes userID's content, graph edges, notifications, tokens, handle,
// profile and credential. It never aborts early and reports every step.
func (s *AccountService) Delete(ctx context.Context, userID string) *model.AccountDeletionResponse {
	// read before the record goes away
	var avatarKey string
	if user, err := s.users.GetByID(ctx, userID); err == nil {
		avatarKey = user.AvatarKey
	}

	var outcomes []model.Outcome
	outcomes = append(outcomes,
		s.posts.DeleteAllByUser(ctx, userID),
		s.comments.DeleteAllByUser(ctx, userID),
		s.reactions.DeleteAllByUser(ctx, userID),
	)
	outcomes = append(outcomes, s.relationships.RemoveAll(ctx, userID)...)
	outcomes = append(outcomes,
		s.notifications.DeleteReceived(ctx, userID),
		s.notifications.DeleteSent(ctx, userID),
		s.invites.DeleteAllByOwner(ctx, userID),
		s.push.RemoveAll(ctx, userID),
		s.scoops.DeleteAllByUser(ctx, userID),
		s.deleteAvatar(ctx, avatarKey),
	)
	outcomes = append(outcomes, s.users.DeleteIdentity(ctx, userID)...)
	outcomes = append(outcomes, s.deleteCredential(ctx, userID))

	resp := &model.AccountDeletionResponse{UserID: userID, Steps: make([]model.StepReport, 0, len(outcomes))}
	for _, o := range outcomes {
		o.Log(s.logger, zap.String("user_id", userID))
		resp.Steps = append(resp.Steps, o.Report())
		if !o.OK() {
			resp.Failed++
		}
	}
	s.logger.Info("account deleted", zap.String("user_id", userID), zap.Int("steps", len(outcomes)), zap.Int("failed", resp.Failed))
	return resp
}

func (s *AccountService) deleteAvatar(ctx context.Context, key string) model.Outcome {
	const step = "avatar"
	if s.objects == nil || !strings.HasPrefix(key, mediaFolders[model.MediaPurposeAvatar]+"/") {
		return model.Skip(step)
	}
	return model.Failed(step, s.objects.Delete(ctx, key))
}

func (s *AccountService) deleteCredential(ctx context.Context, userID string) model.Outcome {
	const step = "credential"
	if s.credentials == nil {
		return model.Skip(step)
	}
	return model.Failed(step, s.credentials.DeleteUser(ctx, userID))
}
