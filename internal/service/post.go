package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scoop_backend/internal/model"
	"scoop_backend/internal/repository"
	"scoop_backend/internal/store"
)

type PostService struct {
	postRepo      repository.PostRepository
	commentRepo   repository.CommentRepository
	users         *UserService
	visibility    *VisibilityService
	moderation    *ModerationService
	notifications *NotificationService
	feed          *FeedService
	objects       ObjectStore // nil when media storage is not configured
	mentions      *mentionNotifier
	logger        *zap.Logger
}

func NewPostService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	users *UserService,
	visibility *VisibilityService,
	moderation *ModerationService,
	notifications *NotificationService,
	feed *FeedService,
	objects ObjectStore,
	logger *zap.Logger,
) *PostService {
	logger = logger.Named("posts")
	return &PostService{
		postRepo:      postRepo,
		commentRepo:   commentRepo,
		users:         users,
		visibility:    visibility,
		moderation:    moderation,
		notifications: notifications,
		feed:          feed,
		objects:       objects,
		mentions:      &mentionNotifier{users: users, notifications: notifications, logger: logger},
		logger:        logger,
	}
}

func validatePostContent(text string, images []model.PostImage) error {
	if utf8.RuneCountInString(text) > model.MaxPostTextLength {
		return model.ErrPostTooLong
	}
	if len(images) > model.MaxPostImages {
		return model.ErrTooManyMedia
	}
	if text == "" && len(images) == 0 {
		return model.ErrEmptyPost
	}
	for _, img := range images {
		if strings.TrimSpace(img.Key) == "" {
			return model.Validationf("image key is required")
		}
	}
	return nil
}

func imageKeys(images []model.PostImage) []string {
	keys := make([]string, 0, len(images))
	for _, img := range images {
		keys = append(keys, img.Key)
	}
	return keys
}

// Create moderates and stores a post, then notifies mentioned users.
func (s *PostService) Create(ctx context.Context, userID string, req model.CreatePostRequest) (*model.FeedItem, error) {
	text := strings.TrimSpace(req.Text)
	images := req.AllImages()
	if err := validatePostContent(text, images); err != nil {
		return nil, err
	}

	if err := s.moderation.Check(ctx, text, imageKeys(images)...); err != nil {
		s.logger.Info("post rejected by moderation", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	author, err := s.users.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		ID:          uuid.NewString(),
		UserID:      userID,
		Handle:      author.Handle,
		DisplayName: author.DisplayName,
		AvatarKey:   author.AvatarKey,
		Text:        text,
		Images:      images,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	notified := s.mentions.notify(ctx, userID, text, post.ID, post.ID)
	s.logger.Info("post created", zap.String("post_id", post.ID), zap.String("user_id", userID), zap.Int("mentions", len(notified)))

	item := s.feed.HydratePost(ctx, post)
	return &item, nil
}

// GetByID returns a post if the viewer may see its author's content.
func (s *PostService) GetByID(ctx context.Context, viewerID, postID string) (*model.FeedItem, error) {
	post, err := s.postRepo.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	ok, err := s.visibility.CanViewContent(ctx, viewerID, post.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.ErrProfilePrivate
	}
	item := s.feed.HydratePost(ctx, post)
	return &item, nil
}

// Update edits text and/or images. Changed content is moderated again, and
// handles newly mentioned by the edit are notified.
func (s *PostService) Update(ctx context.Context, userID, postID string, req model.UpdatePostRequest) (*model.FeedItem, error) {
	post, err := s.postRepo.Get(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, model.ErrNotPostOwner
	}

	text, images := post.Text, post.Images
	if req.Text != nil {
		text = strings.TrimSpace(*req.Text)
	}
	if req.Images != nil {
		images = *req.Images
	}
	if err := validatePostContent(text, images); err != nil {
		return nil, err
	}

	changedText := text != post.Text
	var newKeys []string
	for _, k := range imageKeys(images) {
		if !slices.Contains(imageKeys(post.Images), k) {
			newKeys = append(newKeys, k)
		}
	}
	if changedText || len(newKeys) > 0 {
		modText := ""
		if changedText {
			modText = text
		}
		if err := s.moderation.Check(ctx, modText, newKeys...); err != nil {
			return nil, err
		}
	}

	previousText := post.Text
	removed := removedKeys(post.Images, images)
	now := time.Now().UTC()
	post.Text, post.Images, post.UpdatedAt = text, images, &now
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}

	if changedText {
		before := ExtractMentions(previousText)
		var added []string
		for _, h := range ExtractMentions(text) {
			if !slices.Contains(before, h) {
				added = append(added, "@"+h)
			}
		}
		s.mentions.notify(ctx, userID, strings.Join(added, " "), post.ID, post.ID)
	}
	for _, key := range removed {
		s.deleteObject(ctx, key).Log(s.logger, zap.String("post_id", post.ID))
	}

	item := s.feed.HydratePost(ctx, post)
	return &item, nil
}

func removedKeys(before, after []model.PostImage) []string {
	keep := imageKeys(after)
	var out []string
	for _, k := range imageKeys(before) {
		if !slices.Contains(keep, k) {
			out = append(out, k)
		}
	}
	return out
}

// Delete removes the author's post and cascades to its comments, reactions,
// notifications and media. Only the post record itself must succeed.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	post, err := s.postRepo.Get(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != userID {
		return model.ErrNotPostOwner
	}
	if err := s.postRepo.Delete(ctx, post); err != nil {
		return err
	}
	for _, o := range s.cascade(ctx, post) {
		o.Log(s.logger, zap.String("post_id", post.ID))
	}
	s.logger.Info("post deleted", zap.String("post_id", post.ID), zap.String("user_id", userID))
	return nil
}

// cascade removes everything hanging off a deleted post, one outcome per step.
func (s *PostService) cascade(ctx context.Context, post *model.Post) []model.Outcome {
	var outcomes []model.Outcome

	comments, err := s.commentRepo.ListByPost(ctx, post.ID, 0)
	if err != nil {
		outcomes = append(outcomes, model.Failed("post_comments", err))
	}

	// every ledger that may hold a notification about this post
	targets := append([]string{post.UserID}, s.mentions.mentionedIDs(ctx, post.Text)...)
	for _, c := range comments {
		targets = append(targets, c.UserID)
		targets = append(targets, s.mentions.mentionedIDs(ctx, c.Text)...)
	}
	outcomes = append(outcomes, s.notifications.DeleteForContent(ctx, targets, post.ID))

	var commentErrs []error
	for i := range comments {
		if err := s.commentRepo.Delete(ctx, &comments[i]); err != nil {
			commentErrs = append(commentErrs, err)
		}
	}
	outcomes = append(outcomes, model.Failed("post_comments", errors.Join(commentErrs...)))

	// reaction rows, reaction counters and any comment rows left behind
	items, err := s.postRepo.Partition(ctx, post.ID)
	if err == nil {
		var errs []error
		for _, it := range items {
			if it.SK == store.SKMeta {
				continue
			}
			if err := s.postRepo.DeleteKey(ctx, it.Key()); err != nil {
				errs = append(errs, err)
			}
		}
		err = errors.Join(errs...)
	}
	outcomes = append(outcomes, model.Failed("post_partition", err))

	for _, key := range imageKeys(post.Images) {
		outcomes = append(outcomes, s.deleteObject(ctx, key))
	}
	return outcomes
}

func (s *PostService) deleteObject(ctx context.Context, key string) model.Outcome {
	if s.objects == nil {
		return model.Skip("media_delete")
	}
	return model.Failed("media_delete", s.objects.Delete(ctx, key))
}

// DeleteAllByUser removes every post of userID with its cascade. Used by
// account deletion.
func (s *PostService) DeleteAllByUser(ctx context.Context, userID string) model.Outcome {
	const step = "posts"
	refs, err := s.postRepo.RefsByAuthor(ctx, userID, 0)
	if err != nil {
		return model.Failed(step, err)
	}
	var errs []error
	for _, ref := range refs {
		post, err := s.postRepo.Get(ctx, ref.PostID)
		if errors.Is(err, model.ErrPostNotFound) {
			// dangling ref
			post = &model.Post{ID: ref.PostID, UserID: ref.AuthorID, CreatedAt: ref.CreatedAt}
		} else if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.postRepo.Delete(ctx, post); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, o := range s.cascade(ctx, post) {
			o.Log(s.logger, zap.String("post_id", post.ID))
		}
	}
	return model.Failed(step, errors.Join(errs...))
}
