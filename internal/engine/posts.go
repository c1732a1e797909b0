package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"digitalcoo/internal/domain"
	"digitalcoo/internal/events"
	"digitalcoo/internal/llm"
)

// platformTemplates holds one instruction per platform in domain.Platforms.
var platformTemplates = map[string]string{
	"x": `Write a single post for X (Twitter) based on the source material.
Hard limit: 280 characters including hashtags. Lead with the most interesting point, use at most two hashtags and no thread numbering.`,
	"facebook": `Write a Facebook post based on the source material.
Conversational and warm, 100 to 250 words, short paragraphs, end with a question or call to action that invites comments.`,
	"linkedin": `Write a LinkedIn post based on the source material.
Professional tone, 150 to 300 words, open with a strong one-line hook, share a concrete insight or lesson, and close with 3 to 5 relevant hashtags.`,
	"instagram": `Write an Instagram caption based on the source material.
Engaging first line, a few short lines using emojis where natural, a call to action, then up to 15 relevant hashtags on the last line.`,
	"tiktok_script": `Write a TikTok video script based on the source material.
30 to 60 seconds when spoken. Start with a hook in the first 3 seconds, mark on-screen text in [brackets], keep sentences short and punchy, and end with a call to action.`,
	"youtube_script": `Write a YouTube video script based on the source material.
3 to 5 minutes when spoken. Include an intro with a hook, clearly titled sections covering the main points, and an outro with a call to subscribe.`,
}

const postOutputRule = "Return only the post or script text, with no preamble or commentary."

// maxSourceRunes bounds the source material placed in each prompt.
const maxSourceRunes = 12000

func postPrompt(platform, material string) string {
	return platformTemplates[platform] + "\n" + postOutputRule + "\n\nSource material:\n" + truncate(material, maxSourceRunes)
}

type PlatformStatus struct {
	Platform string `json:"platform"`
	Status   string `json:"status" enum:"ok,failed"`
	Error    string `json:"error,omitempty"`
}

type GeneratePostsResult struct {
	Posts     []domain.SocialPost `json:"posts"`
	Platforms []PlatformStatus    `json:"platforms"`
}

// GeneratePosts drafts one social post per platform from a file. Platforms
// are attempted independently; an error is returned only when none succeeds.
func (e Engine) GeneratePosts(ctx context.Context, userID, fileID string) (GeneratePostsResult, error) {
	if e.Executor == nil {
		return GeneratePostsResult{}, llm.ErrNotConfigured
	}
	file, err := e.Repo.GetFile(ctx, nil, userID, fileID)
	if err != nil {
		return GeneratePostsResult{}, notFound(err, "file", fileID)
	}
	material := file.Content
	if strings.TrimSpace(material) == "" {
		material = file.Name
	}
	log := e.logger().With(zap.String("user_id", userID), zap.String("file_id", fileID))

	res := GeneratePostsResult{Posts: []domain.SocialPost{}}
	failures := map[string]string{}
	for _, platform := range domain.Platforms {
		text, err := e.generateOne(ctx, platform, material)
		if err != nil {
			log.Warn("post generation failed", zap.String("platform", platform), zap.Error(err))
			failures[platform] = err.Error()
			res.Platforms = append(res.Platforms, PlatformStatus{Platform: platform, Status: "failed", Error: err.Error()})
			continue
		}
		now := e.stamp()
		res.Posts = append(res.Posts, domain.SocialPost{
			ID:               newID(),
			UserID:           userID,
			MasterDocumentID: file.ID,
			Platform:         platform,
			Content:          text,
			Status:           "draft",
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		res.Platforms = append(res.Platforms, PlatformStatus{Platform: platform, Status: "ok"})
	}
	if len(res.Posts) == 0 {
		return res, &GenerationError{FileID: fileID, Errors: failures}
	}

	err = e.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range res.Posts {
			if err := e.Repo.InsertSocialPost(ctx, tx, p); err != nil {
				return err
			}
		}
		platforms := make([]string, 0, len(res.Posts))
		for _, p := range res.Posts {
			platforms = append(platforms, p.Platform)
		}
		meta := events.Metadata{"platforms": platforms}
		if len(failures) > 0 {
			meta["failed"] = failures
		}
		return e.activity(ctx, tx, events.Entry{
			UserID:      userID,
			Action:      events.PostsGenerated,
			Description: fmt.Sprintf("Generated %d social posts from %s", len(res.Posts), file.Name),
			EntityType:  "file",
			EntityID:    file.ID,
			Metadata:    meta,
		})
	})
	if err != nil {
		return GeneratePostsResult{}, err
	}
	return res, nil
}

func (e Engine) generateOne(ctx context.Context, platform, material string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.executorTimeout())
	defer cancel()
	return e.Executor.Generate(ctx, postPrompt(platform, material))
}

func (e Engine) ListSocialPosts(ctx context.Context, userID, fileID, platform string) ([]domain.SocialPost, error) {
	if platform != "" && !domain.OneOf(platform, domain.Platforms) {
		return nil, invalid("platform", "must be one of "+strings.Join(domain.Platforms, ", "))
	}
	if fileID != "" {
		if _, err := e.Repo.GetFile(ctx, nil, userID, fileID); err != nil {
			return nil, notFound(err, "file", fileID)
		}
	}
	return e.Repo.ListSocialPosts(ctx, userID, fileID, platform)
}

func (e Engine) GetSocialPost(ctx context.Context, userID, id string) (domain.SocialPost, error) {
	p, err := e.Repo.GetSocialPost(ctx, nil, userID, id)
	if err != nil {
		return p, notFound(err, "social post", id)
	}
	return p, nil
}

type SocialPostInput struct {
	Content *string
	Status  *string
}

// UpdateSocialPost edits a draft's text or moves it through draft, ready
// and published.
func (e Engine) UpdateSocialPost(ctx context.Context, userID, id string, in SocialPostInput) (domain.SocialPost, error) {
	if in.Status != nil && !domain.OneOf(*in.Status, domain.PostStatuses) {
		return domain.SocialPost{}, invalid("status", "must be one of "+strings.Join(domain.PostStatuses, ", "))
	}
	if in.Content != nil && strings.TrimSpace(*in.Content) == "" {
		return domain.SocialPost{}, invalid("content", "must not be empty")
	}
	var out domain.SocialPost
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		p, err := e.Repo.GetSocialPost(ctx, tx, userID, id)
		if err != nil {
			return notFound(err, "social post", id)
		}
		if in.Content != nil {
			p.Content = strings.TrimSpace(*in.Content)
		}
		if in.Status != nil {
			p.Status = *in.Status
		}
		p.UpdatedAt = e.stamp()
		if err := e.Repo.UpdateSocialPost(ctx, tx, p); err != nil {
			return notFound(err, "social post", id)
		}
		out = p
		return nil
	})
	return out, err
}

func (e Engine) DeleteSocialPost(ctx context.Context, userID, id string) error {
	return notFound(e.Repo.DeleteSocialPost(ctx, nil, userID, id), "social post", id)
}
