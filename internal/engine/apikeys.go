package engine

import (
	"context"
	"strings"

	"digitalcoo/internal/domain"
	"digitalcoo/internal/engine/auth"
	"digitalcoo/internal/repo"
)

// CreateAPIKey mints a key for userID. The plaintext is returned once.
func (e Engine) CreateAPIKey(ctx context.Context, userID, name string) (domain.APIKey, string, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.APIKey{}, "", invalid("userId", "is required")
	}
	plain, err := auth.NewAPIKey()
	if err != nil {
		return domain.APIKey{}, "", err
	}
	key := domain.APIKey{
		ID:        newID(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.stamp(),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plain, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, userID string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, userID)
}

// RevokeAPIKey deletes a key of userID. Keys of other users are not found.
func (e Engine) RevokeAPIKey(ctx context.Context, userID, id string) error {
	return notFound(e.Repo.DeleteAPIKey(ctx, userID, id), "api key", id)
}

// UserForAPIKey resolves the owner of a plaintext key.
func (e Engine) UserForAPIKey(ctx context.Context, plain string) (string, error) {
	if strings.TrimSpace(plain) == "" {
		return "", &NotFoundError{Entity: "api key"}
	}
	key, err := e.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(plain))
	if err != nil {
		return "", notFound(err, "api key", "")
	}
	return key.UserID, nil
}
