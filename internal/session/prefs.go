package session

import (
	"context"

	"github.com/EndeeLabs/endee-web-ui/internal/auth"
	"github.com/EndeeLabs/endee-web-ui/internal/repository"
)

// Fixed keys under which the auth token and theme persist.
const (
	KeyAuthToken = auth.TokenCookie
	KeyTheme     = "endee_theme"
)

// Preferences is the key-value store of one session. Get returns
// repository.ErrNotFound for a missing key.
type Preferences interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Scoped binds a preference repository to one scope.
func Scoped(repo repository.PreferenceRepository, scope string) Preferences {
	return scopedPreferences{repo: repo, scope: scope}
}

type scopedPreferences struct {
	repo  repository.PreferenceRepository
	scope string
}

func (p scopedPreferences) Get(ctx context.Context, key string) (string, error) {
	return p.repo.GetPreference(ctx, p.scope, key)
}

func (p scopedPreferences) Set(ctx context.Context, key, value string) error {
	return p.repo.SetPreference(ctx, p.scope, key, value)
}

func (p scopedPreferences) Delete(ctx context.Context, key string) error {
	return p.repo.DeletePreference(ctx, p.scope, key)
}
