package auth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/zhouzirui/friday/backend/internal/model/user"
)

// Identity is the external sign-in provider.
type Identity interface {
	// AuthCodeURL returns the consent page URL carrying state.
	AuthCodeURL(state string) string
	// Exchange trades an authorization code for the signed-in user.
	Exchange(ctx context.Context, code string) (user.User, error)
}

// GoogleIdentity signs users in with Google accounts.
type GoogleIdentity struct {
	config *oauth2.Config
}

// NewGoogleIdentity builds the Google provider from OAuth client credentials.
func NewGoogleIdentity(clientID, clientSecret, redirectURL string) *GoogleIdentity {
	return &GoogleIdentity{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"openid",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

// AuthCodeURL always asks the user to pick an account.
func (g *GoogleIdentity) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange resolves the code to a token and looks up the account profile.
func (g *GoogleIdentity) Exchange(ctx context.Context, code string) (user.User, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return user.User{}, fmt.Errorf("exchange code: %w", err)
	}

	svc, err := oauth2api.NewService(ctx, option.WithHTTPClient(g.config.Client(ctx, token)))
	if err != nil {
		return user.User{}, fmt.Errorf("create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return user.User{}, fmt.Errorf("fetch userinfo: %w", err)
	}

	return user.User{
		UID:         info.Id,
		Email:       info.Email,
		DisplayName: info.Name,
		PhotoURL:    info.Picture,
	}, nil
}
