package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	sharedauth "protected-docs/internal/shared/auth"
	"protected-docs/internal/shared/server/respond"
	"protected-docs/internal/shared/telemetry"
	"protected-docs/internal/shared/util"
)

const maxPendingStates = 1024

// TokenSigner issues admin session tokens.
type TokenSigner interface {
	Sign(claims sharedauth.Claims) (string, error)
}

// GoogleService handles Google OAuth flows for administrators.
type GoogleService struct {
	oauthConfig *oauth2.Config
	uiRedirect  string
	stateTTL    time.Duration
	stateStore  *stateStore
	signer      TokenSigner
	admins      map[string]struct{}
	userInfo    func(ctx context.Context, token *oauth2.Token) (googleUserInfo, error)
}

// NewGoogleService builds a GoogleService. Only addresses in adminEmails receive a token.
func NewGoogleService(clientID, clientSecret, redirectURL, uiRedirect string, signer TokenSigner, adminEmails []string) *GoogleService {
	admins := make(map[string]struct{}, len(adminEmails))
	for _, email := range adminEmails {
		if e := util.NormalizeEmail(email); e != "" {
			admins[e] = struct{}{}
		}
	}
	s := &GoogleService{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		uiRedirect: uiRedirect,
		stateTTL:   5 * time.Minute,
		signer:     signer,
		admins:     admins,
	}
	s.stateStore = newStateStore(s.stateTTL)
	s.userInfo = s.fetchUserInfo
	return s
}

// RegisterRoutes attaches Google auth routes.
func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", s.start)
	rg.GET("/auth/google/callback", s.callback)
}

func (s *GoogleService) start(c *gin.Context) {
	if s.oauthConfig.ClientID == "" || s.oauthConfig.ClientSecret == "" || s.oauthConfig.RedirectURL == "" {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "Google auth not configured", nil)
		return
	}

	state := uuid.NewString()
	s.stateStore.put(state, time.Now().Add(s.stateTTL))

	url := s.oauthConfig.AuthCodeURL(state)
	c.Redirect(http.StatusFound, url)
}

func (s *GoogleService) callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}

	if !s.stateStore.consume(state) {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	ctx := c.Request.Context()
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "failed to exchange code", nil)
		return
	}

	info, err := s.userInfo(ctx, token)
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to fetch user profile", nil)
		return
	}
	s.issue(c, info)
}

// issue signs an admin token for an allowlisted, verified identity and redirects to the UI.
func (s *GoogleService) issue(c *gin.Context, info googleUserInfo) {
	if info.Sub == "" {
		respond.Error(c, http.StatusBadGateway, "auth_failed", "invalid user profile", nil)
		return
	}
	if !info.VerifiedEmail || !s.isAdmin(info.Email) {
		telemetry.Warn("auth.admin_denied", map[string]any{
			"email":    util.HashEmail(info.Email),
			"verified": info.VerifiedEmail,
		})
		respond.Error(c, http.StatusForbidden, "forbidden", "account is not an administrator", nil)
		return
	}

	signed, err := s.signer.Sign(sharedauth.Claims{
		Email:            util.NormalizeEmail(info.Email),
		Name:             info.Name,
		Role:             sharedauth.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "google:" + info.Sub},
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}

	redirectURL, err := appendToken(s.uiRedirect, signed)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}

	c.Redirect(http.StatusFound, redirectURL)
}

func (s *GoogleService) isAdmin(email string) bool {
	_, ok := s.admins[util.NormalizeEmail(email)]
	return ok
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
}

func (s *GoogleService) fetchUserInfo(ctx context.Context, token *oauth2.Token) (googleUserInfo, error) {
	client := s.oauthConfig.Client(ctx, token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return googleUserInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return googleUserInfo{}, fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return googleUserInfo{}, err
	}

	// Some responses use "id" instead of "sub".
	if info.Sub == "" {
		info.Sub = info.ID
	}
	return info, nil
}

// stateStore holds pending OAuth states in a bounded, expiring cache.
type stateStore struct {
	mu    sync.Mutex
	items *expirable.LRU[string, time.Time]
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{items: expirable.NewLRU[string, time.Time](maxPendingStates, nil, ttl)}
}

func (s *stateStore) put(state string, exp time.Time) {
	s.items.Add(state, exp)
}

func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.items.Get(state)
	s.items.Remove(state)
	if !ok {
		return false
	}
	return time.Now().Before(exp)
}

func appendToken(rawURL, token string) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
