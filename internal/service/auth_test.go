package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/guitar-games/internal/apperror"
	"github.com/sakif/guitar-games/internal/auth"
	"github.com/sakif/guitar-games/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// In-memory fakes instead of a mock framework — what each one does is
// visible right here.

type fakeUserRepo struct {
	byID    map[string]*model.User
	byEmail map[string]*model.User
	nextID  int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]*model.User),
	}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if _, ok := f.byEmail[user.Email]; ok {
		return apperror.Conflict("user", user.Email)
	}
	f.nextID++
	user.ID = "user-" + string(rune('0'+f.nextID))
	user.DateJoined = time.Now().UTC()
	copied := *user
	f.byID[user.ID] = &copied
	f.byEmail[user.Email] = &copied
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if u, ok := f.byID[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if u, ok := f.byEmail[email]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	stored, ok := f.byID[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.PhotoURL = user.PhotoURL
	stored.Provider = user.Provider
	return nil
}

func (f *fakeUserRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	if stored, ok := f.byID[id]; ok {
		stored.LastLogin = &at
	}
	return nil
}

type fakeTokenRepo struct {
	keyByUser map[string]string
	userByKey map[string]string
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{
		keyByUser: make(map[string]string),
		userByKey: make(map[string]string),
	}
}

func (f *fakeTokenRepo) GetOrCreate(ctx context.Context, userID, key string) (string, error) {
	if existing, ok := f.keyByUser[userID]; ok {
		return existing, nil
	}
	f.keyByUser[userID] = key
	f.userByKey[key] = userID
	return key, nil
}

func (f *fakeTokenRepo) GetUserID(ctx context.Context, key string) (string, error) {
	if userID, ok := f.userByKey[key]; ok {
		return userID, nil
	}
	return "", apperror.NotFound("token", key)
}

func (f *fakeTokenRepo) DeleteByUser(ctx context.Context, userID string) error {
	if key, ok := f.keyByUser[userID]; ok {
		delete(f.userByKey, key)
		delete(f.keyByUser, userID)
	}
	return nil
}

type fakeSessionRepo struct {
	sessions map[string]*model.UserSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*model.UserSession)}
}

func (f *fakeSessionRepo) Upsert(ctx context.Context, s *model.UserSession) error {
	copied := *s
	f.sessions[s.SessionKey] = &copied
	return nil
}

func (f *fakeSessionRepo) Touch(ctx context.Context, key string, at time.Time) error {
	if s, ok := f.sessions[key]; ok {
		s.LastActivity = at
	}
	return nil
}

func (f *fakeSessionRepo) Delete(ctx context.Context, key string) error {
	delete(f.sessions, key)
	return nil
}

func (f *fakeSessionRepo) DeleteExpired(ctx context.Context, now time.Time) error {
	for key, s := range f.sessions {
		if !s.ExpiresAt.After(now) {
			delete(f.sessions, key)
		}
	}
	return nil
}

func (f *fakeSessionRepo) ActiveUsers(ctx context.Context, since time.Time) ([]model.User, error) {
	seen := make(map[string]bool)
	var users []model.User
	for _, s := range f.sessions {
		if s.LastActivity.Before(since) || seen[s.UserID] {
			continue
		}
		seen[s.UserID] = true
		users = append(users, model.User{ID: s.UserID})
	}
	return users, nil
}

// fakeGoogleVerifier returns fixed claims, or an error, for any credential.
type fakeGoogleVerifier struct {
	claims *auth.GoogleClaims
	err    error
}

func (f *fakeGoogleVerifier) Verify(ctx context.Context, credential string) (*auth.GoogleClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.claims, nil
}

const testGoogleClientID = "test-client-id.apps.googleusercontent.com"

type authFixture struct {
	svc      *AuthService
	users    *fakeUserRepo
	tokens   *fakeTokenRepo
	sessions *fakeSessionRepo
	google   *fakeGoogleVerifier
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	users := newFakeUserRepo()
	tokens := newFakeTokenRepo()
	sessionRepo := newFakeSessionRepo()
	google := &fakeGoogleVerifier{}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	tracker := NewSessionTracker(sessionRepo, 14*24*time.Hour, 15*time.Minute, logger)

	svc := NewAuthService(
		users,
		tokens,
		tracker,
		auth.NewPasswordService(bcrypt.MinCost),
		google,
		testGoogleClientID,
		logger,
	)

	return &authFixture{svc: svc, users: users, tokens: tokens, sessions: sessionRepo, google: google}
}

func testClient() ClientInfo {
	return ClientInfo{IP: "198.51.100.4", UserAgent: "guitar-games-test"}
}

func goodClaims() *auth.GoogleClaims {
	return &auth.GoogleClaims{
		Email:         "Gina@example.com",
		EmailVerified: true,
		GivenName:     "Gina",
		FamilyName:    "Strum",
		Picture:       "https://example.com/gina.png",
		Audience:      testGoogleClientID,
	}
}

// =========================================================================
// REGISTER
// =========================================================================

func TestRegister(t *testing.T) {
	fx := newAuthFixture(t)

	result, err := fx.svc.Register(context.Background(), RegisterInput{
		Email:    "NewPlayer@Example.COM",
		Password: "hunter2hunter2",
	}, testClient())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if result.Token == "" {
		t.Error("Register() returned empty token")
	}
	if result.User.Email != "newplayer@example.com" {
		t.Errorf("Email = %q, want lowercased", result.User.Email)
	}
	if result.User.Username != "newplayer" {
		t.Errorf("Username = %q, want local part of email", result.User.Username)
	}
	if result.User.Provider != model.ProviderEmail {
		t.Errorf("Provider = %q, want %q", result.User.Provider, model.ProviderEmail)
	}
	if result.User.LastLogin == nil {
		t.Error("Register() should stamp last_login")
	}

	// The session record must exist before the response is returned.
	session, ok := fx.sessions.sessions[result.Token]
	if !ok {
		t.Fatal("Register() did not record a session")
	}
	if session.IPAddress != "198.51.100.4" || session.UserAgent != "guitar-games-test" {
		t.Errorf("session client info = %q %q", session.IPAddress, session.UserAgent)
	}
}

func TestRegister_DuplicateEmailCaseInsensitive(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Register(ctx, RegisterInput{Email: "taken@example.com", Password: "longenough"}, testClient()); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}

	_, err := fx.svc.Register(ctx, RegisterInput{Email: "TAKEN@example.com", Password: "longenough"}, testClient())
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("second Register() error = %v, want ErrValidation", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	fx := newAuthFixture(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"short password", "ok@example.com", "seven77"},
		{"empty password", "ok@example.com", ""},
		{"missing at sign", "not-an-email", "longenough"},
		{"empty local part", "@example.com", "longenough"},
		{"empty email", "", "longenough"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.Register(context.Background(), RegisterInput{Email: tt.email, Password: tt.password}, testClient())
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("Register() error = %v, want ErrValidation", err)
			}
		})
	}
}

// =========================================================================
// LOGIN
// =========================================================================

func TestLogin(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	registered, err := fx.svc.Register(ctx, RegisterInput{Email: "login@example.com", Password: "longenough"}, testClient())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	result, err := fx.svc.Login(ctx, "Login@Example.com", "longenough", testClient())
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token != registered.Token {
		t.Error("re-login must reuse the existing token, not rotate it")
	}
}

func TestLogin_GenericFailureMessage(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Register(ctx, RegisterInput{Email: "known@example.com", Password: "longenough"}, testClient()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, wrongPass := fx.svc.Login(ctx, "known@example.com", "wrong-password", testClient())
	_, unknownEmail := fx.svc.Login(ctx, "ghost@example.com", "whatever", testClient())

	if !errors.Is(wrongPass, apperror.ErrUnauthorized) {
		t.Errorf("wrong password error = %v, want ErrUnauthorized", wrongPass)
	}
	if !errors.Is(unknownEmail, apperror.ErrUnauthorized) {
		t.Errorf("unknown email error = %v, want ErrUnauthorized", unknownEmail)
	}
	// Identical messages — no user-enumeration leak.
	if wrongPass.Error() != unknownEmail.Error() {
		t.Errorf("messages differ: %q vs %q", wrongPass.Error(), unknownEmail.Error())
	}
}

func TestLogin_GoogleOnlyAccountHasNoPassword(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	fx.google.claims = goodClaims()
	if _, err := fx.svc.GoogleLogin(ctx, "credential", testClient()); err != nil {
		t.Fatalf("GoogleLogin() error = %v", err)
	}

	_, err := fx.svc.Login(ctx, "gina@example.com", "", testClient())
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("password login to Google-only account error = %v, want ErrUnauthorized", err)
	}
}

// =========================================================================
// GOOGLE LOGIN
// =========================================================================

func TestGoogleLogin_CreatesUser(t *testing.T) {
	fx := newAuthFixture(t)
	fx.google.claims = goodClaims()

	result, err := fx.svc.GoogleLogin(context.Background(), "credential", testClient())
	if err != nil {
		t.Fatalf("GoogleLogin() error = %v", err)
	}

	if result.User.Email != "gina@example.com" {
		t.Errorf("Email = %q, want lowercased claim email", result.User.Email)
	}
	if result.User.Username != "gina" {
		t.Errorf("Username = %q, want %q", result.User.Username, "gina")
	}
	if result.User.Provider != model.ProviderGoogle {
		t.Errorf("Provider = %q, want %q", result.User.Provider, model.ProviderGoogle)
	}
	if result.User.PasswordHash != "" {
		t.Error("Google accounts must not get a password hash")
	}
}

func TestGoogleLogin_RefreshesExistingUser(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	// Existing password account with the same email.
	registered, err := fx.svc.Register(ctx, RegisterInput{
		Email: "gina@example.com", Password: "longenough", FirstName: "G",
	}, testClient())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	fx.google.claims = goodClaims()
	result, err := fx.svc.GoogleLogin(ctx, "credential", testClient())
	if err != nil {
		t.Fatalf("GoogleLogin() error = %v", err)
	}

	if result.User.ID != registered.User.ID {
		t.Error("GoogleLogin must reuse the account found by email")
	}
	if result.Token != registered.Token {
		t.Error("GoogleLogin must reuse the existing token")
	}

	stored, err := fx.users.GetByID(ctx, registered.User.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.FirstName != "Gina" || stored.LastName != "Strum" {
		t.Errorf("profile not refreshed: %q %q", stored.FirstName, stored.LastName)
	}
	if stored.Provider != model.ProviderGoogle {
		t.Errorf("Provider = %q, want refreshed to google", stored.Provider)
	}
}

func TestGoogleLogin_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeGoogleVerifier)
	}{
		{
			name:  "verifier error",
			setup: func(g *fakeGoogleVerifier) { g.err = errors.New("signature mismatch") },
		},
		{
			name: "audience mismatch",
			setup: func(g *fakeGoogleVerifier) {
				c := goodClaims()
				c.Audience = "someone-else.apps.googleusercontent.com"
				g.claims = c
			},
		},
		{
			name: "missing email",
			setup: func(g *fakeGoogleVerifier) {
				c := goodClaims()
				c.Email = ""
				g.claims = c
			},
		},
		{
			name: "unverified email",
			setup: func(g *fakeGoogleVerifier) {
				c := goodClaims()
				c.EmailVerified = false
				g.claims = c
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newAuthFixture(t)
			tt.setup(fx.google)

			_, err := fx.svc.GoogleLogin(context.Background(), "credential", testClient())
			if !errors.Is(err, apperror.ErrUnauthorized) {
				t.Errorf("GoogleLogin() error = %v, want ErrUnauthorized", err)
			}
			if len(fx.users.byID) != 0 {
				t.Error("rejected credential must not create a user")
			}
		})
	}
}

// =========================================================================
// LOGOUT AND TOKEN RESOLUTION
// =========================================================================

func TestLogoutRevokesToken(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	result, err := fx.svc.Register(ctx, RegisterInput{Email: "bye@example.com", Password: "longenough"}, testClient())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Token resolves before logout...
	if _, err := fx.svc.ResolveToken(ctx, result.Token); err != nil {
		t.Fatalf("ResolveToken() before logout error = %v", err)
	}

	if err := fx.svc.Logout(ctx, result.User, result.Token); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	// ...and is dead afterwards, along with the session record.
	if _, err := fx.svc.ResolveToken(ctx, result.Token); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("ResolveToken() after logout error = %v, want ErrUnauthorized", err)
	}
	if _, ok := fx.sessions.sessions[result.Token]; ok {
		t.Error("session record should be deleted on logout")
	}

	// Logging out again, and anonymously, stays successful.
	if err := fx.svc.Logout(ctx, result.User, result.Token); err != nil {
		t.Errorf("repeated Logout() error = %v", err)
	}
	if err := fx.svc.Logout(ctx, nil, ""); err != nil {
		t.Errorf("anonymous Logout() error = %v", err)
	}
}

func TestResolveToken_InactiveAccount(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	result, err := fx.svc.Register(ctx, RegisterInput{Email: "gone@example.com", Password: "longenough"}, testClient())
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	fx.users.byID[result.User.ID].IsActive = false

	if _, err := fx.svc.ResolveToken(ctx, result.Token); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("ResolveToken() for inactive account error = %v, want ErrUnauthorized", err)
	}
}

// =========================================================================
// ACTIVE USERS
// =========================================================================

func TestActiveUsers_RequiresStaff(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.ActiveUsers(context.Background(), &model.User{ID: "u1", IsStaff: false})
	if !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("ActiveUsers() as non-admin error = %v, want ErrForbidden", err)
	}
}

func TestActiveUsers_ReturnsRecentlyActive(t *testing.T) {
	fx := newAuthFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Register(ctx, RegisterInput{Email: "online@example.com", Password: "longenough"}, testClient()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	users, err := fx.svc.ActiveUsers(ctx, &model.User{ID: "admin", IsStaff: true})
	if err != nil {
		t.Fatalf("ActiveUsers() error = %v", err)
	}
	if len(users) != 1 {
		t.Errorf("ActiveUsers() returned %d users, want 1", len(users))
	}
}
