package auth

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/amoret/amoret/internal/database"
	"github.com/amoret/amoret/internal/email"
	"github.com/amoret/amoret/internal/fault"
	"github.com/amoret/amoret/internal/logging"
	"github.com/amoret/amoret/internal/nonce"
	"github.com/amoret/amoret/internal/permission"
	"github.com/amoret/amoret/internal/product"
	"github.com/amoret/amoret/internal/user"
)

// captureSender records dispatched notifications instead of talking SMTP.
type captureSender struct {
	mu   sync.Mutex
	sent []capturedMail
}

type capturedMail struct {
	template string
	msg      email.Message
}

func (c *captureSender) Send(_ context.Context, templateKey string, msg email.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, capturedMail{template: templateKey, msg: msg})
	return nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *captureSender) byTemplate(templateKey string) []capturedMail {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []capturedMail
	for _, m := range c.sent {
		if m.template == templateKey {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	db     *bun.DB
	svc    *Service
	users  *user.Repository
	perms  *permission.Repository
	nonces *nonce.Service
	sender *captureSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := database.OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.CreateSchema(context.Background(), db))

	users := user.NewRepository(db)
	perms := permission.NewRepository(db)
	engine := nonce.NewEngine([]byte("0123456789abcdef0123456789abcdef"), 900*time.Second)
	nonces := nonce.NewService(engine, nonce.NewRepository(db))
	sessions := NewSessionService("amoret", 15*24*time.Hour)
	sender := &captureSender{}
	logger := logging.NewLogger(true)

	svc := NewService(
		db, users, perms, nonces, sessions, sender,
		product.DefaultCatalog(), logger,
		"http://backend.test", "http://frontend.test", "review@amoret.test",
		48, "#aA!",
	)

	return &fixture{db: db, svc: svc, users: users, perms: perms, nonces: nonces, sender: sender}
}

func validSignup() SignupParams {
	return SignupParams{
		Email:       "Nora@Example.COM",
		Password:    "hunter2hunter2",
		DisplayName: "Nora",
		Country:     "cz",
		Locality:    "Praha",
		Birth:       "1995/06/15",
		Sex:         "female",
	}
}

func (f *fixture) nonceByAction(t *testing.T, action database.NonceAction) *database.Nonce {
	t.Helper()
	repo := database.NewRepo[database.Nonce](f.db)
	records, err := repo.All(context.Background(), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.action = ?", action).
			Where("?TableAlias.used_at IS NULL").
			Order("created_at DESC")
	})
	require.NoError(t, err)
	require.NotEmpty(t, records, "no %s token persisted", action)
	return &records[0]
}

func (f *fixture) signup(t *testing.T) *database.User {
	t.Helper()
	u, err := f.svc.Signup(context.Background(), validSignup())
	require.NoError(t, err)
	return u
}

// signupVerified creates an account and completes email verification, the
// state most workflows start from.
func (f *fixture) signupVerified(t *testing.T) *database.User {
	t.Helper()
	ctx := context.Background()

	u := f.signup(t)
	record := f.nonceByAction(t, database.ActionVerifyEmail)
	require.NoError(t, f.svc.VerifyEmail(ctx, u.ID, record))

	fresh, err := f.users.GetByID(ctx, u.ID, "Permission")
	require.NoError(t, err)
	return fresh
}

func TestSignupCreatesAccountGraph(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.signup(t)

	assert.Equal(t, "nora@example.com", u.Email)
	assert.Equal(t, "CZ", u.Country)
	assert.Equal(t, database.RoleBaby, u.Role)
	assert.False(t, u.EmailVerified)
	assert.NotEmpty(t, u.Salt)
	assert.Len(t, u.Password, 128)
	assert.GreaterOrEqual(t, u.Age, 18)

	perm, err := f.perms.GetByOwner(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, perm.UnderReview)
	assert.False(t, perm.Warning)
	assert.True(t, perm.InfoUnreadMessage)
	assert.True(t, perm.InfoSeeProfile)
	assert.NotEmpty(t, perm.Preferences)

	for _, action := range []database.NonceAction{
		database.ActionVerifyEmail,
		database.ActionPassReview,
		database.ActionUnpassReview,
	} {
		record := f.nonceByAction(t, action)
		assert.Nil(t, record.UsedAt)
	}

	// welcome + verify-email + moderator review, dispatched asynchronously
	require.Eventually(t, func() bool { return f.sender.count() == 3 }, 2*time.Second, 10*time.Millisecond)

	review := f.sender.byTemplate(email.TemplateReview)
	require.Len(t, review, 1)
	assert.Equal(t, "review@amoret.test", review[0].msg.To)
	assert.Contains(t, review[0].msg.Substitutions["pass_review_url"], "http://backend.test/v1/users/review?mode=pass&nonce=")
	assert.Contains(t, review[0].msg.Substitutions["unpass_review_url"], "mode=unpass")

	verify := f.sender.byTemplate(email.TemplateVerifyEmail)
	require.Len(t, verify, 1)
	assert.Equal(t, "nora@example.com", verify[0].msg.To)
}

func TestSignupDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.signup(t)

	_, err := f.svc.Signup(context.Background(), validSignup())
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindConflict))
}

func TestSignupRoleVariants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	params := validSignup()
	params.Email = "daddy@example.com"
	params.Role = "daddy"
	u, err := f.svc.Signup(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, database.RoleDaddy, u.Role)
}

func TestSignupRollsBackOnPermissionFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// force the permission insert to fail after the user insert succeeded
	_, err := f.db.NewDropTable().Model((*database.Permission)(nil)).Exec(ctx)
	require.NoError(t, err)

	_, err = f.svc.Signup(ctx, validSignup())
	require.Error(t, err)

	count, err := f.users.CountByEmail(ctx, "nora@example.com")
	require.NoError(t, err)
	assert.Zero(t, count, "user row survived a failed signup")
	assert.Zero(t, f.sender.count())
}

func TestSignupValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := map[string]func(*SignupParams){
		"underage":       func(p *SignupParams) { p.Birth = time.Now().AddDate(-17, 0, 0).Format("2006/01/02") },
		"bad birth":      func(p *SignupParams) { p.Birth = "June 1995" },
		"short password": func(p *SignupParams) { p.Password = "short" },
		"bad email":      func(p *SignupParams) { p.Email = "not-an-email" },
		"bad sex":        func(p *SignupParams) { p.Sex = "yes" },
		"empty email":    func(p *SignupParams) { p.Email = "" },
		"admin role":     func(p *SignupParams) { p.Role = "admin" },
		"unknown role":   func(p *SignupParams) { p.Role = "vip" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			params := validSignup()
			mutate(&params)
			_, err := f.svc.Signup(ctx, params)
			require.Error(t, err)
			assert.True(t, fault.IsKind(err, fault.KindInvalidInput))
		})
	}
}

func TestLoginWithPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signupVerified(t)

	u, err := f.svc.LoginWithPassword(ctx, "nora@example.com", "hunter2hunter2")
	require.NoError(t, err)
	require.NotNil(t, u.SessionToken)
	first := *u.SessionToken

	// a second login reuses the still-valid token
	u, err = f.svc.LoginWithPassword(ctx, "nora@example.com", "hunter2hunter2")
	require.NoError(t, err)
	require.NotNil(t, u.SessionToken)
	assert.Equal(t, first, *u.SessionToken)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signupVerified(t)

	_, err := f.svc.LoginWithPassword(ctx, "nora@example.com", "not-the-password")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindUnauthorized))

	// failed attempts never mint a session
	u, err := f.users.GetByEmail(ctx, "nora@example.com")
	require.NoError(t, err)
	assert.Nil(t, u.SessionToken)
}

func TestLoginUnknownAccount(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.LoginWithPassword(context.Background(), "ghost@example.com", "hunter2hunter2")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}

func TestLoginWithToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signupVerified(t)

	u, err := f.svc.LoginWithPassword(ctx, "nora@example.com", "hunter2hunter2")
	require.NoError(t, err)

	got, err := f.svc.LoginWithToken(ctx, *u.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.Permission, "token login eager-loads the permission")

	_, err = f.svc.LoginWithToken(ctx, "bogus-token")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindUnauthorized))
}

func TestLogoutInvalidatesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signupVerified(t)

	u, err := f.svc.LoginWithPassword(ctx, "nora@example.com", "hunter2hunter2")
	require.NoError(t, err)
	token := *u.SessionToken

	require.NoError(t, f.svc.Logout(ctx, u))

	_, err = f.svc.LoginWithToken(ctx, token)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindUnauthorized))
}

func TestVerifyEmailConsumesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.signup(t)
	record := f.nonceByAction(t, database.ActionVerifyEmail)

	result, err := f.nonces.Verify(ctx, record.Value, nonce.VerifyEmail)
	require.NoError(t, err)
	require.True(t, result.Valid)
	assert.Equal(t, u.ID, result.UserID)

	require.NoError(t, f.svc.VerifyEmail(ctx, result.UserID, result.Nonce))

	fresh, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, fresh.EmailVerified)

	// replay is rejected
	_, err = f.nonces.Verify(ctx, record.Value, nonce.VerifyEmail)
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindAlreadyUsed))
}

func TestForgetAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signupVerified(t)

	u, err := f.svc.LoginWithPassword(ctx, "nora@example.com", "hunter2hunter2")
	require.NoError(t, err)
	oldToken := *u.SessionToken
	oldSalt := u.Salt

	require.NoError(t, f.svc.ForgetPassword(ctx, "nora@example.com"))

	record := f.nonceByAction(t, database.ActionForgetPassword)
	result, err := f.nonces.Verify(ctx, record.Value, nonce.VerifyForget)
	require.NoError(t, err)
	require.True(t, result.Valid)
	assert.Equal(t, u.ID, result.UserID)

	require.NoError(t, f.svc.ResetPassword(ctx, result.UserID, result.Nonce, "a-new-password"))

	// old credentials and sessions are dead
	_, err = f.svc.LoginWithPassword(ctx, "nora@example.com", "hunter2hunter2")
	assert.True(t, fault.IsKind(err, fault.KindUnauthorized))
	_, err = f.svc.LoginWithToken(ctx, oldToken)
	assert.Error(t, err)

	fresh, err := f.svc.LoginWithPassword(ctx, "nora@example.com", "a-new-password")
	require.NoError(t, err)
	assert.NotEqual(t, oldSalt, fresh.Salt, "reset regenerates the salt")

	// token is single use
	_, err = f.nonces.Verify(ctx, record.Value, nonce.VerifyForget)
	assert.True(t, fault.IsKind(err, fault.KindAlreadyUsed))

	// reset link email was dispatched
	require.Eventually(t, func() bool {
		return len(f.sender.byTemplate(email.TemplateForgetPassword)) == 1
	}, 2*time.Second, 10*time.Millisecond)
	mail := f.sender.byTemplate(email.TemplateForgetPassword)[0]
	assert.Contains(t, mail.msg.Substitutions["reset_password_link"], "http://frontend.test/forget-password?nonce=")
}

func TestReviewDecisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.signup(t)

	pass := f.nonceByAction(t, database.ActionPassReview)
	result, err := f.nonces.Verify(ctx, pass.Value, nonce.VerifyReview)
	require.NoError(t, err)
	require.True(t, result.Valid)

	require.NoError(t, f.svc.Review(ctx, ReviewPass, result.UserID, result.Nonce))
	perm, err := f.perms.GetByOwner(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, perm.UnderReview)

	// moderator may later pull the profile back under review
	unpass := f.nonceByAction(t, database.ActionUnpassReview)
	result, err = f.nonces.Verify(ctx, unpass.Value, nonce.VerifyReview)
	require.NoError(t, err)
	require.True(t, result.Valid)

	require.NoError(t, f.svc.Review(ctx, ReviewUnpass, result.UserID, result.Nonce))
	perm, err = f.perms.GetByOwner(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, perm.UnderReview)

	// both tokens are consumed
	_, err = f.nonces.Verify(ctx, pass.Value, nonce.VerifyReview)
	assert.True(t, fault.IsKind(err, fault.KindAlreadyUsed))
	_, err = f.nonces.Verify(ctx, unpass.Value, nonce.VerifyReview)
	assert.True(t, fault.IsKind(err, fault.KindAlreadyUsed))
}

func TestReviewUnknownMode(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Review(context.Background(), ReviewMode("maybe"), uuid.New(), &database.Nonce{})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindInvalidInput))
}

func TestUnlockDebitsCandyAndExtends(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.signupVerified(t)

	_, err := f.users.UpdateByID(ctx, u.ID, func(u *database.User) { u.Candy = 50 }, "candy")
	require.NoError(t, err)
	u, err = f.users.GetByID(ctx, u.ID, "Permission")
	require.NoError(t, err)
	base := u.Permission.ExpiredAt

	require.NoError(t, f.svc.Unlock(ctx, u, "unlock-month"))

	fresh, err := f.users.GetByID(ctx, u.ID, "Permission")
	require.NoError(t, err)
	assert.Equal(t, 40, fresh.Candy)
	assert.Equal(t, base.AddDate(0, 0, 30).Unix(), fresh.Permission.ExpiredAt.Unix())
}

func TestUnlockInsufficientCandy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.signupVerified(t)

	err := f.svc.Unlock(ctx, u, "unlock-month")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindForbidden))

	fresh, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.Candy)
}

func TestUnlockUnknownProduct(t *testing.T) {
	f := newFixture(t)
	u := f.signupVerified(t)

	err := f.svc.Unlock(context.Background(), u, "unlock-eternity")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindInvalidInput))
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.signupVerified(t)

	require.NoError(t, f.svc.ChangePassword(ctx, u, "hunter2hunter2", "brand-new-password"))

	_, err := f.svc.LoginWithPassword(ctx, "nora@example.com", "brand-new-password")
	require.NoError(t, err)

	fresh, err := f.users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Salt, fresh.Salt, "change keeps the existing salt")
}

func TestChangePasswordWrongOld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.signupVerified(t)

	err := f.svc.ChangePassword(ctx, u, "not-the-password", "brand-new-password")
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.KindUnauthorized))

	_, err = f.svc.LoginWithPassword(ctx, "nora@example.com", "hunter2hunter2")
	assert.NoError(t, err, "old password still works")
}

func TestUpdatePreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.signupVerified(t)

	country := "DE"
	tooYoung := 17
	maxAge := 40
	require.NoError(t, f.svc.UpdatePreferences(ctx, u.ID, permission.Patch{
		Country: &country,
		MinAge:  &tooYoung,
		MaxAge:  &maxAge,
	}))

	perm, err := f.perms.GetByOwner(ctx, u.ID)
	require.NoError(t, err)
	prefs, err := permission.DecodePreferences(perm.Preferences)
	require.NoError(t, err)

	assert.Equal(t, "DE", prefs.Country)
	assert.Equal(t, 20, prefs.Age.Min, "minimum below 18 is ignored")
	assert.Equal(t, 40, prefs.Age.Max)
	assert.Equal(t, "all", prefs.Sex, "untouched fields survive the patch")
}

func TestLoadProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.signupVerified(t)

	profile, err := f.svc.LoadProfile(ctx, u.ID)
	require.NoError(t, err)

	assert.Equal(t, u.ID, profile.ID)
	assert.True(t, profile.EmailVerified)
	assert.Equal(t, "Nora", profile.DisplayName)
	assert.Equal(t, u.CreatedAt.UnixMilli(), profile.CreatedAt)
	require.NotNil(t, profile.Permission)
	assert.True(t, profile.Permission.UnderReview)
	require.NotNil(t, profile.Permission.Preferences)
	assert.Equal(t, "all", profile.Permission.Preferences.Sex)
}
