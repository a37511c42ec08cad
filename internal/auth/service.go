package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
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

// Faults shared with the handlers. Identity of a fault is its
// (domain, layer, code) tuple, so these double as errors.Is targets.
var (
	ErrEmailTaken         = fault.New(fault.KindConflict, "user", "api", 1027)
	ErrInvalidSignup      = fault.New(fault.KindInvalidInput, "user", "api", 1028)
	ErrWrongCredentials   = fault.New(fault.KindUnauthorized, "user", "controller", 1012)
	ErrAccountNotFound    = fault.New(fault.KindNotFound, "user", "controller", 1010)
	ErrTokenDesync        = fault.New(fault.KindConflict, "user", "controller", 1011)
	ErrInvalidSession     = fault.New(fault.KindUnauthorized, "user", "controller", 1014)
	ErrEmailNotVerified   = fault.New(fault.KindUnauthorized, "user", "api", 1004)
	ErrUnknownProduct     = fault.New(fault.KindInvalidInput, "user", "api", 1020)
	ErrNotEnoughCandy     = fault.New(fault.KindForbidden, "user", "api", 1021)
	ErrPasswordMismatch   = fault.New(fault.KindUnauthorized, "user", "api", 1024)
	ErrIdentityMismatch   = fault.New(fault.KindForbidden, "user", "api", 1025)
	ErrUnknownReviewMode  = fault.New(fault.KindInvalidInput, "user", "api", 1016)
	ErrReviewTargetLost   = fault.New(fault.KindNotFound, "user", "api", 1015)
	ErrPreferencesMissing = fault.New(fault.KindNotFound, "user", "api", 1023)
)

const (
	minPasswordLength = 8
	minSignupAge      = 18
	birthLayout       = "2006/01/02"
)

// Service orchestrates the identity workflows. Every workflow that mutates
// more than one record runs inside a single transaction; notifications are
// dispatched only after that transaction returned without error.
type Service struct {
	db       *bun.DB
	users    *user.Repository
	perms    *permission.Repository
	nonces   *nonce.Service
	sessions *SessionService
	sender   email.Sender
	catalog  *product.Catalog
	logger   *logging.Logger

	backendURL  string
	frontendURL string
	reviewEmail string
	saltLength  int
	saltClasses string
	now         func() time.Time
}

func NewService(
	db *bun.DB,
	users *user.Repository,
	perms *permission.Repository,
	nonces *nonce.Service,
	sessions *SessionService,
	sender email.Sender,
	catalog *product.Catalog,
	logger *logging.Logger,
	backendURL, frontendURL, reviewEmail string,
	saltLength int,
	saltClasses string,
) *Service {
	return &Service{
		db:          db,
		users:       users,
		perms:       perms,
		nonces:      nonces,
		sessions:    sessions,
		sender:      sender,
		catalog:     catalog,
		logger:      logger,
		backendURL:  backendURL,
		frontendURL: frontendURL,
		reviewEmail: reviewEmail,
		saltLength:  saltLength,
		saltClasses: saltClasses,
		now:         time.Now,
	}
}

// WithClock overrides the service clock, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SignupParams is the normalized signup input.
type SignupParams struct {
	Email                    string `json:"email"`
	Password                 string `json:"password"`
	DisplayName              string `json:"display_name"`
	Country                  string `json:"country"`
	Locality                 string `json:"locality"`
	AdministrativeAreaLevel1 string `json:"administrative_area_level_1"`
	AdministrativeAreaLevel2 string `json:"administrative_area_level_2"`
	Birth                    string `json:"birth"`
	Sex                      string `json:"sex"`
	Role                     string `json:"role"`
}

func (p *SignupParams) validate(now time.Time) (int, error) {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Country = strings.ToUpper(strings.TrimSpace(p.Country))

	if p.Email == "" || p.Password == "" {
		return 0, ErrInvalidSignup
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return 0, ErrInvalidSignup
	}
	if len(p.Password) < minPasswordLength {
		return 0, ErrInvalidSignup
	}
	if p.Sex != "male" && p.Sex != "female" {
		return 0, ErrInvalidSignup
	}

	// only the member profiles may be chosen; admin is assigned out of band
	switch database.Role(p.Role) {
	case "":
		p.Role = string(database.RoleBaby)
	case database.RoleBaby, database.RoleDaddy:
	default:
		return 0, ErrInvalidSignup
	}

	birth, err := time.Parse(birthLayout, p.Birth)
	if err != nil {
		return 0, ErrInvalidSignup
	}
	age := yearsBetween(birth, now)
	if age < minSignupAge {
		return 0, ErrInvalidSignup
	}
	return age, nil
}

func yearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	if to.YearDay() < from.YearDay() {
		years--
	}
	return years
}

// Signup creates the user, its permission record, and the three action
// tokens (verify-email, pass-review, unpass-review) in one transaction, then
// dispatches the welcome, verification and moderator-review notifications.
// Any failure inside the transaction leaves no partial state behind.
func (s *Service) Signup(ctx context.Context, params SignupParams) (*database.User, error) {
	age, err := params.validate(s.now())
	if err != nil {
		return nil, err
	}

	if count, err := s.users.CountByEmail(ctx, params.Email); err != nil {
		return nil, fault.Wrap(err, fault.KindInternal, "user", "api", 1002)
	} else if count > 0 {
		return nil, ErrEmailTaken
	}

	salt, err := GenerateSalt(s.saltLength, s.saltClasses)
	if err != nil {
		return nil, fault.Wrap(err, fault.KindInternal, "user", "api", 1002)
	}
	digest, err := HashPassword(params.Password, salt)
	if err != nil {
		return nil, err
	}

	u := &database.User{
		Email:                    params.Email,
		Password:                 digest,
		Salt:                     salt,
		DisplayName:              params.DisplayName,
		Country:                  params.Country,
		Locality:                 params.Locality,
		AdministrativeAreaLevel1: params.AdministrativeAreaLevel1,
		AdministrativeAreaLevel2: params.AdministrativeAreaLevel2,
		Birth:                    params.Birth,
		Age:                      age,
		Sex:                      params.Sex,
		Role:                     database.Role(params.Role),
	}

	var verifyToken, passToken, unpassToken nonce.Minted

	err = database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) error {
		created, err := s.users.WithTx(tx).Create(ctx, u)
		if err != nil {
			if errors.Is(err, user.ErrDuplicateEmail) {
				return ErrEmailTaken
			}
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1002)
		}
		u = created

		if _, err := s.perms.WithTx(tx).Create(ctx, &database.Permission{
			OwnerID:   u.ID,
			ExpiredAt: s.now(),
		}); err != nil {
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1002)
		}

		nonces := s.nonces.WithTx(tx)
		if verifyToken, err = nonces.Mint(u.ID, database.ActionVerifyEmail); err != nil {
			return err
		}
		if passToken, err = nonces.Mint(u.ID, database.ActionPassReview); err != nil {
			return err
		}
		if unpassToken, err = nonces.Mint(u.ID, database.ActionUnpassReview); err != nil {
			return err
		}

		for _, minted := range []nonce.Minted{verifyToken, passToken, unpassToken} {
			if _, err := nonces.Create(ctx, minted); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	profile, _ := json.Marshal(map[string]string{
		"email":        u.Email,
		"display_name": u.DisplayName,
		"country":      u.Country,
		"sex":          u.Sex,
		"birth":        u.Birth,
	})

	s.dispatch(email.TemplateWelcome, email.Message{
		To:     u.Email,
		ToName: u.DisplayName,
		Substitutions: email.Substitutions{
			"display_name": u.DisplayName,
		},
	})
	s.dispatch(email.TemplateVerifyEmail, email.Message{
		To:     u.Email,
		ToName: u.DisplayName,
		Substitutions: email.Substitutions{
			"display_name":      u.DisplayName,
			"verify_email_link": fmt.Sprintf("%s/verify-email?nonce=%s", s.frontendURL, verifyToken.Value),
		},
	})
	s.dispatch(email.TemplateReview, email.Message{
		To:     s.reviewEmail,
		ToName: "Moderation",
		Substitutions: email.Substitutions{
			"data":              string(profile),
			"pass_review_url":   fmt.Sprintf("%s/v1/users/review?mode=pass&nonce=%s", s.backendURL, passToken.Value),
			"unpass_review_url": fmt.Sprintf("%s/v1/users/review?mode=unpass&nonce=%s", s.backendURL, unpassToken.Value),
		},
	})

	return u, nil
}

// LoginWithPassword authenticates by email/password and returns the user
// with a usable session token: reused when the stored one still verifies,
// rotated when absent or stale, rejected with a conflict when the stored
// token decodes to a different identity.
func (s *Service) LoginWithPassword(ctx context.Context, emailAddr, password string) (*database.User, error) {
	if emailAddr == "" || password == "" {
		return nil, fault.New(fault.KindInvalidInput, "user", "controller", 1009)
	}

	var u *database.User
	err := database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) error {
		users := s.users.WithTx(tx)

		found, err := users.GetByEmail(ctx, emailAddr)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return ErrAccountNotFound
			}
			return fault.Wrap(err, fault.KindInternal, "user", "controller", 1013)
		}

		valid, err := VerifyPassword(found.Password, found.Salt, password)
		if err != nil {
			return err
		}
		if !valid {
			return ErrWrongCredentials
		}

		rotate := false
		if found.SessionToken == nil {
			rotate = true
		} else {
			result := s.sessions.Verify(*found.SessionToken, found.Password)
			switch {
			case !result.Valid:
				rotate = true
			case result.UserID != found.ID.String():
				return ErrTokenDesync
			}
		}

		if rotate {
			token, err := s.sessions.Issue(found.ID.String(), found.Password)
			if err != nil {
				return err
			}
			found.SessionToken = &token
			if _, err := users.Update(ctx, found, "session_token"); err != nil {
				return fault.Wrap(err, fault.KindInternal, "user", "controller", 1017)
			}
		}

		u = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// LoginWithToken resolves a user by session token (permission eager-loaded)
// and verifies the token against the user's current password digest.
func (s *Service) LoginWithToken(ctx context.Context, token string) (*database.User, error) {
	u, err := s.users.GetBySessionToken(ctx, token)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fault.Wrap(err, fault.KindInternal, "user", "controller", 1015)
	}

	if u.SessionToken == nil || !s.sessions.Verify(*u.SessionToken, u.Password).Valid {
		return nil, ErrInvalidSession
	}
	return u, nil
}

// Logout clears the target's session token.
func (s *Service) Logout(ctx context.Context, target *database.User) error {
	return database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) error {
		target.SessionToken = nil
		if _, err := s.users.WithTx(tx).Update(ctx, target, "session_token"); err != nil {
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1005)
		}
		return nil
	})
}

// VerifyEmail flips email_verified and consumes the nonce in one transaction.
func (s *Service) VerifyEmail(ctx context.Context, userID uuid.UUID, record *database.Nonce) error {
	return database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) error {
		if _, err := s.users.WithTx(tx).UpdateByID(ctx, userID, func(u *database.User) {
			u.EmailVerified = true
		}, "email_verified"); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return fault.New(fault.KindNotFound, "user", "api", 1006)
			}
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1007)
		}

		if _, err := s.nonces.WithTx(tx).Repo().MarkUsed(ctx, record, s.now()); err != nil {
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1007)
		}
		return nil
	})
}

// ResendVerification mints and persists a fresh verify-email token, then
// re-sends the verification notification.
func (s *Service) ResendVerification(ctx context.Context, emailAddr string) error {
	u, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return fault.New(fault.KindNotFound, "user", "api", 1008)
		}
		return fault.Wrap(err, fault.KindInternal, "user", "api", 1009)
	}

	var minted nonce.Minted
	err = database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) error {
		nonces := s.nonces.WithTx(tx)
		if minted, err = nonces.Mint(u.ID, database.ActionVerifyEmail); err != nil {
			return err
		}
		_, err = nonces.Create(ctx, minted)
		return err
	})
	if err != nil {
		return err
	}

	s.dispatch(email.TemplateVerifyEmail, email.Message{
		To:     u.Email,
		ToName: u.DisplayName,
		Substitutions: email.Substitutions{
			"display_name":      u.DisplayName,
			"verify_email_link": fmt.Sprintf("%s/verify-email?nonce=%s", s.frontendURL, minted.Value),
		},
	})
	return nil
}

// ForgetPassword mints and persists a forget-password token and mails the
// reset link.
func (s *Service) ForgetPassword(ctx context.Context, emailAddr string) error {
	u, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return fault.New(fault.KindNotFound, "user", "api", 1010)
		}
		return fault.Wrap(err, fault.KindInternal, "user", "api", 1011)
	}

	var minted nonce.Minted
	err = database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) error {
		nonces := s.nonces.WithTx(tx)
		if minted, err = nonces.Mint(u.ID, database.ActionForgetPassword); err != nil {
			return err
		}
		_, err = nonces.Create(ctx, minted)
		return err
	})
	if err != nil {
		return err
	}

	s.dispatch(email.TemplateForgetPassword, email.Message{
		To:     u.Email,
		ToName: u.DisplayName,
		Substitutions: email.Substitutions{
			"display_name":        u.DisplayName,
			"reset_password_link": fmt.Sprintf("%s/forget-password?nonce=%s", s.frontendURL, minted.Value),
		},
	})
	return nil
}

// ResetPassword regenerates salt and digest for the token's subject and
// consumes the token. All sessions die implicitly: the session signing
// secret is the password digest that just changed.
func (s *Service) ResetPassword(ctx context.Context, userID uuid.UUID, record *database.Nonce, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fault.New(fault.KindInvalidInput, "user", "api", 1013)
	}

	salt, err := GenerateSalt(s.saltLength, s.saltClasses)
	if err != nil {
		return fault.Wrap(err, fault.KindInternal, "user", "api", 1013)
	}
	digest, err := HashPassword(newPassword, salt)
	if err != nil {
		return err
	}

	return database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) error {
		if _, err := s.users.WithTx(tx).UpdateByID(ctx, userID, func(u *database.User) {
			u.Password = digest
			u.Salt = salt
		}, "password", "salt"); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return fault.New(fault.KindNotFound, "user", "api", 1012)
			}
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1013)
		}

		if _, err := s.nonces.WithTx(tx).Repo().MarkUsed(ctx, record, s.now()); err != nil {
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1013)
		}
		return nil
	})
}

// ReviewMode selects the moderator decision.
type ReviewMode string

const (
	ReviewPass   ReviewMode = "pass"
	ReviewUnpass ReviewMode = "unpass"
)

// Review toggles under_review per the moderator's decision and consumes the
// token, both in one transaction.
func (s *Service) Review(ctx context.Context, mode ReviewMode, userID uuid.UUID, record *database.Nonce) error {
	var underReview bool
	switch mode {
	case ReviewPass:
		underReview = false
	case ReviewUnpass:
		underReview = true
	default:
		return ErrUnknownReviewMode
	}

	return database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) error {
		perms := s.perms.WithTx(tx)

		perm, err := perms.GetByOwner(ctx, userID)
		if err != nil {
			if errors.Is(err, permission.ErrNotFound) {
				return ErrReviewTargetLost
			}
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1017)
		}

		perm.UnderReview = underReview
		if _, err := perms.Update(ctx, perm, "under_review"); err != nil {
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1017)
		}

		if _, err := s.nonces.WithTx(tx).Repo().MarkUsed(ctx, record, s.now()); err != nil {
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1017)
		}
		return nil
	})
}

// Unlock debits candy for the product and extends the entitlement horizon by
// the product's time deltas, both in one transaction. The target must carry
// its permission record. An expired entitlement is fine: this is the
// operation that extends it.
func (s *Service) Unlock(ctx context.Context, target *database.User, productID string) error {
	if target.Permission == nil {
		return fault.New(fault.KindInternal, "user", "api", 1022)
	}

	p, err := s.catalog.Get(productID)
	if err != nil {
		return ErrUnknownProduct
	}
	if target.Candy < p.Cost {
		return ErrNotEnoughCandy
	}

	extended, err := p.Extend(target.Permission.ExpiredAt)
	if err != nil {
		return fault.Wrap(err, fault.KindInternal, "user", "api", 1022)
	}

	return database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) error {
		target.Candy -= p.Cost
		if _, err := s.users.WithTx(tx).Update(ctx, target, "candy"); err != nil {
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1022)
		}

		target.Permission.ExpiredAt = extended
		if _, err := s.perms.WithTx(tx).Update(ctx, target.Permission, "expired_at"); err != nil {
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1022)
		}
		return nil
	})
}

// ChangePassword re-authenticates with the old password, rejects identity
// mismatches, and writes a new digest computed with the existing salt.
func (s *Service) ChangePassword(ctx context.Context, target *database.User, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fault.New(fault.KindInvalidInput, "user", "api", 1026)
	}

	authenticated, err := s.LoginWithPassword(ctx, target.Email, oldPassword)
	if err != nil {
		if errors.Is(err, ErrWrongCredentials) || errors.Is(err, ErrAccountNotFound) {
			return ErrPasswordMismatch
		}
		return err
	}
	if authenticated.ID != target.ID {
		return ErrIdentityMismatch
	}

	// Salt is intentionally not rotated here, matching the established
	// account data; reset-password is the rotation path.
	digest, err := HashPassword(newPassword, target.Salt)
	if err != nil {
		return err
	}

	return database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) error {
		target.Password = digest
		if _, err := s.users.WithTx(tx).Update(ctx, target, "password"); err != nil {
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1026)
		}
		return nil
	})
}

// UpdatePreferences folds the patch into the stored preference blob;
// fields absent from the patch keep their previous values.
func (s *Service) UpdatePreferences(ctx context.Context, targetID uuid.UUID, patch permission.Patch) error {
	return database.RunInTx(ctx, s.db, func(ctx context.Context, tx bun.IDB) error {
		perms := s.perms.WithTx(tx)

		perm, err := perms.GetByOwner(ctx, targetID)
		if err != nil {
			if errors.Is(err, permission.ErrNotFound) {
				return ErrPreferencesMissing
			}
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1023)
		}

		prefs, err := permission.DecodePreferences(perm.Preferences)
		if err != nil {
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1023)
		}

		encoded, err := prefs.Apply(patch).Encode()
		if err != nil {
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1023)
		}

		perm.Preferences = encoded
		if _, err := perms.Update(ctx, perm, "preferences"); err != nil {
			return fault.Wrap(err, fault.KindInternal, "user", "api", 1023)
		}
		return nil
	})
}

// ProfilePermission is the entitlement slice of a profile payload,
// timestamps rendered as epoch milliseconds.
type ProfilePermission struct {
	ExpiredAt         int64                   `json:"expired_at"`
	InfoUnreadMessage bool                    `json:"info_unread_message"`
	InfoSeeProfile    bool                    `json:"info_see_profile"`
	Warning           bool                    `json:"warning"`
	UnderReview       bool                    `json:"under_review"`
	Preferences       *permission.Preferences `json:"preferences"`
}

// Profile is the client-facing user payload.
type Profile struct {
	ID            uuid.UUID          `json:"id"`
	SessionToken  *string            `json:"session_token"`
	EmailVerified bool               `json:"email_verified"`
	DisplayName   string             `json:"display_name"`
	Role          database.Role      `json:"role"`
	Candy         int                `json:"candy"`
	CreatedAt     int64              `json:"created_at"`
	UpdatedAt     int64              `json:"updated_at"`
	Permission    *ProfilePermission `json:"permission,omitempty"`
}

// LoadProfile fetches the user with its permission and renders the payload.
func (s *Service) LoadProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	u, err := s.users.GetByID(ctx, userID, "Permission")
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, fault.New(fault.KindNotFound, "user", "api", 1006)
		}
		return nil, fault.Wrap(err, fault.KindInternal, "user", "api", 1019)
	}
	return s.renderProfile(u)
}

func (s *Service) renderProfile(u *database.User) (*Profile, error) {
	profile := &Profile{
		ID:            u.ID,
		SessionToken:  u.SessionToken,
		EmailVerified: u.EmailVerified,
		DisplayName:   u.DisplayName,
		Role:          u.Role,
		Candy:         u.Candy,
		CreatedAt:     u.CreatedAt.UnixMilli(),
		UpdatedAt:     u.UpdatedAt.UnixMilli(),
	}

	if u.Permission != nil {
		prefs, err := permission.DecodePreferences(u.Permission.Preferences)
		if err != nil {
			return nil, fault.Wrap(err, fault.KindInternal, "user", "api", 1019)
		}
		profile.Permission = &ProfilePermission{
			ExpiredAt:         u.Permission.ExpiredAt.UnixMilli(),
			InfoUnreadMessage: u.Permission.InfoUnreadMessage,
			InfoSeeProfile:    u.Permission.InfoSeeProfile,
			Warning:           u.Permission.Warning,
			UnderReview:       u.Permission.UnderReview,
			Preferences:       &prefs,
		}
	}
	return profile, nil
}

// dispatch fires a notification without blocking the caller. Failures are
// logged; already-committed mutations are never rolled back for them.
func (s *Service) dispatch(templateKey string, msg email.Message) {
	go func() {
		if err := s.sender.Send(context.Background(), templateKey, msg); err != nil {
			s.logger.Warn("notification dispatch failed",
				"template", templateKey,
				"to", msg.To,
				"error", err.Error(),
			)
		}
	}()
}
