package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role of a user account. Baby and daddy are the two member profiles a
// signup may choose between; admins may act on behalf of other users.
type Role string

const (
	RoleBaby  Role = "baby"
	RoleDaddy Role = "daddy"
	RoleAdmin Role = "admin"
)

// IsPrivileged reports whether the role may operate on other users' records.
func (r Role) IsPrivileged() bool { return r == RoleAdmin }

// NonceAction scopes an action token to exactly one workflow step.
type NonceAction string

const (
	ActionVerifyEmail    NonceAction = "verify-email"
	ActionPassReview     NonceAction = "pass-review"
	ActionUnpassReview   NonceAction = "unpass-review"
	ActionForgetPassword NonceAction = "forget-password"
)

// User is an identity record. The password digest doubles as the signing
// secret of the session token, so rotating the password invalidates every
// outstanding session.
type User struct {
	bun.BaseModel `bun:"table:user,alias:u"`

	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	EmailVerified bool      `bun:"email_verified,notnull,default:false" json:"email_verified"`
	Password      string    `bun:"password,notnull" json:"-"`
	Salt          string    `bun:"salt,notnull" json:"-"`
	SessionToken  *string   `bun:"session_token" json:"-"`

	DisplayName              string `bun:"display_name" json:"display_name"`
	Country                  string `bun:"country" json:"country"`
	Locality                 string `bun:"locality" json:"locality"`
	AdministrativeAreaLevel1 string `bun:"administrative_area_level_1" json:"administrative_area_level_1"`
	AdministrativeAreaLevel2 string `bun:"administrative_area_level_2" json:"administrative_area_level_2"`
	Birth                    string `bun:"birth" json:"birth"`
	Age                      int    `bun:"age,notnull,default:18" json:"age"`
	Sex                      string `bun:"sex,notnull,default:'male'" json:"sex"`
	Role                     Role   `bun:"role,notnull,default:'baby'" json:"role"`
	Candy                    int    `bun:"candy,notnull,default:0" json:"candy"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`

	Permission *Permission `bun:"rel:has-one,join:id=owner_id" json:"permission,omitempty"`
}

// Permission is the per-user entitlement record, created atomically with its
// owner at signup. warning and under_review are access-denying states.
type Permission struct {
	bun.BaseModel `bun:"table:permission,alias:p"`

	ID                uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	OwnerID           uuid.UUID `bun:"owner_id,notnull,unique,type:uuid" json:"owner_id"`
	ExpiredAt         time.Time `bun:"expired_at,notnull,default:current_timestamp" json:"expired_at"`
	InfoUnreadMessage bool      `bun:"info_unread_message,notnull,default:true" json:"info_unread_message"`
	InfoSeeProfile    bool      `bun:"info_see_profile,notnull,default:true" json:"info_see_profile"`
	Warning           bool      `bun:"warning,notnull,default:false" json:"warning"`
	UnderReview       bool      `bun:"under_review,notnull,default:true" json:"under_review"`
	Preferences       string    `bun:"preferences,notnull" json:"preferences"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`

	User *User `bun:"rel:belongs-to,join:owner_id=id" json:"user,omitempty"`
}

// Nonce is a single-use action token. The subject user is recoverable from
// the key/nonce pair, deliberately not a foreign key.
type Nonce struct {
	bun.BaseModel `bun:"table:nonce,alias:n"`

	ID     uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	Key    string      `bun:"key,notnull" json:"-"`
	Value  string      `bun:"nonce,notnull" json:"nonce"`
	Action NonceAction `bun:"action,notnull,default:'verify-email'" json:"action"`
	UsedAt *time.Time  `bun:"used_at" json:"used_at,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}
