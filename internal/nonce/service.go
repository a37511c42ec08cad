package nonce

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/amoret/amoret/internal/database"
	"github.com/amoret/amoret/internal/fault"
)

// VerifyResult carries the outcome of a token verification: the boolean
// validity, the recovered subject, and the full record so the consuming
// workflow can stamp used_at inside its own transaction.
type VerifyResult struct {
	Valid  bool
	UserID uuid.UUID
	Nonce  *database.Nonce
}

// Service composes the engine with persistence: minting, replay protection
// and per-kind validation.
type Service struct {
	engine *Engine
	repo   *Repository
}

func NewService(engine *Engine, repo *Repository) *Service {
	return &Service{engine: engine, repo: repo}
}

// WithTx returns a service whose repository is bound to the transaction.
func (s *Service) WithTx(tx bun.IDB) *Service {
	return &Service{engine: s.engine, repo: s.repo.WithTx(tx)}
}

// Repo exposes the underlying repository for consumption-marking.
func (s *Service) Repo() *Repository { return s.repo }

// Mint constructs a token for the subject without persisting it.
func (s *Service) Mint(userID uuid.UUID, action database.NonceAction) (Minted, error) {
	if userID == uuid.Nil {
		return Minted{}, fault.New(fault.KindInvalidInput, "nonce", "controller", 1001)
	}
	minted, err := s.engine.Mint(userID.String(), action)
	if err != nil {
		return Minted{}, fault.Wrap(err, fault.KindInvalidInput, "nonce", "controller", 1001)
	}
	return minted, nil
}

// Create persists a minted token.
func (s *Service) Create(ctx context.Context, minted Minted) (*database.Nonce, error) {
	record, err := s.repo.Create(ctx, minted)
	if err != nil {
		if errors.Is(err, ErrEmptyArgument) {
			return nil, fault.Wrap(err, fault.KindInvalidInput, "nonce", "controller", 1000)
		}
		return nil, fault.Wrap(err, fault.KindInternal, "nonce", "controller", 1005)
	}
	return record, nil
}

// Verify looks up the persisted record for a presented token value, rejects
// replays, and validates per kind. The used_at stamp stays untouched here;
// the workflow that acts on the token marks consumption transactionally.
func (s *Service) Verify(ctx context.Context, value string, mode VerifyAction) (*VerifyResult, error) {
	if value == "" || mode == "" {
		return nil, fault.New(fault.KindInvalidInput, "nonce", "controller", 1002)
	}

	record, err := s.repo.GetByValue(ctx, value)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fault.New(fault.KindNotFound, "nonce", "controller", 1003)
		}
		return nil, fault.Wrap(err, fault.KindInternal, "nonce", "controller", 1005)
	}

	if record.UsedAt != nil {
		return nil, fault.New(fault.KindAlreadyUsed, "nonce", "controller", 1004)
	}

	subject, valid, err := s.engine.Validate(record, value, mode)
	if err != nil {
		// A token of the wrong kind or one that does not parse is a failed
		// verification, the same as a forged token.
		if errors.Is(err, errStrategyMismatch) || errors.Is(err, ErrMalformedToken) {
			return &VerifyResult{Valid: false, Nonce: record}, nil
		}
		return nil, fault.Wrap(err, fault.KindInternal, "nonce", "controller", 1005)
	}

	result := &VerifyResult{Valid: valid, Nonce: record}
	if valid {
		userID, err := uuid.Parse(subject)
		if err != nil {
			// decrypted cleanly but not an identity we can act on
			result.Valid = false
			return result, nil
		}
		result.UserID = userID
	}
	return result, nil
}
