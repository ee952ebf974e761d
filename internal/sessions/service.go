// Package sessions issues and validates the time-boxed bearer tokens that
// let a customer view and accept a proposal without an account.
package sessions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cabinetworks/contractor-backend/internal/events"
	"github.com/cabinetworks/contractor-backend/internal/proposals"
	"github.com/cabinetworks/contractor-backend/internal/users"
	"github.com/cabinetworks/contractor-backend/pkg/db"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"github.com/cabinetworks/contractor-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultTTL          = 24 * time.Hour
	maxIssueAttempts    = 3
	tokenHashConstraint = "proposal_sessions_token_hash_key"
)

var errTokenCollision = errors.New("token hash already issued")

// ErrInvalidSession is returned for every rejected token so callers cannot
// tell unknown, expired and foreign tokens apart.
func ErrInvalidSession() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired session")
}

// IssueInput describes a new session.
type IssueInput struct {
	ProposalID    int64
	CustomerEmail string
	Principal     proposals.Principal
	IP            string
}

// Issued is returned once; the raw token is never stored.
type Issued struct {
	ID        uuid.UUID `json:"id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service manages proposal sessions.
type Service struct {
	db        *gorm.DB
	proposals *proposals.Repository
	users     *users.Repository
	healer    *db.SchemaHealer
	publisher events.Publisher
	logg      *logger.Logger
	ttl       time.Duration
	now       func() time.Time
	generate  func() (string, error)
}

// NewService wires the session service. ttl <= 0 uses 24h.
func NewService(conn *gorm.DB, proposalRepo *proposals.Repository, userRepo *users.Repository, healer *db.SchemaHealer, publisher events.Publisher, ttl time.Duration, logg *logger.Logger) (*Service, error) {
	if conn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database required")
	}
	if proposalRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "proposal repository required")
	}
	if userRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user repository required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{
		db:        conn,
		proposals: proposalRepo,
		users:     userRepo,
		healer:    healer,
		publisher: publisher,
		logg:      logg,
		ttl:       ttl,
		now:       time.Now,
		generate:  security.GenerateToken,
	}, nil
}

// Issue creates a session for the proposal. The first session on a draft
// proposal moves it to sent in the same transaction.
func (s *Service) Issue(ctx context.Context, in IssueInput) (*Issued, error) {
	if _, err := s.users.RequireActive(ctx, in.Principal.UserID); err != nil {
		return nil, err
	}
	proposal, err := s.proposals.FindByID(ctx, in.ProposalID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "proposal not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load proposal")
	}
	if err := proposals.Authorize(in.Principal, proposal); err != nil {
		return nil, err
	}
	if proposal.Status != enums.ProposalStatusDraft && proposal.Status != enums.ProposalStatusSent {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "proposal can no longer be shared").
			WithDetails(map[string]any{"status": proposal.Status})
	}

	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		issued, sent, err := s.tryIssue(ctx, proposal, in)
		if errors.Is(err, errTokenCollision) || (err != nil && db.IsUniqueViolation(err, tokenHashConstraint)) {
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(s.logg.WithProposalID(ctx, proposal.ID), "attempt", attempt), "sessions.issue.token_collision")
			}
			continue
		}
		if err != nil {
			if pkgerrors.As(err) != nil {
				return nil, err
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue session")
		}
		if sent != nil && s.publisher != nil {
			s.publisher.PublishAsync(ctx, *sent)
		}
		return issued, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique session token")
}

func (s *Service) tryIssue(ctx context.Context, proposal *models.Proposal, in IssueInput) (*Issued, *events.ProposalSent, error) {
	token, err := s.generate()
	if err != nil {
		return nil, nil, err
	}
	hash, err := security.HashToken(token)
	if err != nil {
		return nil, nil, err
	}

	now := s.now().UTC()
	createdBy := in.Principal.UserID
	session := &models.ProposalSession{
		ProposalID:      proposal.ID,
		TokenHash:       hash,
		CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
		ExpiresAt:       now.Add(s.ttl),
		CreatedByUserID: &createdBy,
		CreatedAt:       now,
	}

	var sent *events.ProposalSent
	err = s.healer.Run(ctx, func() error {
		sent = nil
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing int64
			if err := tx.Model(&models.ProposalSession{}).Where("token_hash = ?", hash).Count(&existing).Error; err != nil {
				return err
			}
			if existing > 0 {
				return errTokenCollision
			}
			session.ID = uuid.Nil
			if err := tx.Create(session).Error; err != nil {
				return err
			}
			if proposal.Status != enums.ProposalStatusDraft {
				return nil
			}
			moved, err := s.proposals.WithTx(tx).MarkSent(ctx, proposal.ID, now)
			if err != nil {
				return err
			}
			if moved {
				sent = &events.ProposalSent{
					ProposalID: proposal.ID,
					GroupID:    proposal.OwnerGroupID,
					SessionID:  session.ID,
					From:       enums.ProposalStatusDraft,
					To:         enums.ProposalStatusSent,
					Actor:      events.Actor{Type: enums.ActorTypeUser, UserID: &createdBy, IP: in.IP},
					SentAt:     now,
				}
			}
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return &Issued{ID: session.ID, Token: token, ExpiresAt: session.ExpiresAt}, sent, nil
}

// Validate returns the live session for token on proposalID. Unknown,
// expired and other-proposal tokens all yield ErrInvalidSession.
func (s *Service) Validate(ctx context.Context, proposalID int64, token string) (*models.ProposalSession, error) {
	hash, err := security.HashToken(strings.TrimSpace(token))
	if err != nil {
		return nil, ErrInvalidSession()
	}

	var session models.ProposalSession
	err = s.healer.Run(ctx, func() error {
		return s.db.WithContext(ctx).Where("token_hash = ?", hash).Limit(1).Find(&session).Error
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session")
	}

	now := s.now().UTC()
	if session.ID == uuid.Nil || session.ProposalID != proposalID || !security.EqualHash(session.TokenHash, hash) || session.Expired(now) {
		return nil, ErrInvalidSession()
	}

	if err := s.db.WithContext(ctx).Model(&models.ProposalSession{}).Where("id = ?", session.ID).Update("last_used_at", now).Error; err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "sessions.touch.failed")
	}
	session.LastUsedAt = &now
	return &session, nil
}
