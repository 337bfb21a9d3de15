package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/AndreyDiak/muzloto-server/internal/code"
	"github.com/AndreyDiak/muzloto-server/internal/model"
	"github.com/AndreyDiak/muzloto-server/internal/repository"
)

// IssuerService creates codes, retrying generation against the global
// unique index until a free value is found. Codes of every namespace
// share one character space, so uniqueness is checked across all of
// them at once by the insert itself.
type IssuerService struct {
	codes       *repository.CodeRepository
	numeric     bool
	maxAttempts int
}

// NewIssuerService creates a new IssuerService instance.
func NewIssuerService(codeRepo *repository.CodeRepository, numeric bool, maxAttempts int) *IssuerService {
	if maxAttempts <= 0 {
		maxAttempts = 25
	}
	return &IssuerService{
		codes:       codeRepo,
		numeric:     numeric,
		maxAttempts: maxAttempts,
	}
}

// IssueRegistration issues a registration code for an event.
func (s *IssuerService) IssueRegistration(ctx context.Context, eventID int64, createdBy *int64) (*model.Code, error) {
	return s.issue(ctx, &model.Code{
		Namespace: model.NamespaceRegistration,
		EventID:   &eventID,
		CreatedBy: createdBy,
	})
}

// IssuePurchase issues a purchase code for a catalog item.
func (s *IssuerService) IssuePurchase(ctx context.Context, itemID int64, createdBy *int64) (*model.Code, error) {
	return s.issue(ctx, &model.Code{
		Namespace:     model.NamespacePurchase,
		CatalogItemID: &itemID,
		CreatedBy:     createdBy,
	})
}

// IssuePrize issues a bingo prize code. A nil amount falls back to the
// configured default at redemption time.
func (s *IssuerService) IssuePrize(ctx context.Context, amount *int64, createdBy *int64) (*model.Code, error) {
	return s.issue(ctx, &model.Code{
		Namespace:   model.NamespacePrize,
		CoinsAmount: amount,
		CreatedBy:   createdBy,
	})
}

// issue generates values until the insert lands, up to the bounded
// attempt count. Exhausting attempts is a hard failure, never a silent
// fallback to a colliding value.
func (s *IssuerService) issue(ctx context.Context, template *model.Code) (*model.Code, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		value, err := s.generate(template.Namespace)
		if err != nil {
			return nil, err
		}
		// Numeric generation can land on the reserved test values.
		if code.Reserved(value) {
			continue
		}

		c := *template
		c.Value = value
		created, err := s.codes.Create(ctx, &c)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, repository.ErrDuplicateCode) {
			return nil, err
		}
		log.Debug().
			Str("value", value).
			Str("namespace", string(template.Namespace)).
			Int("attempt", attempt+1).
			Msg("Code collision, retrying")
	}
	return nil, ErrCodeGenerationExhausted
}

func (s *IssuerService) generate(ns model.Namespace) (string, error) {
	// Prize codes keep the B prefix even on numeric deployments so
	// scanners can still hint the namespace.
	if s.numeric && ns != model.NamespacePrize {
		return code.GenerateNumeric()
	}
	return code.Generate(ns)
}
