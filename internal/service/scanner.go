package service

import (
	"context"
	"errors"

	"github.com/AndreyDiak/muzloto-server/internal/code"
	"github.com/AndreyDiak/muzloto-server/internal/model"
)

// ScanResult is what the staff scanner screen renders after a scan:
// the redemption outcome plus the participant it applied to.
type ScanResult struct {
	Scan        code.Scan
	Redemption  *RedemptionResult
	Participant *model.User
}

// ScannerService normalizes arbitrary scanned input (bare code,
// prefixed payload or deep-link URL) and routes it to the matching
// namespace's redemption on behalf of the scanned participant.
type ScannerService struct {
	redemption *RedemptionService
}

// NewScannerService creates a new ScannerService instance.
func NewScannerService(redemption *RedemptionService) *ScannerService {
	return &ScannerService{redemption: redemption}
}

// Scan handles one scanned string for the given participant. Malformed
// input fails with ErrInvalidCodeFormat before any lookup.
func (s *ScannerService) Scan(ctx context.Context, raw string, participantID int64) (*ScanResult, error) {
	scan, err := code.Parse(raw)
	if err != nil {
		if errors.Is(err, code.ErrNoCode) {
			return nil, ErrInvalidCodeFormat
		}
		return nil, err
	}

	var redemption *RedemptionResult
	switch scan.Hint {
	case model.NamespacePurchase:
		// The shop- payload form names its namespace explicitly, so a
		// scoped lookup is used and a same-valued code in another
		// namespace can never shadow it.
		redemption, err = s.redemption.RedeemPurchaseCode(ctx, scan.Value, participantID)
	default:
		// Prize-prefix hints are advisory only: registration and
		// purchase values can start with B too, so dispatch resolves
		// the namespace from the stored code.
		redemption, err = s.redemption.Redeem(ctx, scan.Value, participantID)
	}
	if err != nil {
		return nil, err
	}

	return &ScanResult{
		Scan:        scan,
		Redemption:  redemption,
		Participant: redemption.User,
	}, nil
}
