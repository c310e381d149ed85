package usecase

import (
	"context"
	"fmt"

	domainBroadcast "github.com/AzielCF/az-relay/domains/broadcast"
	domainCrm "github.com/AzielCF/az-relay/domains/crm"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/AzielCF/az-relay/pkg/utils"
)

type RecipientResolver struct {
	leads domainCrm.ILeadStore
}

func NewRecipientResolver(leads domainCrm.ILeadStore) *RecipientResolver {
	return &RecipientResolver{leads: leads}
}

// Resolve returns the deduplicated digit-only recipients of a request.
// Explicit numbers win over lead statuses when both are given.
func (r *RecipientResolver) Resolve(ctx context.Context, orgID string, request domainBroadcast.SendRequest) ([]string, error) {
	var raw []string
	switch {
	case len(request.Numbers) > 0:
		raw = request.Numbers
	case len(request.Statuses) > 0:
		if r.leads == nil {
			return nil, pkgError.ErrNoSelectionCriteria
		}
		leads, err := r.leads.FindLeadsByStatus(ctx, orgID, request.Statuses)
		if err != nil {
			return nil, fmt.Errorf("failed to load leads by status: %w", err)
		}
		raw = make([]string, 0, len(leads))
		for _, l := range leads {
			raw = append(raw, l.Phone)
		}
	default:
		return nil, pkgError.ErrNoSelectionCriteria
	}

	recipients := FilterRecipients(raw)
	if len(recipients) == 0 {
		return nil, pkgError.ErrNoValidRecipients
	}
	return recipients, nil
}

// FilterRecipients strips non-digits, drops numbers shorter than
// utils.MinPhoneDigits and removes duplicates, keeping first-seen order.
func FilterRecipients(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, n := range raw {
		digits := utils.OnlyDigits(n)
		if len(digits) < utils.MinPhoneDigits {
			continue
		}
		if _, dup := seen[digits]; dup {
			continue
		}
		seen[digits] = struct{}{}
		out = append(out, digits)
	}
	return out
}
