// Package directory answers who a caller is and who owns a slot.
package directory

import (
	"context"
	"errors"

	slotserrors "slotswap/internal/slots/errors"
	"slotswap/internal/slots/repository"
	"slotswap/pkg/auth"
	apperrors "slotswap/pkg/errors"
	"slotswap/pkg/model"
)

type Directory interface {
	// CurrentOwner reports the owner of slotID as stored right now.
	CurrentOwner(ctx context.Context, slotID string) (model.Principal, error)
	Authenticate(ctx context.Context, credential string) (model.Principal, error)
}

type directory struct {
	slots  repository.SlotRepository
	tokens *auth.TokenIssuer
}

func New(slots repository.SlotRepository, tokens *auth.TokenIssuer) Directory {
	return &directory{slots: slots, tokens: tokens}
}

func (d *directory) CurrentOwner(ctx context.Context, slotID string) (model.Principal, error) {
	slot, err := d.slots.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return model.Principal{}, apperrors.NotFoundWithID("Slot", slotID)
		}
		return model.Principal{}, apperrors.Internal("Failed to look up slot owner", err)
	}
	return model.Principal{ID: slot.Owner}, nil
}

func (d *directory) Authenticate(ctx context.Context, credential string) (model.Principal, error) {
	p, err := d.tokens.Parse(credential)
	if err != nil {
		if errors.Is(err, auth.ErrMissingToken) {
			return model.Principal{}, apperrors.Unauthorized("Missing bearer token")
		}
		return model.Principal{}, apperrors.Unauthorized("Invalid or expired token")
	}
	return p, nil
}
