// Package adapter provides implementations of external interfaces that other domains need.
// The auth domain provides adapters that satisfy consumer-driven interfaces
// defined by other domains.
package adapter

import (
	"context"

	"archi_crm_backend/internal/auth/repository"
	"archi_crm_backend/internal/notification/dispatch"
)

// RecipientDirectory implements dispatch.Directory using the users table.
type RecipientDirectory struct {
	repo repository.UserReader
}

func NewRecipientDirectory(repo repository.UserReader) *RecipientDirectory {
	return &RecipientDirectory{repo: repo}
}

// ResolveRecipient accepts a user id or a display name.
func (d *RecipientDirectory) ResolveRecipient(ctx context.Context, ref string) (dispatch.Recipient, error) {
	user, err := d.repo.ResolveUser(ctx, ref)
	if err != nil {
		return dispatch.Recipient{}, err
	}

	r := dispatch.Recipient{
		UserID:         user.ID,
		Name:           user.Name,
		Email:          user.Email,
		NotifyWhatsApp: user.NotifyWhatsApp,
		NotifySMS:      user.NotifySMS,
		NotifyEmail:    user.NotifyEmail,
	}
	if user.Phone != nil {
		r.Phone = *user.Phone
	}
	return r, nil
}

var _ dispatch.Directory = (*RecipientDirectory)(nil)
