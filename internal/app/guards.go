package app

import (
	"fmt"

	"midtown_book/internal/domain"
)

func requireWriter(p domain.Principal) error {
	if p.UserID == "" {
		return domain.ErrUnauthorized
	}
	if !p.CanWrite() {
		return fmt.Errorf("%w: account is %s", domain.ErrForbidden, p.Status)
	}
	return nil
}

func requireAdmin(p domain.Principal) error {
	if err := requireWriter(p); err != nil {
		return err
	}
	if !p.IsAdmin() {
		return fmt.Errorf("%w: admin only", domain.ErrForbidden)
	}
	return nil
}

// requireOwner passes the listing's verified owner and admins.
func requireOwner(p domain.Principal, b domain.Business) error {
	if err := requireWriter(p); err != nil {
		return err
	}
	if !b.OwnedBy(p.UserID) && !p.IsAdmin() {
		return fmt.Errorf("%w: not the owner of business %d", domain.ErrForbidden, b.ID)
	}
	return nil
}
