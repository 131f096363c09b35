package services

import (
	"context"
	"fmt"

	"openthink/internal/apperr"
	"openthink/internal/db"
	"openthink/internal/models"
	"openthink/internal/store"
	"openthink/internal/utils"

	"go.uber.org/zap"
)

const (
	RootPostTitle = "Welcome to Openthink!"
	RootPostBody  = "Browse these posts or submit your own!"
)

// AdminAccount is the account that owns the root post.
type AdminAccount struct {
	Username string
	Email    string
	Password string
}

// Bootstrap prepares the schema and seeds the admin user and the root post.
// With drop set every table is dropped first. Seeding is skipped when the
// root post already exists, so the call is safe on every start.
func Bootstrap(ctx context.Context, s *store.Store, admin AdminAccount, drop bool, log *zap.Logger) error {
	conn := s.DB().WithContext(ctx)
	if drop {
		log.Warn("Dropping all tables")
		if err := db.DropAll(conn); err != nil {
			return err
		}
	}
	if err := db.Migrate(conn); err != nil {
		return err
	}

	seeded, err := s.Posts.Exists(ctx, "id = ?", models.RootPostID)
	if err != nil {
		return fmt.Errorf("check root post: %w", err)
	}
	if seeded {
		log.Info("Root post present, skipping seed")
		return nil
	}

	var hash *string
	if admin.Password != "" {
		h, err := utils.HashPassword(admin.Password)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		hash = &h
	}

	return s.Transaction(ctx, func(tx *store.Store) error {
		user, err := tx.FindUserByUsername(ctx, admin.Username)
		if apperr.IsKind(err, apperr.KindNotFound) {
			user, err = tx.CreateUser(ctx, admin.Username, admin.Email, hash)
			if err != nil {
				return fmt.Errorf("create admin user: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("find admin user: %w", err)
		}
		user.IsAdmin = true
		user.Active = true
		if err := tx.Users.Save(ctx, user); err != nil {
			return fmt.Errorf("promote admin user: %w", err)
		}

		root, err := tx.CreatePost(ctx, RootPostTitle, RootPostBody, user.ID)
		if err != nil {
			return fmt.Errorf("create root post: %w", err)
		}
		if root.ID != models.RootPostID {
			return fmt.Errorf("root post got id %d, want %d", root.ID, models.RootPostID)
		}
		log.Info("Seeded root post", zap.String("admin", user.Username), zap.Uint("post_id", root.ID))
		return nil
	})
}
