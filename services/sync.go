package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/redwood-webops/ins-display/models"
)

const (
	// syncPageSize is the number of most-recent media items fetched per sync.
	syncPageSize = 10
	// refreshLookahead is how close to expiry a token must be before the
	// scheduled pass refreshes it.
	refreshLookahead = 5 * 24 * time.Hour
)

// SyncService ingests the account's recent media into storage and runs the
// scheduled refresh+sync pass.
type SyncService struct {
	db     *gorm.DB
	client *InstagramClient
	auth   *AuthService
}

func NewSyncService(db *gorm.DB, client *InstagramClient, auth *AuthService) *SyncService {
	return &SyncService{db: db, client: client, auth: auth}
}

// SyncPosts fetches the most recent media page for accessToken and upserts
// posts, carousel children and parent/child relations in one transaction.
// Either the whole page lands or nothing does. Returns the number of
// top-level items processed.
func (s *SyncService) SyncPosts(ctx context.Context, accessToken string) (int, error) {
	items, err := s.client.FetchRecentMedia(ctx, accessToken, syncPageSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			post := models.Post{
				ID:        item.ID,
				Caption:   item.Caption,
				Role:      models.RoleTopLevel,
				MediaType: item.MediaType,
				MediaURL:  item.MediaURL,
				Permalink: item.Permalink,
				Timestamp: item.Timestamp,
			}
			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&post).Error; err != nil {
				return err
			}

			if item.Children == nil {
				continue
			}
			for _, child := range item.Children.Data {
				// The carousel's caption lives on the parent only.
				childPost := models.Post{
					ID:        child.ID,
					Role:      models.RoleChild,
					MediaType: child.MediaType,
					MediaURL:  child.MediaURL,
					Permalink: child.Permalink,
					Timestamp: child.Timestamp,
				}
				if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&childPost).Error; err != nil {
					return err
				}

				relation := models.PostChild{ParentID: item.ID, ChildID: child.ID}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&relation).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	return len(items), nil
}

// RefreshExpiringAccounts is the scheduled pass: for every account whose
// token expires within the lookahead window it refreshes the token and then
// syncs posts with the fresh one. Failures are logged per account and do not
// stop the pass.
func (s *SyncService) RefreshExpiringAccounts(ctx context.Context) {
	cutoff := time.Now().Add(refreshLookahead)

	var accounts []models.Account
	err := s.db.
		Where("access_token <> '' AND access_token_expires_at IS NOT NULL AND access_token_expires_at < ?", cutoff).
		Find(&accounts).Error
	if err != nil {
		log.Printf("❌ scheduled pass: account query failed: %v", err)
		return
	}

	for i := range accounts {
		account := &accounts[i]

		token, _, err := s.auth.RefreshToken(ctx, account)
		if err != nil {
			log.Printf("❌ scheduled pass: refresh failed for account %s: %v", account.ID, err)
			continue
		}
		log.Printf("✅ refreshed token for account %s", account.ID)

		count, err := s.SyncPosts(ctx, token)
		if err != nil {
			log.Printf("❌ scheduled pass: sync failed for account %s: %v", account.ID, err)
			continue
		}
		log.Printf("✅ synced %d posts for account %s", count, account.ID)
	}
}
