package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/koolaai/support_api/model"
	"github.com/koolaai/support_api/services/abuse"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository handles the restriction flag on locally stored profiles
type ProfileRepository struct {
	BaseRepository
	now func() time.Time
}

var _ abuse.ProfileStore = (*ProfileRepository)(nil)

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{
		BaseRepository: NewBaseRepository(db),
		now:            time.Now,
	}
}

// IsRestricted treats a missing profile as unrestricted.
func (r *ProfileRepository) IsRestricted(ctx context.Context, userID string) (bool, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Select("id", "is_restricted").Where("id = ?", userID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return profile.IsRestricted, nil
}

// Restrict sets the flag, creating the profile row when the identity has never been seen.
func (r *ProfileRepository) Restrict(ctx context.Context, userID, reason string) error {
	now := r.now()
	profile := model.Profile{
		ID:             userID,
		Role:           "user",
		IsRestricted:   true,
		RestrictedAt:   &now,
		RestrictReason: reason,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_restricted":   true,
			"restricted_at":   now,
			"restrict_reason": reason,
			"updated_at":      now,
		}),
	}).Create(&profile).Error
}

// Sync records the email and role carried by a verified token.
func (r *ProfileRepository) Sync(ctx context.Context, userID, email, role string) error {
	now := r.now()
	profile := model.Profile{
		ID:        userID,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "role", "updated_at"}),
	}).Create(&profile).Error
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.WithContext(ctx).Where("id = ?", userID).Take(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}
