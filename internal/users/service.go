package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrNoProfileForPhone indicates no profile row carries the normalized
	// phone number, so no email can be resolved for it.
	ErrNoProfileForPhone = errors.New("users: no profile for phone")
	// ErrInvalidProfile indicates the provisioning input lacked a usable
	// identity identifier.
	ErrInvalidProfile = errors.New("users: invalid profile")
)

// ServiceConfig describes the dependencies required by the profile service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service manages public profile rows: idempotent provisioning after
// sign-up and the phone-to-email resolution used by identifier sign-in.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// NewService constructs the profile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, now: clock}, nil
}

// EnsureProfile guarantees a profile row exists for the identity. A row that
// is already present is a no-op success, which makes retried sign-up flows
// and duplicate invocations safe.
func (s *Service) EnsureProfile(ctx context.Context, identityID, email, displayName string) (User, error) {
	id := normalize(identityID)
	if id == "" {
		return User{}, ErrInvalidProfile
	}

	var existing User
	err := s.db.WithContext(ctx).
		Where("identity_id = ?", id).
		First(&existing).
		Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, err
	}

	profile := User{
		ID:         uuid.NewString(),
		IdentityID: id,
		Email:      normalize(email),
		FullName:   normalize(displayName),
		CreatedAt:  s.now(),
		UpdatedAt:  s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		// A concurrent provisioner may have won the insert race; the row
		// existing is still a success for this call.
		var raced User
		lookupErr := s.db.WithContext(ctx).
			Where("identity_id = ?", id).
			First(&raced).
			Error
		if lookupErr == nil {
			return raced, nil
		}
		return User{}, err
	}
	return profile, nil
}

// EmailByPhone resolves a normalized phone number to the email on its
// profile row. The match is exact: callers must normalize before calling.
func (s *Service) EmailByPhone(ctx context.Context, normalizedPhone string) (string, error) {
	phone := normalize(normalizedPhone)
	if phone == "" {
		return "", ErrNoProfileForPhone
	}

	var profile User
	err := s.db.WithContext(ctx).
		Where("phone = ?", phone).
		First(&profile).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoProfileForPhone
	}
	if err != nil {
		return "", err
	}
	if profile.Email == "" {
		return "", ErrNoProfileForPhone
	}
	return profile.Email, nil
}

// List returns all profile rows ordered by creation time.
func (s *Service) List(ctx context.Context) ([]User, error) {
	var profiles []User
	err := s.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&profiles).
		Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// CountByRole tallies profile rows per stored role name. Rows without a
// role are counted under "author", matching the coercion applied to
// authorization checks.
func (s *Service) CountByRole(ctx context.Context) (map[string]int64, error) {
	type roleCount struct {
		Role  string
		Count int64
	}
	var rows []roleCount
	err := s.db.WithContext(ctx).
		Model(&User{}).
		Select("role, count(*) as count").
		Group("role").
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		name := row.Role
		if name == "" {
			name = "author"
		}
		counts[name] += row.Count
	}
	return counts, nil
}

// SyncAttributes copies refreshed identity attributes onto the profile row.
// Empty incoming fields leave the stored values untouched.
func (s *Service) SyncAttributes(ctx context.Context, identityID, email, phone, fullName, role, affiliation string) error {
	id := normalize(identityID)
	if id == "" {
		return ErrInvalidProfile
	}

	updates := map[string]interface{}{}
	if value := normalize(email); value != "" {
		updates["email"] = value
	}
	if value := normalize(phone); value != "" {
		updates["phone"] = value
	}
	if value := normalize(fullName); value != "" {
		updates["full_name"] = value
	}
	if value := normalize(role); value != "" {
		updates["role"] = value
	}
	if value := normalize(affiliation); value != "" {
		updates["affiliation"] = value
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = s.now()

	return s.db.WithContext(ctx).
		Model(&User{}).
		Where("identity_id = ?", id).
		Updates(updates).
		Error
}
