package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/templui/campus/internal/apperrors"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/repository"
	"github.com/templui/campus/internal/validation"
)

// ProfilePatch is a partial update; nil fields are left unchanged and an
// empty string clears an optional field.
type ProfilePatch struct {
	Name       *string
	Department *string
	Year       *string
	Bio        *string
	Phone      *string
	AvatarURL  *string
}

type ProfileService struct {
	profileRepo repository.ProfileRepository
}

func NewProfileService(profileRepo repository.ProfileRepository) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
	}
}

func (s *ProfileService) ByID(ctx context.Context, id string) (*model.Profile, error) {
	profile, err := s.profileRepo.ByID(ctx, id)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return nil, apperrors.NotFoundf("Profile not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

func (p ProfilePatch) validate() error {
	if p.Name != nil {
		if err := validation.ValidateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Bio != nil {
		if err := validation.ValidateOptionalText("bio", *p.Bio, 500); err != nil {
			return err
		}
	}
	if p.Department != nil {
		if err := validation.ValidateOptionalText("department", *p.Department, 100); err != nil {
			return err
		}
	}
	if p.Year != nil {
		if err := validation.ValidateOptionalText("year", *p.Year, 20); err != nil {
			return err
		}
	}
	if p.Phone != nil {
		return validation.ValidatePhone(*p.Phone)
	}
	return nil
}

// Update changes the profile only when requesterID owns it.
func (s *ProfileService) Update(ctx context.Context, id string, patch ProfilePatch, requesterID string) (*model.Profile, error) {
	if id != requesterID {
		return nil, apperrors.NotFoundf("Profile not found or not yours", repository.ErrProfileNotFound)
	}
	if err := patch.validate(); err != nil {
		return nil, invalid(err)
	}

	fields := repository.ProfileFields{
		Name:       trimmed(patch.Name),
		Department: trimmed(patch.Department),
		Year:       trimmed(patch.Year),
		Bio:        trimmed(patch.Bio),
		Phone:      trimmed(patch.Phone),
		AvatarURL:  trimmed(patch.AvatarURL),
	}
	if fields.IsEmpty() {
		return nil, apperrors.Validationf("nothing to update")
	}

	profile, err := s.profileRepo.Update(ctx, id, fields)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return nil, apperrors.NotFoundf("Profile not found or not yours", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return profile, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
