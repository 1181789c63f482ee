package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/realtime"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
)

// ProfileFields is a partial update; nil fields are left unchanged.
type ProfileFields struct {
	Name       *string
	Department *string
	Year       *string
	Bio        *string
	Phone      *string
	AvatarURL  *string
}

func (f ProfileFields) IsEmpty() bool {
	return f.Name == nil && f.Department == nil && f.Year == nil && f.Bio == nil && f.Phone == nil && f.AvatarURL == nil
}

type ProfileRepository interface {
	ByID(ctx context.Context, id string) (*model.Profile, error)
	Create(ctx context.Context, profile *model.Profile) error
	Update(ctx context.Context, id string, fields ProfileFields) (*model.Profile, error)
}

type profileRepository struct {
	db  *sqlx.DB
	pub realtime.Publisher
}

func NewProfileRepository(db *sqlx.DB, pub realtime.Publisher) ProfileRepository {
	return &profileRepository{db: db, pub: pub}
}

func (r *profileRepository) ByID(ctx context.Context, id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.GetContext(ctx, &profile, `SELECT * FROM profiles WHERE id = $1`, id)

	if err == sql.ErrNoRows {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *profileRepository) Create(ctx context.Context, profile *model.Profile) error {
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = now
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO profiles (id, email, name, role, department, year, bio, phone, avatar_url, created_at, updated_at)
		VALUES (:id, :email, :name, :role, :department, :year, :bio, :phone, :avatar_url, :created_at, :updated_at)
	`, profile)
	if err != nil {
		return err
	}

	publish(ctx, r.pub, TableProfiles, realtime.Insert, profile.ID, profile, nil)
	return nil
}

// Update changes the profile whose id matches. Callers pass the requesting
// user's id, so a foreign profile is never touched.
func (r *profileRepository) Update(ctx context.Context, id string, fields ProfileFields) (*model.Profile, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	// an empty optional field is stored as NULL
	add := func(column string, v *string) {
		if v == nil {
			return
		}
		sets = append(sets, column+" = ?")
		if *v == "" && column != "name" {
			args = append(args, nil)
		} else {
			args = append(args, *v)
		}
	}
	add("name", fields.Name)
	add("department", fields.Department)
	add("year", fields.Year)
	add("bio", fields.Bio)
	add("phone", fields.Phone)
	add("avatar_url", fields.AvatarURL)

	args = append(args, id)
	query := r.db.Rebind(`UPDATE profiles SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrProfileNotFound
	}

	profile, err := r.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	publish(ctx, r.pub, TableProfiles, realtime.Update, profile.ID, profile, nil)
	return profile, nil
}
