// Package profile keeps the app owned part of a user's profile. The email in
// it is a copy of the sign-in email and is refreshed on every read.
package profile

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"lostfound/pkg/apperror"
	"lostfound/pkg/logger"
	"lostfound/pkg/mongodb"
	"lostfound/pkg/user"
)

type Profile struct {
	Uid           string `json:"uid" bson:"uid"`
	Email         string `json:"email" bson:"email"`
	StudentNumber string `json:"studentNumber" bson:"studentNumber"`
}

// Update holds the fields to change; nil fields are left alone. Password is
// the current password and is only checked when the email changes.
type Update struct {
	Email         *string `json:"email"`
	StudentNumber *string `json:"studentNumber"`
	Password      string  `json:"password"`
}

type AuthRepo interface {
	GetByEmailAndPass(context.Context, string, string) (*user.User, error)
	UpdateEmail(context.Context, string, string) error
}

type Service struct {
	profiles mongodb.IMongoCollection
	auth     AuthRepo
}

func NewService(profilesCol *mongo.Collection, auth AuthRepo) *Service {
	return &Service{
		profiles: mongodb.NewCollection(profilesCol),
		auth:     auth,
	}
}

// Get returns the profile of u, creating it on first access.
func (s *Service) Get(ctx context.Context, u *user.User) (*Profile, error) {
	if err := s.upsert(ctx, u.Id, bson.D{{Key: "email", Value: u.Email}}); err != nil {
		return nil, err
	}
	return s.find(ctx, u.Id)
}

// Update applies upd. Changing the email needs the current password; the
// sign-in email is changed first and the profile copy after it.
func (s *Service) Update(ctx context.Context, u *user.User, upd Update) (*Profile, error) {
	set := bson.D{{Key: "email", Value: u.Email}}

	if upd.Email != nil {
		newEmail := strings.TrimSpace(*upd.Email)
		if _, err := mail.ParseAddress(newEmail); err != nil {
			return nil, apperror.ValidationFailed("email", "email is invalid")
		}
		if newEmail != u.Email {
			if _, err := s.auth.GetByEmailAndPass(ctx, u.Email, upd.Password); err != nil {
				logger.Log(ctx).Infof("profile: re-authentication of %s failed: %v", u.Id, err)
				if errors.Is(err, apperror.ErrUnauthorized) {
					return nil, apperror.Reauth("sign in again to change your email")
				}
				return nil, fmt.Errorf("profile: %w", err)
			}
			if err := s.auth.UpdateEmail(ctx, u.Id, newEmail); err != nil {
				return nil, fmt.Errorf("profile: %w", err)
			}
			set = bson.D{{Key: "email", Value: newEmail}}
		}
	}

	if upd.StudentNumber != nil {
		set = append(set, bson.E{Key: "studentNumber", Value: strings.TrimSpace(*upd.StudentNumber)})
	}

	if err := s.upsert(ctx, u.Id, set); err != nil {
		return nil, err
	}
	return s.find(ctx, u.Id)
}

func (s *Service) upsert(ctx context.Context, uid string, set bson.D) error {
	update := bson.D{{Key: "$set", Value: set}}
	if !hasKey(set, "studentNumber") {
		update = append(update, bson.E{Key: "$setOnInsert", Value: bson.D{{Key: "studentNumber", Value: ""}}})
	}

	_, err := s.profiles.UpdateOne(ctx,
		bson.D{{Key: "uid", Value: uid}},
		update,
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("profile: failed saving profile %s: %w", uid, err)
	}
	return nil
}

func (s *Service) find(ctx context.Context, uid string) (*Profile, error) {
	p := new(Profile)
	err := s.profiles.FindOne(ctx, bson.D{{Key: "uid", Value: uid}}).Decode(p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("profile: %w", apperror.NotFound("profile", uid))
	}
	if err != nil {
		return nil, fmt.Errorf("profile: failed reading profile %s: %w", uid, err)
	}
	return p, nil
}

func hasKey(d bson.D, key string) bool {
	for _, e := range d {
		if e.Key == key {
			return true
		}
	}
	return false
}
