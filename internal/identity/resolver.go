package identity

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	usernamePrefix     = "demo-"
	defaultDisplayName = "Demo user"
)

// Cache is an optional read-through cache for token lookups.
type Cache interface {
	GetUserID(ctx context.Context, token string) (uint64, bool, error)
	SetUserID(ctx context.Context, token string, userID uint64) error
}

// Resolver maps opaque session tokens to stable user identities, creating
// them lazily.
type Resolver struct {
	db    *gorm.DB
	cache Cache // may be nil
}

func NewResolver(db *gorm.DB, cache Cache) *Resolver {
	return &Resolver{db: db, cache: cache}
}

// Resolve returns the user id for a session token. An unknown token gets a
// fresh identity; an empty token additionally mints a new token, which is
// returned so the caller can hand it back to the client. Two simultaneous
// tokenless calls mint two distinct identities; that is accepted for
// anonymous first contact.
func (r *Resolver) Resolve(ctx context.Context, token string) (userID uint64, minted string, err error) {
	if token == "" {
		minted = uuid.NewString()
		userID, err = r.create(ctx, minted)
		return userID, minted, err
	}

	if r.cache != nil {
		id, ok, cerr := r.cache.GetUserID(ctx, token)
		if cerr != nil {
			log.Printf("identity: cache lookup failed: %v", cerr)
		} else if ok {
			return id, "", nil
		}
	}

	var u User
	err = r.db.WithContext(ctx).Where("username = ?", usernamePrefix+token).First(&u).Error
	if err == nil {
		r.cacheSet(ctx, token, u.ID)
		return u.ID, "", nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, "", err
	}

	userID, err = r.create(ctx, token)
	return userID, "", err
}

func (r *Resolver) create(ctx context.Context, token string) (uint64, error) {
	u := User{
		Username:    usernamePrefix + token,
		DisplayName: defaultDisplayName,
	}
	if err := r.db.WithContext(ctx).Create(&u).Error; err != nil {
		return 0, err
	}
	r.cacheSet(ctx, token, u.ID)
	return u.ID, nil
}

func (r *Resolver) cacheSet(ctx context.Context, token string, userID uint64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetUserID(ctx, token, userID); err != nil {
		log.Printf("identity: cache store failed: %v", err)
	}
}
