package credential

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/oauth2"
)

const (
	keyPrefix = "scribe:cred:"
	nonceSize = 24

	// refresh tokens of the social network stay valid for months when used
	DefaultTTL = 180 * 24 * time.Hour
)

var (
	ErrNotFound = errors.New("credential not found")
	ErrCorrupt  = errors.New("credential could not be decrypted")
)

// Store keeps each user's upstream OAuth token sealed in Redis.
type Store struct {
	rdb *redis.Client
	key [32]byte
	ttl time.Duration
}

func NewStore(rdb *redis.Client, secret string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		rdb: rdb,
		key: sha256.Sum256([]byte(secret)),
		ttl: ttl,
	}
}

func redisKey(userID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, userID)
}

func (s *Store) Save(ctx context.Context, userID int64, token *oauth2.Token) error {
	plain, err := json.Marshal(token)
	if err != nil {
		return err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return err
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &s.key)

	return s.rdb.Set(ctx, redisKey(userID), sealed, s.ttl).Err()
}

func (s *Store) Load(ctx context.Context, userID int64) (*oauth2.Token, error) {
	sealed, err := s.rdb.Get(ctx, redisKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(sealed) < nonceSize {
		return nil, ErrCorrupt
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrCorrupt
	}

	var token oauth2.Token
	if err := json.Unmarshal(plain, &token); err != nil {
		return nil, ErrCorrupt
	}
	return &token, nil
}

func (s *Store) Delete(ctx context.Context, userID int64) error {
	return s.rdb.Del(ctx, redisKey(userID)).Err()
}
