package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a token does not resolve to a live session.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore keeps API sessions in Redis keyed by an opaque token.
type SessionStore struct {
	client     redis.Cmdable
	cookieName string
	ttl        time.Duration
	secret     []byte
}

type sessionPayload struct {
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client redis.Cmdable, cookieName, secret string, ttl time.Duration) *SessionStore {
	if cookieName == "" {
		cookieName = "procureflow_session"
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionStore{client: client, cookieName: cookieName, ttl: ttl, secret: []byte(secret)}
}

// Create opens a session for the user and returns its token.
func (s *SessionStore) Create(ctx context.Context, userID int64) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("session: invalid user id %d", userID)
	}
	token := s.generateToken()
	data, err := json.Marshal(sessionPayload{UserID: userID, CreatedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.redisKey(token), data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("session: store: %w", err)
	}
	return token, nil
}

// Lookup resolves a token to its user and slides the expiry forward.
func (s *SessionStore) Lookup(ctx context.Context, token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, ErrSessionNotFound
	}
	payload, err := s.client.Get(ctx, s.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrSessionNotFound
		}
		return 0, err
	}
	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return 0, fmt.Errorf("session: decode: %w", err)
	}
	if stored.UserID <= 0 {
		return 0, ErrSessionNotFound
	}
	_ = s.client.Expire(ctx, s.redisKey(token), s.ttl).Err()
	return stored.UserID, nil
}

// Destroy removes the session.
func (s *SessionStore) Destroy(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.redisKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// TokenFromRequest reads the session token from a bearer header or the
// session cookie, in that order.
func (s *SessionStore) TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(s.cookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// TTL exposes the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func (s *SessionStore) redisKey(token string) string {
	return "session:" + token
}

func (s *SessionStore) generateToken() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	if len(s.secret) > 0 {
		for i := range b {
			b[i] ^= s.secret[i%len(s.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
