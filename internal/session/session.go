// Package session keeps browser sessions in Redis. The cookie carries only a
// signed token whose id names the Redis key.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultCookieName = "shop_session"

type Values struct {
	IsLoggedIn bool                `json:"isLoggedIn"`
	UserID     uuid.UUID           `json:"userId"`
	Flash      map[string][]string `json:"flash,omitempty"`
}

type Session struct {
	ID     string
	Values Values

	isNew   bool
	dirty   bool
	retired string
}

func (s *Session) IsNew() bool { return s.isNew }

func (s *Session) Dirty() bool { return s.dirty }

func (s *Session) LogIn(userID uuid.UUID) {
	s.Values.IsLoggedIn = true
	s.Values.UserID = userID
	s.dirty = true
}

func (s *Session) LogOut() {
	s.Values.IsLoggedIn = false
	s.Values.UserID = uuid.Nil
	s.dirty = true
}

func (s *Session) AddFlash(key, msg string) {
	if s.Values.Flash == nil {
		s.Values.Flash = map[string][]string{}
	}
	s.Values.Flash[key] = append(s.Values.Flash[key], msg)
	s.dirty = true
}

// Flashes returns and removes the messages stored under key.
func (s *Session) Flashes(key string) []string {
	msgs := s.Values.Flash[key]
	if len(msgs) == 0 {
		return nil
	}
	delete(s.Values.Flash, key)
	s.dirty = true
	return msgs
}

// FirstFlash pops the messages under key and returns the first one, if any.
func (s *Session) FirstFlash(key string) string {
	msgs := s.Flashes(key)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[0]
}

type Store struct {
	Redis      *redis.Client
	Secret     []byte
	TTL        time.Duration
	CookieName string
	Secure     bool
}

func (st *Store) cookieName() string {
	if st.CookieName == "" {
		return DefaultCookieName
	}
	return st.CookieName
}

func key(id string) string { return "session:" + id }

// Load returns the session referenced by the request cookie, or a fresh
// unsaved one when the cookie is missing, invalid or expired.
func (st *Store) Load(ctx context.Context, r *http.Request) (*Session, error) {
	ck, err := r.Cookie(st.cookieName())
	if err != nil {
		return st.newSession(), nil
	}

	id, err := st.parse(ck.Value)
	if err != nil {
		return st.newSession(), nil
	}

	raw, err := st.Redis.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return st.newSession(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var vals Values
	if err := json.Unmarshal(raw, &vals); err != nil {
		return st.newSession(), nil
	}
	return &Session{ID: id, Values: vals}, nil
}

func (st *Store) newSession() *Session {
	return &Session{ID: uuid.NewString(), isNew: true}
}

// Renew moves the session to a new id, used after login to avoid fixation.
func (st *Store) Renew(s *Session) {
	if !s.isNew && s.retired == "" {
		s.retired = s.ID
	}
	s.ID = uuid.NewString()
	s.dirty = true
}

// Save persists the values and refreshes the cookie. Sessions that were never
// modified are not written.
func (st *Store) Save(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if !s.dirty {
		return nil
	}

	data, err := json.Marshal(s.Values)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	pipe := st.Redis.TxPipeline()
	if s.retired != "" {
		pipe.Del(ctx, key(s.retired))
	}
	pipe.Set(ctx, key(s.ID), data, st.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	exp := time.Now().Add(st.TTL)
	token, err := st.sign(s.ID, exp)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}
	http.SetCookie(w, CreateCookie(st.cookieName(), token, "/", exp, st.Secure))

	s.isNew = false
	s.dirty = false
	s.retired = ""
	return nil
}

func (st *Store) Destroy(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if err := st.Redis.Del(ctx, key(s.ID)).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	http.SetCookie(w, DeleteCookie(st.cookieName(), "/", st.Secure))
	*s = *st.newSession()
	return nil
}

func (st *Store) sign(id string, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(st.Secret)
}

func (st *Store) parse(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return st.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid session token: %w", err)
	}
	if claims.ID == "" {
		return "", errors.New("session token without id")
	}
	return claims.ID, nil
}

func CreateCookie(name, value, path string, expTime time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func DeleteCookie(name, path string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
