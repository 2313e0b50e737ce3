package sessions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/gomodule/redigo/redis"

	"lostfound/pkg/apperror"
	. "lostfound/pkg/common"
	"lostfound/pkg/logger"
	"lostfound/pkg/user"
)

const (
	redisNS = "lostfoundSessions:"

	sessionTTL = 90 * 24 * time.Hour
)

type (
	sessionKey string

	SessionManager struct {
		secret []byte
		redis  *redis.Pool
	}

	jwtClaims struct {
		User user.User `json:"user"`
		jwt.StandardClaims
	}
)

const SessionKey sessionKey = "authenticatedUser"

var ErrNoAuth = errors.New("sessions: no session found")

func NewSessionManager(secret string, pool *redis.Pool) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		redis:  pool,
	}
}

func (sm *SessionManager) parse(authHeader string) (*jwtClaims, error) {
	if authHeader == "" {
		return nil, errors.New("sessions: auth header not found")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("sessions: unexpected signing method %v", token.Header["alg"])
			}
			return sm.secret, nil
		})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok {
		return nil, errors.New("sessions: can't cast token to claim")
	}
	if !token.Valid {
		return nil, errors.New("sessions: token is not valid")
	}
	return claims, nil
}

// Returns logged in user if the user from JWT token is valid
// and the session is valid.
func (sm *SessionManager) UserFromToken(ctx context.Context, authHeader string) (*user.User, error) {
	claims, err := sm.parse(authHeader)
	if err != nil {
		return nil, err
	}

	_, redisErr := sm.CheckRedis(ctx, claims.User.Id, claims.Id)
	if redisErr != nil {
		return nil, fmt.Errorf("sessions/manager: Redis session is not valid: %w", redisErr)
	}

	return &claims.User, nil
}

// SignOut drops the session the token belongs to. The token itself stays
// well formed but is rejected from now on.
func (sm *SessionManager) SignOut(ctx context.Context, authHeader string) error {
	claims, err := sm.parse(authHeader)
	if err != nil {
		return fmt.Errorf("sessions/manager: %w", apperror.Unauthorized("not signed in"))
	}

	conn, err := sm.redis.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("sessions/manager: can't get Redis conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("HDEL", redisNS+claims.User.Id, claims.Id); err != nil {
		return fmt.Errorf("sessions/manager: failed HDEL from Redis: %w", err)
	}
	return nil
}

// Goes through all user sessions and removes expired ones.
func (sm *SessionManager) CleanupUserSessions(ctx context.Context, userId string) error {
	conn, err := sm.redis.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("sessions/manager: can't get Redis conn: %w", err)
	}
	defer conn.Close()

	sessions, err := redis.StringMap(conn.Do("HGETALL", redisNS+userId))
	if err != nil {
		logger.Log(ctx).Errorf("sessions/manager: can't HGETALL user sessions from Redis: %v", err)
		return err
	}

	nowTs := time.Now().Unix()
	for sessId, exp := range sessions {
		expTs, _ := strconv.ParseInt(exp, 10, 64)
		if nowTs > expTs {
			if _, err := conn.Do("HDEL", redisNS+userId, sessId); err != nil {
				return fmt.Errorf("sessions/manager: failed HDEL from Redis: %w", err)
			}
			logger.Log(ctx).Infof("sessions/manager: session %s removed (expired at %s)", sessId, exp)
		}
	}

	return nil
}

func (sm *SessionManager) CheckRedis(ctx context.Context, userId, sessionId string) (bool, error) {
	conn, err := sm.redis.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("sessions/manager: can't get Redis conn: %w", err)
	}
	defer conn.Close()

	expirationData, err := redis.Bytes(conn.Do("HGET", redisNS+userId, sessionId))
	if err != nil {
		return false, err
	}

	// Check user session for expiration
	expiredTs, _ := strconv.ParseInt(string(expirationData), 10, 64)
	nowTs := time.Now().Unix()
	if nowTs > expiredTs {
		return false, errors.New("session has been expired")
	}

	// Prolongate session expiration time if it expires in less than 24 hours
	// because we don't want to kick off the active user.
	if expiredTs-nowTs < int64((24 * time.Hour).Seconds()) {
		newExpDate := time.Now().Add(sessionTTL).Unix()
		if _, err := conn.Do("HSET", redisNS+userId, sessionId, newExpDate); err != nil {
			return false, fmt.Errorf("sessions/manager: failed HSET to Redis: %w", err)
		}
	}

	return true, nil
}

func (sm *SessionManager) addToRedis(ctx context.Context, userId, sessionId string, exp int64) error {
	conn, err := sm.redis.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("sessions/manager: can't get Redis conn: %w", err)
	}
	defer conn.Close()

	_, err = conn.Do("HSET", redisNS+userId, sessionId, exp)
	if err != nil {
		return fmt.Errorf("sessions/manager: failed HSET to Redis: %w", err)
	}
	return nil
}

func (sm *SessionManager) CreateToken(ctx context.Context, u *user.User) (string, error) {
	sessionID := RandStringRunes(10)
	data := jwtClaims{
		User: user.User{Id: u.Id, Email: u.Email},
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(sessionTTL).Unix(),
			IssuedAt:  time.Now().Unix(),
			Id:        sessionID,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, data).SignedString(sm.secret)
	if err != nil {
		return "", err
	}

	if err := sm.addToRedis(ctx, u.Id, sessionID, data.ExpiresAt); err != nil {
		logger.Log(ctx).Errorf("sessions/manager: failed add to redis: %v", err)
		return ``, err
	}

	return token, nil
}

// GetAuthUser is the current user of the request, if any.
func GetAuthUser(ctx context.Context) (*user.User, error) {
	u, ok := ctx.Value(SessionKey).(*user.User)
	if !ok || u == nil {
		return nil, ErrNoAuth
	}
	return u, nil
}

func WithAuthUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, SessionKey, u)
}
