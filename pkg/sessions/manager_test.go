package sessions

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lostfound/pkg/apperror"
	"lostfound/pkg/user"
)

// fakeRedis understands the hash commands the manager issues.
type fakeRedis struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
}

type fakeConn struct{ r *fakeRedis }

func (c fakeConn) Close() error                      { return nil }
func (c fakeConn) Err() error                        { return nil }
func (c fakeConn) Send(string, ...interface{}) error { return nil }
func (c fakeConn) Flush() error                      { return nil }
func (c fakeConn) Receive() (interface{}, error)     { return nil, nil }
func (c fakeConn) Do(cmd string, args ...interface{}) (interface{}, error) {
	r := c.r
	r.mu.Lock()
	defer r.mu.Unlock()

	str := func(i int) string { return fmt.Sprint(args[i]) }
	switch cmd {
	case "":
		return nil, nil
	case "HSET":
		h := r.hashes[str(0)]
		if h == nil {
			h = map[string]string{}
			r.hashes[str(0)] = h
		}
		h[str(1)] = str(2)
		return int64(1), nil
	case "HGET":
		v, ok := r.hashes[str(0)][str(1)]
		if !ok {
			return nil, nil
		}
		return []byte(v), nil
	case "HGETALL":
		res := []interface{}{}
		for k, v := range r.hashes[str(0)] {
			res = append(res, []byte(k), []byte(v))
		}
		return res, nil
	case "HDEL":
		delete(r.hashes[str(0)], str(1))
		return int64(1), nil
	}
	return nil, fmt.Errorf("fake redis: unknown command %s", cmd)
}

func newManager() (*SessionManager, *fakeRedis) {
	r := &fakeRedis{hashes: map[string]map[string]string{}}
	pool := &redis.Pool{Dial: func() (redis.Conn, error) { return fakeConn{r}, nil }}
	return NewSessionManager("test-secret", pool), r
}

func TestTokenRoundTrip(t *testing.T) {
	ctx := context.Background()
	sm, r := newManager()
	u := &user.User{Id: "7", Email: "pike@example.com", Password: []byte("secret")}

	token, err := sm.CreateToken(ctx, u)
	require.NoError(t, err)
	assert.Len(t, r.hashes[redisNS+"7"], 1)

	got, err := sm.UserFromToken(ctx, "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, &user.User{Id: "7", Email: "pike@example.com"}, got)

	require.NoError(t, sm.SignOut(ctx, "Bearer "+token))
	_, err = sm.UserFromToken(ctx, "Bearer "+token)
	assert.ErrorIs(t, err, redis.ErrNil)
}

func TestUserFromTokenRejects(t *testing.T) {
	ctx := context.Background()
	sm, _ := newManager()

	_, err := sm.UserFromToken(ctx, "")
	assert.Error(t, err)

	_, err = sm.UserFromToken(ctx, "Bearer not.a.token")
	assert.Error(t, err)

	other, _ := newManager()
	other.secret = []byte("another-secret")
	token, err := other.CreateToken(ctx, &user.User{Id: "1", Email: "a@x.com"})
	require.NoError(t, err)
	_, err = sm.UserFromToken(ctx, token)
	assert.Error(t, err)
}

func TestSignOutWithoutToken(t *testing.T) {
	sm, _ := newManager()
	assert.ErrorIs(t, sm.SignOut(context.Background(), ""), apperror.ErrUnauthorized)
}

func TestCleanupUserSessions(t *testing.T) {
	ctx := context.Background()
	sm, r := newManager()
	now := time.Now()
	r.hashes[redisNS+"1"] = map[string]string{
		"old":   strconv.FormatInt(now.Add(-time.Hour).Unix(), 10),
		"fresh": strconv.FormatInt(now.Add(time.Hour).Unix(), 10),
	}

	require.NoError(t, sm.CleanupUserSessions(ctx, "1"))
	assert.Len(t, r.hashes[redisNS+"1"], 1)
	assert.Contains(t, r.hashes[redisNS+"1"], "fresh")
}

func TestCheckRedisProlongs(t *testing.T) {
	ctx := context.Background()
	sm, r := newManager()
	soon := time.Now().Add(time.Hour).Unix()
	r.hashes[redisNS+"1"] = map[string]string{"s1": strconv.FormatInt(soon, 10)}

	ok, err := sm.CheckRedis(ctx, "1", "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	prolonged, _ := strconv.ParseInt(r.hashes[redisNS+"1"]["s1"], 10, 64)
	assert.Greater(t, prolonged, soon)

	r.hashes[redisNS+"1"]["s1"] = strconv.FormatInt(time.Now().Add(-time.Minute).Unix(), 10)
	ok, err = sm.CheckRedis(ctx, "1", "s1")
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestGetAuthUser(t *testing.T) {
	_, err := GetAuthUser(context.Background())
	assert.ErrorIs(t, err, ErrNoAuth)

	u := &user.User{Id: "1"}
	got, err := GetAuthUser(WithAuthUser(context.Background(), u))
	require.NoError(t, err)
	assert.Same(t, u, got)
}
