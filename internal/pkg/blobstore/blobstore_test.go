package blobstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageKey(t *testing.T) {
	key, err := StorageKey("private", "user-1", "bas_review")
	require.NoError(t, err)
	assert.Equal(t, "skills/users/user-1/bas_review/SKILL.md", key)

	key, err = StorageKey("shared", "team-9", "gst")
	require.NoError(t, err)
	assert.Equal(t, "skills/teams/team-9/gst/SKILL.md", key)

	key, err = StorageKey("private", "u", "bad name/../x")
	require.NoError(t, err)
	assert.Equal(t, "skills/users/u/bad_name____x/SKILL.md", key)

	_, err = StorageKey("public", "u", "x")
	assert.ErrorIs(t, err, ErrInvalidScope)

	for _, owner := range []string{"", "  ", "evil/../../teams/team1", `a\b`, "..", "a..b", "u/1"} {
		_, err = StorageKey("private", owner, "x")
		assert.ErrorIs(t, err, ErrInvalidOwner, "owner=%q", owner)
	}
}

func TestStorageKey_OwnerCannotReachOtherNamespace(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	teamKey, err := StorageKey("shared", "team1", "bas_review")
	require.NoError(t, err)
	require.NoError(t, s.Upload(ctx, teamKey, []byte("TEAM")))

	_, err = StorageKey("private", "evil/../../teams/team1", "bas_review")
	require.ErrorIs(t, err, ErrInvalidOwner)

	data, err := s.Download(ctx, teamKey)
	require.NoError(t, err)
	assert.Equal(t, "TEAM", string(data))
}

func TestHandle_Disabled(t *testing.T) {
	ctx := context.Background()
	for _, h := range []*Handle{Disabled(), NewHandle(Options{Enabled: false, Type: "memory"}), nil} {
		assert.False(t, h.Enabled())

		assert.ErrorIs(t, h.Upload(ctx, "k", []byte("x")), ErrDisabled)
		_, err := h.Download(ctx, "k")
		assert.ErrorIs(t, err, ErrDisabled)
		assert.ErrorIs(t, h.Delete(ctx, "k"), ErrDisabled)
		_, err = h.Exists(ctx, "k")
		assert.ErrorIs(t, err, ErrDisabled)
		_, err = h.ListByPrefix(ctx, "skills/")
		assert.ErrorIs(t, err, ErrDisabled)
	}
}

func TestNewHandle_InvalidConfigDisables(t *testing.T) {
	assert.False(t, NewHandle(Options{Enabled: true, Type: "r2"}).Enabled(), "R2 配置不完整时禁用")
	assert.False(t, NewHandle(Options{Enabled: true, Type: "ftp"}).Enabled())
	assert.False(t, NewHandle(Options{Enabled: true, Type: "local"}).Enabled(), "local 需要目录")
}

func TestNewHandle_Types(t *testing.T) {
	assert.True(t, NewHandle(Options{Enabled: true, Type: "memory"}).Enabled())
	assert.True(t, NewHandle(Options{Enabled: true, Type: "local", Dir: t.TempDir()}).Enabled())
	assert.True(t, NewHandle(Options{
		Enabled:           true,
		Type:              "r2",
		R2AccountID:       "acct",
		R2AccessKeyID:     "id",
		R2SecretAccessKey: "secret",
	}).Enabled())
}

func TestHandle_MemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := NewHandleWithStore(NewMemoryStore())
	require.True(t, h.Enabled())

	key, _ := StorageKey("private", "u1", "mine")
	require.NoError(t, h.Upload(ctx, key, []byte("doc")))
	require.NoError(t, h.Upload(ctx, "skills/users/u1/notes.txt", []byte("ignored")))

	data, err := h.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "doc", string(data))

	ok, err := h.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := h.ListByPrefix(ctx, "skills/users/u1/")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	require.NoError(t, h.Delete(ctx, key))
	_, err = h.Download(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, h.Delete(ctx, key), "删除不存在的对象不报错")
}

func TestHandle_UploadTooLarge(t *testing.T) {
	h := NewHandleWithStore(NewMemoryStore())
	err := h.Upload(context.Background(), "k", []byte(strings.Repeat("x", MaxObjectBytes+1)))
	assert.ErrorIs(t, err, ErrTooLarge)

	assert.NoError(t, h.Upload(context.Background(), "k", []byte(strings.Repeat("x", MaxObjectBytes))))
}

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	key, _ := StorageKey("shared", "t1", "team_skill")
	_, err = s.Download(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Upload(ctx, key, []byte("v1")))
	require.NoError(t, s.Upload(ctx, key, []byte("v2")))

	data, err := s.Download(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	other, _ := StorageKey("shared", "t2", "other")
	require.NoError(t, s.Upload(ctx, other, []byte("x")))

	keys, err := s.ListByPrefix(ctx, "skills/teams/t1/")
	require.NoError(t, err)
	assert.Equal(t, []string{key}, keys)

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	ok, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Upload(ctx, "", []byte("x")))
	assert.Error(t, s.Upload(ctx, `..\evil`, []byte("x")))

	// .. 被限制在根目录内
	require.NoError(t, s.Upload(ctx, "../../outside/SKILL.md", []byte("x")))
	data, err := s.Download(ctx, "outside/SKILL.md")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestMemoryStore_DownloadHonorsContext(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Upload(context.Background(), "k", []byte("x")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Download(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
