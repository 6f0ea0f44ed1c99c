package skills

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, publicDir string, records RecordStore, blobs BlobReader) *Registry {
	t.Helper()
	return NewRegistry(RegistryOptions{
		PublicDir: publicDir,
		Records:   records,
		Blobs:     blobs,
	})
}

func TestRegistry_DiscoverPublic(t *testing.T) {
	root := t.TempDir()
	writePublicSkill(t, root, "gst", skillDoc("gst_classification", "GST", []string{"classify gst"}, "gst body"))
	writePublicSkill(t, root, "bas", skillDoc("bas_review", "BAS", []string{"run bas review"}, "bas body"))
	writePublicSkill(t, root, "broken", "no frontmatter here")
	writePublicSkill(t, root, ".hidden", skillDoc("hidden_skill", "hidden", nil, "x"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("not a skill"), 0644))

	r := newTestRegistry(t, root, nil, nil)
	metas := r.DiscoverPublic(context.Background())

	require.Len(t, metas, 2, "无效 Skill 应被跳过，不影响其他 Skill")
	assert.Equal(t, "bas_review", metas[0].Name)
	assert.Equal(t, "gst_classification", metas[1].Name)
}

func TestRegistry_DiscoverPublic_MissingDir(t *testing.T) {
	r := newTestRegistry(t, filepath.Join(t.TempDir(), "nope"), nil, nil)
	assert.Empty(t, r.DiscoverPublic(context.Background()))
}

func TestRegistry_DiscoverPublic_Memoized(t *testing.T) {
	root := t.TempDir()
	writePublicSkill(t, root, "a", skillDoc("alpha", "A", nil, "a"))

	r := newTestRegistry(t, root, nil, nil)
	require.Len(t, r.DiscoverPublic(context.Background()), 1)

	writePublicSkill(t, root, "b", skillDoc("beta", "B", nil, "b"))
	assert.Len(t, r.DiscoverPublic(context.Background()), 1, "首次扫描后不再访问文件系统")

	assert.Len(t, r.Reload(context.Background()), 2, "Reload 重新扫描")
}

func TestRegistry_DiscoverPublic_ConcurrentFirstCallers(t *testing.T) {
	root := t.TempDir()
	writePublicSkill(t, root, "a", skillDoc("alpha", "A", nil, "a"))

	r := newTestRegistry(t, root, nil, nil)

	const n = 20
	results := make([][]*Skill, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.PublicSkills(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Len(t, results[i], 1)
		assert.Same(t, results[0][0], results[i][0], "并发首次调用只应扫描一次")
	}
}

func TestRegistry_ReloadClearsCache(t *testing.T) {
	records := &fakeRecords{}
	rec := privateRecord("1", "u1", "mine", "my trigger")
	records.add(rec)
	blobs := newFakeBlobs(true)
	blobs.put(rec.StorageKey, skillDoc("mine", "private mine", []string{"my trigger"}, "real"))

	r := newTestRegistry(t, t.TempDir(), records, blobs)
	r.DiscoverAll(context.Background(), "u1", "")
	require.Equal(t, 1, r.Cache().Len())

	r.Reload(context.Background())
	assert.Equal(t, 0, r.Cache().Len())
}

func TestRegistry_GetWithPriority(t *testing.T) {
	root := t.TempDir()
	writePublicSkill(t, root, "x", skillDoc("x", "public x", []string{"do x"}, "public body"))
	writePublicSkill(t, root, "y", skillDoc("y", "public y", []string{"do y"}, "public y body"))

	records := &fakeRecords{}
	priv := privateRecord("1", "u1", "x", "do x")
	shared := sharedRecord("2", "t1", "x", "do x")
	sharedY := sharedRecord("3", "t1", "y", "do y")
	records.add(priv)
	records.add(shared)
	records.add(sharedY)

	blobs := newFakeBlobs(true)
	blobs.put(priv.StorageKey, skillDoc("x", "private x", []string{"do x"}, "private body"))
	blobs.put(shared.StorageKey, skillDoc("x", "shared x", []string{"do x"}, "shared body"))
	blobs.put(sharedY.StorageKey, skillDoc("y", "shared y", []string{"do y"}, "shared y body"))

	r := newTestRegistry(t, root, records, blobs)
	ctx := context.Background()

	s, err := r.GetWithPriority(ctx, "x", "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "private x", s.Description())
	assert.Equal(t, SourcePrivate, s.Source())
	assert.Equal(t, "u1", s.OwnerID())
	assert.Equal(t, priv.StorageKey, s.StorageKey())

	s, err = r.GetWithPriority(ctx, "x", "other", "t1")
	require.NoError(t, err)
	assert.Equal(t, "shared x", s.Description())
	assert.Equal(t, SourceShared, s.Source())
	assert.Equal(t, "t1", s.OwnerID())

	s, err = r.GetWithPriority(ctx, "x", "", "")
	require.NoError(t, err)
	assert.Equal(t, "public x", s.Description())
	assert.Equal(t, SourcePublic, s.Source())
	assert.Empty(t, s.OwnerID())

	s, err = r.GetWithPriority(ctx, "y", "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "shared y", s.Description(), "共享 Skill 覆盖公共 Skill")

	_, err = r.GetWithPriority(ctx, "zzz", "u1", "t1")
	assert.ErrorIs(t, err, ErrSkillNotFound)
}

func TestRegistry_DiscoverAll(t *testing.T) {
	root := t.TempDir()
	writePublicSkill(t, root, "p", skillDoc("pub", "public", nil, "body"))

	records := &fakeRecords{}
	records.add(privateRecord("1", "u1", "alpha"))
	records.add(privateRecord("2", "u2", "not_mine"))
	records.add(sharedRecord("3", "t1", "team_skill"))

	r := newTestRegistry(t, root, records, newFakeBlobs(false))
	ctx := context.Background()

	all := r.DiscoverAll(ctx, "u1", "t1")
	require.Len(t, all.Private, 1)
	assert.Equal(t, "alpha", all.Private[0].Name())
	require.Len(t, all.Shared, 1)
	assert.Equal(t, "team_skill", all.Shared[0].Name())
	require.Len(t, all.Public, 1)
	assert.Equal(t, 3, all.Count())

	anon := r.DiscoverAll(ctx, "", "")
	assert.Empty(t, anon.Private)
	assert.Empty(t, anon.Shared)
	assert.Len(t, anon.Public, 1)
}

func TestRegistry_DiscoverAll_RecordStoreUnavailable(t *testing.T) {
	root := t.TempDir()
	writePublicSkill(t, root, "p", skillDoc("pub", "public", nil, "body"))

	records := &fakeRecords{err: errors.New("connection refused")}
	r := newTestRegistry(t, root, records, newFakeBlobs(true))

	all := r.DiscoverAll(context.Background(), "u1", "t1")
	assert.Empty(t, all.Private)
	assert.Empty(t, all.Shared)
	assert.Len(t, all.Public, 1, "RecordStore 不可用不影响公共 Skills")

	s, err := r.GetWithPriority(context.Background(), "pub", "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, SourcePublic, s.Source())
}

func TestRegistry_ResolveRecord_BlobDisabled(t *testing.T) {
	rec := privateRecord("rec-1", "u1", "mine", "run my check")
	rec.Industries = []string{"retail"}
	blobs := newFakeBlobs(false)
	r := newTestRegistry(t, t.TempDir(), &fakeRecords{}, blobs)

	s := r.resolveRecord(context.Background(), rec)
	assert.Equal(t, "mine", s.Name())
	assert.Equal(t, "private mine", s.Description())
	assert.Equal(t, []string{"run my check"}, s.Triggers())
	assert.Equal(t, []string{"retail"}, s.Industries())
	assert.Equal(t, "# mine\n\nprivate mine", s.Content())
	assert.Equal(t, "db://rec-1", s.Path())
	assert.Equal(t, SourcePrivate, s.Source())
	assert.Equal(t, "u1", s.OwnerID())
	assert.Equal(t, 0, r.Cache().Len(), "降级结果不缓存")
	assert.Equal(t, 0, blobs.downloadCount(), "禁用时不应访问 BlobStore")

	// 恢复后无需等待 TTL
	blobs.setEnabled(true)
	blobs.put(rec.StorageKey, skillDoc("mine", "private mine", []string{"run my check"}, "REAL CONTENT"))
	s = r.resolveRecord(context.Background(), rec)
	assert.Equal(t, "REAL CONTENT", s.Content())
	assert.Equal(t, 1, r.Cache().Len())
}

func TestRegistry_ResolveRecord_Degraded(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *fakeBlobs, key string)
	}{
		{"blob missing", func(b *fakeBlobs, key string) {}},
		{"download error", func(b *fakeBlobs, key string) { b.err = errors.New("boom") }},
		{"parse failure", func(b *fakeBlobs, key string) { b.put(key, "not a skill document") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := sharedRecord("r1", "t1", "team_skill", "trigger one")
			rec.Description = ""
			blobs := newFakeBlobs(true)
			tt.setup(blobs, rec.StorageKey)

			r := newTestRegistry(t, t.TempDir(), &fakeRecords{}, blobs)
			s := r.resolveRecord(context.Background(), rec)

			assert.Equal(t, "# team_skill\n\nNo content available", s.Content())
			assert.Equal(t, []string{"trigger one"}, s.Triggers())
			assert.Equal(t, SourceShared, s.Source())
			assert.Equal(t, "t1", s.OwnerID())
			assert.Equal(t, 0, r.Cache().Len())
		})
	}
}

// blockingBlobs 下载阻塞直到 ctx 结束
type blockingBlobs struct{}

func (blockingBlobs) Enabled() bool { return true }

func (blockingBlobs) Download(ctx context.Context, key string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRegistry_ResolveRecord_TimeoutDegrades(t *testing.T) {
	r := NewRegistry(RegistryOptions{
		PublicDir:     t.TempDir(),
		Records:       &fakeRecords{},
		Blobs:         blockingBlobs{},
		RemoteTimeout: 20 * time.Millisecond,
	})

	start := time.Now()
	s := r.resolveRecord(context.Background(), privateRecord("1", "u1", "slow"))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "db://1", s.Path(), "超时按不存在处理")
	assert.Equal(t, 0, r.Cache().Len())
}

func TestRegistry_ResolveRecord_CachesAndInvalidates(t *testing.T) {
	rec := privateRecord("1", "u1", "mine")
	blobs := newFakeBlobs(true)
	blobs.put(rec.StorageKey, skillDoc("mine", "d", nil, "v1 body"))

	r := newTestRegistry(t, t.TempDir(), &fakeRecords{}, blobs)
	ctx := context.Background()

	s1 := r.resolveRecord(ctx, rec)
	s2 := r.resolveRecord(ctx, rec)
	assert.Same(t, s1, s2)
	assert.Equal(t, 1, blobs.downloadCount())
	assert.Equal(t, "blob://"+rec.StorageKey, s1.Path())

	// 记录版本变化视为未命中
	blobs.put(rec.StorageKey, "---\nname: mine\nversion: 2.0.0\n---\nv2 body")
	rec.Version = "2.0.0"
	s3 := r.resolveRecord(ctx, rec)
	assert.Equal(t, "v2 body", s3.Content())
	assert.Equal(t, 2, blobs.downloadCount())

	// 显式失效后立即重新加载
	blobs.put(rec.StorageKey, "---\nname: mine\nversion: 2.0.0\n---\nv2 edited")
	r.Invalidate(rec.StorageKey)
	s4 := r.resolveRecord(ctx, rec)
	assert.Equal(t, "v2 edited", s4.Content())
	assert.Equal(t, 3, blobs.downloadCount())
}

func TestRegistry_SkillsByIndustry(t *testing.T) {
	root := t.TempDir()
	writePublicSkill(t, root, "h", "---\nname: hospo\nindustries: [Hospitality]\n---\nbody")
	writePublicSkill(t, root, "r", "---\nname: retail_only\nindustries: [retail]\n---\nbody")
	writePublicSkill(t, root, "s", "---\nname: shadowed\nindustries: [hospitality]\n---\nbody")

	records := &fakeRecords{}
	shadow := privateRecord("1", "u1", "shadowed")
	records.add(shadow)

	r := newTestRegistry(t, root, records, newFakeBlobs(false))

	got := r.SkillsByIndustry(context.Background(), "hospitality", "u1", "")
	require.Len(t, got, 1)
	assert.Equal(t, "hospo", got[0].Name())

	got = r.SkillsByIndustry(context.Background(), "hospitality", "", "")
	assert.Len(t, got, 2)

	assert.Empty(t, r.SkillsByIndustry(context.Background(), " ", "", ""))
}

func TestRegistry_PublicGuidelines(t *testing.T) {
	root := t.TempDir()
	dir := writePublicSkill(t, root, "bas", skillDoc("bas_review", "BAS", []string{"run bas review"}, "BAS BODY"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, GuidelinesDirName), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, GuidelinesDirName, "hospitality.md"), []byte("Tips are income."), 0644))

	r := newTestRegistry(t, root, nil, nil)
	s, err := r.GetPublic(context.Background(), "bas_review")
	require.NoError(t, err)

	g, ok := s.Guideline("hospitality")
	require.True(t, ok)
	assert.Equal(t, "Tips are income.", g)
	assert.False(t, s.HasGuideline("construction"))

	assert.Equal(t, "BAS BODY\n\n\n## Industry Guidelines (Hospitality)\n\nTips are income.", s.RenderPrompt("hospitality"))
	assert.Equal(t, "BAS BODY", s.RenderPrompt("construction"))

	// 私有来源不提供行业指南
	private := s.WithOrigin(SourcePrivate, "u1", "k")
	assert.False(t, private.HasGuideline("hospitality"))
}
