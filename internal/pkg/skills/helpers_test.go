package skills

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/askfin/backend/internal/pkg/blobstore"
)

// skillDoc 生成 SKILL.md 内容
func skillDoc(name, description string, triggers []string, body string) string {
	var sb strings.Builder
	sb.WriteString("---\n")
	sb.WriteString("name: " + name + "\n")
	sb.WriteString("description: " + description + "\n")
	if len(triggers) > 0 {
		sb.WriteString("triggers:\n")
		for _, t := range triggers {
			sb.WriteString(fmt.Sprintf("  - %q\n", t))
		}
	}
	sb.WriteString("---\n")
	sb.WriteString(body)
	return sb.String()
}

// writePublicSkill 在 root/<dir>/SKILL.md 写入 Skill
func writePublicSkill(t *testing.T, root, dir, doc string) string {
	t.Helper()
	skillDir := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(skillDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, SkillFileName), []byte(doc), 0644))
	return skillDir
}

// fakeRecords RecordStore 的测试实现
type fakeRecords struct {
	mu        sync.Mutex
	records   []Record
	err       error
	listCalls int
}

func (f *fakeRecords) add(rec Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
}

func (f *fakeRecords) list(source Source, ownerID string) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Record, 0)
	for _, r := range f.records {
		if r.Source == source && r.OwnerID() == ownerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) ListActiveByUser(ctx context.Context, userID string) ([]Record, error) {
	return f.list(SourcePrivate, userID)
}

func (f *fakeRecords) ListActiveByTeam(ctx context.Context, teamID string) ([]Record, error) {
	return f.list(SourceShared, teamID)
}

func (f *fakeRecords) FindActive(ctx context.Context, name string, source Source, ownerID string) (*Record, error) {
	recs, err := f.list(source, ownerID)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		if r.Name == name {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

// fakeBlobs 可切换启用状态的 BlobReader
type fakeBlobs struct {
	mu        sync.Mutex
	enabled   bool
	objects   map[string]string
	err       error
	downloads int
}

func newFakeBlobs(enabled bool) *fakeBlobs {
	return &fakeBlobs{enabled: enabled, objects: make(map[string]string)}
}

func (f *fakeBlobs) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeBlobs) setEnabled(v bool) {
	f.mu.Lock()
	f.enabled = v
	f.mu.Unlock()
}

func (f *fakeBlobs) put(key, doc string) {
	f.mu.Lock()
	f.objects[key] = doc
	f.mu.Unlock()
}

func (f *fakeBlobs) Download(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	return []byte(doc), nil
}

func (f *fakeBlobs) downloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads
}

// privateRecord 构造私有 Skill 记录
func privateRecord(id, userID, name string, triggers ...string) Record {
	key, _ := blobstore.StorageKey("private", userID, name)
	return Record{
		ID:          id,
		Name:        name,
		StorageKey:  key,
		Source:      SourcePrivate,
		UserID:      userID,
		Version:     DefaultVersion,
		Description: "private " + name,
		Triggers:    triggers,
	}
}

// sharedRecord 构造共享 Skill 记录
func sharedRecord(id, teamID, name string, triggers ...string) Record {
	key, _ := blobstore.StorageKey("shared", teamID, name)
	return Record{
		ID:          id,
		Name:        name,
		StorageKey:  key,
		Source:      SourceShared,
		TeamID:      teamID,
		Version:     DefaultVersion,
		Description: "shared " + name,
		Triggers:    triggers,
	}
}
