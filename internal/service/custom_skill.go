package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/askfin/backend/internal/eventbus"
	"github.com/askfin/backend/internal/model"
	"github.com/askfin/backend/internal/pkg/blobstore"
	"github.com/askfin/backend/internal/pkg/skills"
	"github.com/askfin/backend/internal/repository"
)

// 预定义错误
var (
	ErrDuplicateSkill     = errors.New("skill already exists")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidScope       = errors.New("invalid scope")
	ErrSkillNameChanged   = errors.New("cannot change skill name, create a new skill instead")
	ErrContentUnavailable = errors.New("skill content unavailable")
)

// Caller 请求方身份
type Caller struct {
	UserID string
	TeamID string
}

// CreateSkillRequest 创建自定义 Skill 请求
type CreateSkillRequest struct {
	Content   string `json:"content" binding:"required"`
	Scope     string `json:"scope" binding:"required"`
	UserID    string `json:"-"`
	TeamID    string `json:"-"`
	CreatedBy string `json:"-"`
}

// CustomSkillService 自定义 Skill 服务接口
type CustomSkillService interface {
	// ValidateContent 校验 SKILL.md 并返回元数据
	ValidateContent(content string) (*skills.SkillMetadata, error)

	// Create 创建私有或共享 Skill
	Create(ctx context.Context, req *CreateSkillRequest) (*model.CustomSkill, error)

	// Update 更新内容，名称不可修改
	Update(ctx context.Context, id, content string, caller Caller) (*model.CustomSkill, error)

	// Delete 停用 Skill 并删除存储的正文
	Delete(ctx context.Context, id string, caller Caller) error

	// Promote 将私有 Skill 复制为团队共享 Skill，原 Skill 保留
	Promote(ctx context.Context, id, teamID, userID string) (*model.CustomSkill, error)

	// Get 获取调用方可见的 Skill
	Get(ctx context.Context, id string, caller Caller) (*model.CustomSkill, error)

	// GetContent 获取 SKILL.md 正文
	GetContent(ctx context.Context, id string, caller Caller) (string, error)

	// ListUserSkills 列出用户的私有 Skill
	ListUserSkills(ctx context.Context, userID string) ([]*model.CustomSkill, error)

	// ListTeamSkills 列出团队的共享 Skill
	ListTeamSkills(ctx context.Context, teamID string) ([]*model.CustomSkill, error)
}

// skillBlobs 自定义 Skill 使用的对象存储能力
type skillBlobs interface {
	Enabled() bool
	Upload(ctx context.Context, key string, data []byte) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

type customSkillService struct {
	repo   repository.CustomSkillRepository
	blobs  skillBlobs
	parser *skills.Parser
	bus    *eventbus.SkillEventBus
}

// NewCustomSkillService 创建自定义 Skill 服务
// bus 为 nil 时不发布事件
func NewCustomSkillService(repo repository.CustomSkillRepository, blobs skillBlobs, parser *skills.Parser, bus *eventbus.SkillEventBus) CustomSkillService {
	if parser == nil {
		parser = skills.NewParser()
	}
	if blobs == nil {
		blobs = blobstore.Disabled()
	}
	return &customSkillService{repo: repo, blobs: blobs, parser: parser, bus: bus}
}

func (s *customSkillService) ValidateContent(content string) (*skills.SkillMetadata, error) {
	skill, err := s.parser.Parse(content)
	if err != nil {
		return nil, err
	}
	meta := skill.Metadata()
	return &meta, nil
}

func (s *customSkillService) Create(ctx context.Context, req *CreateSkillRequest) (*model.CustomSkill, error) {
	var ownerID string
	switch req.Scope {
	case model.SkillScopePrivate:
		if req.UserID == "" {
			return nil, fmt.Errorf("%w: user_id required for private skills", ErrInvalidScope)
		}
		ownerID = req.UserID
	case model.SkillScopeShared:
		if req.TeamID == "" {
			return nil, fmt.Errorf("%w: team_id required for shared skills", ErrInvalidScope)
		}
		ownerID = req.TeamID
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidScope, req.Scope)
	}

	meta, err := s.ValidateContent(req.Content)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindActive(ctx, meta.Name, req.Scope, ownerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		klog.Warningf("Create: Skill %s 已存在: scope=%s, owner=%s", meta.Name, req.Scope, ownerID)
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSkill, meta.Name)
	}

	key, err := blobstore.StorageKey(req.Scope, ownerID, meta.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScope, err)
	}
	if err := s.upload(ctx, key, req.Content); err != nil {
		return nil, err
	}

	rec, err := s.repo.GetByStorageKey(ctx, key)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		rec = &model.CustomSkill{StorageKey: key, Scope: req.Scope}
	case err != nil:
		return nil, err
	case rec.IsActive:
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSkill, meta.Name)
	}

	reactivate := rec.ID != ""
	rec.UserID, rec.TeamID = nil, nil
	if req.Scope == model.SkillScopePrivate {
		rec.UserID = model.StringPtr(req.UserID)
	} else {
		rec.TeamID = model.StringPtr(req.TeamID)
	}
	rec.CreatedBy = req.CreatedBy
	rec.Name = meta.Name
	rec.IsActive = true
	applyMetadata(rec, meta, contentHash(req.Content))

	if reactivate {
		err = s.repo.Update(ctx, rec)
	} else {
		err = s.repo.Create(ctx, rec)
	}
	if err != nil {
		klog.Errorf("Create: 保存 Skill 失败: name=%s, error=%v", meta.Name, err)
		s.discard(ctx, key)
		return nil, err
	}

	s.publish(ctx, eventbus.SkillEventCreated, rec)
	klog.V(6).Infof("Create: 已创建自定义 Skill: name=%s, scope=%s, id=%s", rec.Name, rec.Scope, rec.ID)
	return rec, nil
}

func (s *customSkillService) Update(ctx context.Context, id, content string, caller Caller) (*model.CustomSkill, error) {
	rec, err := s.getActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(rec, caller); err != nil {
		return nil, err
	}

	meta, err := s.ValidateContent(content)
	if err != nil {
		return nil, err
	}
	if meta.Name != rec.Name {
		return nil, fmt.Errorf("%w: %s -> %s", ErrSkillNameChanged, rec.Name, meta.Name)
	}

	hash := contentHash(content)
	if hash == rec.ContentHash {
		klog.V(6).Infof("Update: Skill %s 内容未变化，跳过更新", id)
		return rec, nil
	}

	if err := s.upload(ctx, rec.StorageKey, content); err != nil {
		return nil, err
	}
	applyMetadata(rec, meta, hash)
	if err := s.repo.Update(ctx, rec); err != nil {
		klog.Errorf("Update: 保存 Skill 失败: id=%s, error=%v", id, err)
		// 正文已覆盖，缓存必须失效
		s.publish(ctx, eventbus.SkillEventUpdated, rec)
		return nil, err
	}

	s.publish(ctx, eventbus.SkillEventUpdated, rec)
	klog.V(6).Infof("Update: 已更新自定义 Skill: name=%s", rec.Name)
	return rec, nil
}

func (s *customSkillService) Delete(ctx context.Context, id string, caller Caller) error {
	rec, err := s.getActive(ctx, id)
	if err != nil {
		return err
	}
	if err := checkOwner(rec, caller); err != nil {
		return err
	}

	if s.blobs.Enabled() {
		if err := s.blobs.Delete(ctx, rec.StorageKey); err != nil {
			klog.Warningf("Delete: 删除 Skill 正文失败，继续删除记录: key=%s, error=%v", rec.StorageKey, err)
		}
	} else {
		klog.V(6).Infof("Delete: 对象存储未启用，仅删除数据库记录")
	}

	if err := s.repo.SoftDelete(ctx, rec.ID); err != nil {
		return err
	}
	rec.IsActive = false

	s.publish(ctx, eventbus.SkillEventDeleted, rec)
	klog.V(6).Infof("Delete: 已删除自定义 Skill: name=%s", rec.Name)
	return nil
}

func (s *customSkillService) Promote(ctx context.Context, id, teamID, userID string) (*model.CustomSkill, error) {
	rec, err := s.getActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.UserID == nil || *rec.UserID != userID {
		return nil, fmt.Errorf("%w: cannot promote another user's skill", ErrPermissionDenied)
	}
	if rec.Scope != model.SkillScopePrivate {
		return nil, fmt.Errorf("%w: only private skills can be promoted", ErrInvalidScope)
	}
	if teamID == "" {
		return nil, fmt.Errorf("%w: team_id required for shared skills", ErrInvalidScope)
	}

	existing, err := s.repo.FindActive(ctx, rec.Name, model.SkillScopeShared, teamID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s already exists in team", ErrDuplicateSkill, rec.Name)
	}

	content := ""
	if s.blobs.Enabled() {
		data, err := s.blobs.Download(ctx, rec.StorageKey)
		if err != nil {
			klog.Warningf("Promote: 读取 Skill 正文失败: key=%s, error=%v", rec.StorageKey, err)
		} else {
			content = string(data)
		}
	}
	if content == "" {
		if content, err = synthesizeDocument(rec); err != nil {
			return nil, err
		}
	}

	shared, err := s.Create(ctx, &CreateSkillRequest{
		Content:   content,
		Scope:     model.SkillScopeShared,
		TeamID:    teamID,
		CreatedBy: userID,
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, eventbus.SkillEventPromoted, shared)
	klog.V(6).Infof("Promote: 已将 Skill %s 共享到团队 %s", rec.Name, teamID)
	return shared, nil
}

func (s *customSkillService) Get(ctx context.Context, id string, caller Caller) (*model.CustomSkill, error) {
	rec, err := s.getActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(rec, caller); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *customSkillService) GetContent(ctx context.Context, id string, caller Caller) (string, error) {
	rec, err := s.Get(ctx, id, caller)
	if err != nil {
		return "", err
	}
	if !s.blobs.Enabled() {
		return "", fmt.Errorf("%w: blob storage is disabled", ErrContentUnavailable)
	}
	data, err := s.blobs.Download(ctx, rec.StorageKey)
	if err != nil {
		klog.Warningf("GetContent: 读取 Skill 正文失败: key=%s, error=%v", rec.StorageKey, err)
		return "", fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}
	return string(data), nil
}

func (s *customSkillService) ListUserSkills(ctx context.Context, userID string) ([]*model.CustomSkill, error) {
	return s.repo.ListActiveByUser(ctx, userID)
}

func (s *customSkillService) ListTeamSkills(ctx context.Context, teamID string) ([]*model.CustomSkill, error) {
	return s.repo.ListActiveByTeam(ctx, teamID)
}

func (s *customSkillService) getActive(ctx context.Context, id string) (*model.CustomSkill, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !rec.IsActive) {
		return nil, fmt.Errorf("%w: %s", skills.ErrSkillNotFound, id)
	}
	return rec, err
}

// upload 存储禁用时只写数据库
func (s *customSkillService) upload(ctx context.Context, key, content string) error {
	if !s.blobs.Enabled() {
		klog.V(6).Infof("对象存储未启用，Skill 仅保存到数据库: key=%s", key)
		return nil
	}
	if err := s.blobs.Upload(ctx, key, []byte(content)); err != nil {
		klog.Errorf("上传 Skill 失败: key=%s, error=%v", key, err)
		return fmt.Errorf("failed to upload skill: %w", err)
	}
	return nil
}

// discard 记录保存失败时尽力删除已上传的正文
func (s *customSkillService) discard(ctx context.Context, key string) {
	if !s.blobs.Enabled() {
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil {
		klog.Warningf("清理 Skill 正文失败: key=%s, error=%v", key, err)
	}
}

func (s *customSkillService) publish(ctx context.Context, typ eventbus.SkillEventType, rec *model.CustomSkill) {
	if s.bus == nil {
		return
	}
	err := s.bus.Publish(ctx, eventbus.SkillEvent{
		Type:       typ,
		RecordID:   rec.ID,
		StorageKey: rec.StorageKey,
		Name:       rec.Name,
		Scope:      rec.Scope,
		OwnerID:    rec.OwnerID(),
	})
	if err != nil {
		klog.Warningf("发布 Skill 事件失败: type=%s, name=%s, error=%v", typ, rec.Name, err)
	}
}

// checkOwner 私有 Skill 仅所有者可操作，共享 Skill 仅所属团队成员可操作
func checkOwner(rec *model.CustomSkill, caller Caller) error {
	switch rec.Scope {
	case model.SkillScopePrivate:
		if rec.UserID != nil && *rec.UserID == caller.UserID && caller.UserID != "" {
			return nil
		}
		return fmt.Errorf("%w: not the owner of private skill %s", ErrPermissionDenied, rec.Name)
	case model.SkillScopeShared:
		if rec.TeamID != nil && *rec.TeamID == caller.TeamID && caller.TeamID != "" {
			return nil
		}
		return fmt.Errorf("%w: not a member of the team owning %s", ErrPermissionDenied, rec.Name)
	}
	return fmt.Errorf("%w: %s", ErrInvalidScope, rec.Scope)
}

func applyMetadata(rec *model.CustomSkill, meta *skills.SkillMetadata, hash string) {
	rec.Description = meta.Description
	rec.Version = meta.Version
	rec.Author = meta.Author
	rec.Triggers = meta.Triggers
	rec.Industries = meta.Industries
	rec.Tags = meta.Tags
	rec.ContentHash = hash
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// promotedFrontmatter 由记录重建的 front-matter
type promotedFrontmatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Version     string   `yaml:"version"`
	Author      string   `yaml:"author,omitempty"`
	Triggers    []string `yaml:"triggers,omitempty"`
	Industries  []string `yaml:"industries,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// synthesizeDocument 正文不可用时根据记录生成 SKILL.md
func synthesizeDocument(rec *model.CustomSkill) (string, error) {
	version := rec.Version
	if version == "" {
		version = skills.DefaultVersion
	}
	fm, err := yaml.Marshal(promotedFrontmatter{
		Name:        rec.Name,
		Description: rec.Description,
		Version:     version,
		Author:      rec.Author,
		Triggers:    rec.Triggers,
		Industries:  rec.Industries,
		Tags:        rec.Tags,
	})
	if err != nil {
		return "", err
	}
	body := rec.Description
	if body == "" {
		body = "No content available"
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(fm)
	sb.WriteString("---\n\n# ")
	sb.WriteString(rec.Name)
	sb.WriteString("\n\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	return sb.String(), nil
}
