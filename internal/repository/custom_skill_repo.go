package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/askfin/backend/internal/model"
	"github.com/askfin/backend/internal/pkg/skills"
)

// CustomSkillRepository 自定义 Skill 仓储接口
type CustomSkillRepository interface {
	// ListActiveByUser 列出用户的私有 Skill
	ListActiveByUser(ctx context.Context, userID string) ([]*model.CustomSkill, error)

	// ListActiveByTeam 列出团队的共享 Skill
	ListActiveByTeam(ctx context.Context, teamID string) ([]*model.CustomSkill, error)

	// FindActive 按名称、作用域和所有者查找，不存在时返回 (nil, nil)
	FindActive(ctx context.Context, name, scope, ownerID string) (*model.CustomSkill, error)

	// GetByID 根据 ID 获取，包含已停用的记录
	GetByID(ctx context.Context, id string) (*model.CustomSkill, error)

	// GetByStorageKey 根据 storage key 获取，包含已停用的记录
	GetByStorageKey(ctx context.Context, key string) (*model.CustomSkill, error)

	// Create 创建记录
	Create(ctx context.Context, skill *model.CustomSkill) error

	// Update 保存记录
	Update(ctx context.Context, skill *model.CustomSkill) error

	// SoftDelete 停用记录
	SoftDelete(ctx context.Context, id string) error
}

type customSkillRepository struct {
	db *gorm.DB
}

// NewCustomSkillRepository 创建自定义 Skill 仓储
func NewCustomSkillRepository(db *gorm.DB) CustomSkillRepository {
	return &customSkillRepository{db: db}
}

func (r *customSkillRepository) ListActiveByUser(ctx context.Context, userID string) ([]*model.CustomSkill, error) {
	var list []*model.CustomSkill
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND scope = ? AND is_active = ?", userID, model.SkillScopePrivate, true).
		Order("name ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *customSkillRepository) ListActiveByTeam(ctx context.Context, teamID string) ([]*model.CustomSkill, error) {
	var list []*model.CustomSkill
	err := r.db.WithContext(ctx).
		Where("team_id = ? AND scope = ? AND is_active = ?", teamID, model.SkillScopeShared, true).
		Order("name ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *customSkillRepository) FindActive(ctx context.Context, name, scope, ownerID string) (*model.CustomSkill, error) {
	owner := "user_id"
	if scope == model.SkillScopeShared {
		owner = "team_id"
	}
	var skill model.CustomSkill
	err := r.db.WithContext(ctx).
		Where("name = ? AND scope = ? AND "+owner+" = ? AND is_active = ?", name, scope, ownerID, true).
		Order("id ASC").
		First(&skill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &skill, nil
}

func (r *customSkillRepository) GetByID(ctx context.Context, id string) (*model.CustomSkill, error) {
	var skill model.CustomSkill
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&skill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &skill, nil
}

func (r *customSkillRepository) GetByStorageKey(ctx context.Context, key string) (*model.CustomSkill, error) {
	var skill model.CustomSkill
	err := r.db.WithContext(ctx).Where("storage_key = ?", key).First(&skill).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &skill, nil
}

func (r *customSkillRepository) Create(ctx context.Context, skill *model.CustomSkill) error {
	return r.db.WithContext(ctx).Create(skill).Error
}

func (r *customSkillRepository) Update(ctx context.Context, skill *model.CustomSkill) error {
	return r.db.WithContext(ctx).Save(skill).Error
}

// SoftDelete 使用 UpdateColumn 跳过钩子
func (r *customSkillRepository) SoftDelete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&model.CustomSkill{}).
		Where("id = ?", id).
		UpdateColumn("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// skillRecordStore 将 CustomSkillRepository 适配为 skills.RecordStore
type skillRecordStore struct {
	repo CustomSkillRepository
}

// NewSkillRecordStore 创建 Registry 使用的记录查询
func NewSkillRecordStore(repo CustomSkillRepository) skills.RecordStore {
	return &skillRecordStore{repo: repo}
}

func (s *skillRecordStore) ListActiveByUser(ctx context.Context, userID string) ([]skills.Record, error) {
	list, err := s.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toRecords(list), nil
}

func (s *skillRecordStore) ListActiveByTeam(ctx context.Context, teamID string) ([]skills.Record, error) {
	list, err := s.repo.ListActiveByTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return toRecords(list), nil
}

func (s *skillRecordStore) FindActive(ctx context.Context, name string, source skills.Source, ownerID string) (*skills.Record, error) {
	rec, err := s.repo.FindActive(ctx, name, source.String(), ownerID)
	if err != nil || rec == nil {
		return nil, err
	}
	out := ToSkillRecord(rec)
	return &out, nil
}

// ToSkillRecord 转换为 skills.Record
func ToSkillRecord(m *model.CustomSkill) skills.Record {
	source := skills.SourcePrivate
	if m.Scope == model.SkillScopeShared {
		source = skills.SourceShared
	}
	rec := skills.Record{
		ID:          m.ID,
		Name:        m.Name,
		StorageKey:  m.StorageKey,
		Source:      source,
		Version:     m.Version,
		ContentHash: m.ContentHash,
		Description: m.Description,
		Author:      m.Author,
		Triggers:    m.Triggers,
		Industries:  m.Industries,
		Tags:        m.Tags,
	}
	if m.UserID != nil {
		rec.UserID = *m.UserID
	}
	if m.TeamID != nil {
		rec.TeamID = *m.TeamID
	}
	return rec
}

func toRecords(list []*model.CustomSkill) []skills.Record {
	out := make([]skills.Record, 0, len(list))
	for _, m := range list {
		out = append(out, ToSkillRecord(m))
	}
	return out
}
