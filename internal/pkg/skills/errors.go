package skills

import "errors"

// 预定义错误
var (
	// ErrSkillNotFound 所有可见来源中都不存在该 Skill
	ErrSkillNotFound = errors.New("skill not found")

	// ErrValidation SKILL.md 文档校验失败，所有解析错误都包装该错误
	ErrValidation = errors.New("invalid skill document")

	// ErrEmptyContent 文档为空
	ErrEmptyContent = errors.New("content is empty")

	// ErrContentTooLarge 文档超过 100KB
	ErrContentTooLarge = errors.New("content exceeds 100KB limit")

	// ErrMissingFrontmatter 缺少 frontmatter
	ErrMissingFrontmatter = errors.New("missing YAML frontmatter (must start with ---)")

	// ErrInvalidFrontmatter frontmatter 格式错误
	ErrInvalidFrontmatter = errors.New("invalid YAML frontmatter")

	// ErrMissingName 缺少 name 字段
	ErrMissingName = errors.New("missing required field: name")

	// ErrInvalidName name 格式错误
	ErrInvalidName = errors.New("invalid name format")

	// ErrInvalidList triggers/industries/tags 不是列表
	ErrInvalidList = errors.New("field must be a list")
)

// validationError 同时匹配 ErrValidation 与具体规则错误
type validationError struct {
	rule   error
	detail string
}

func (e *validationError) Error() string {
	if e.detail == "" {
		return e.rule.Error()
	}
	return e.rule.Error() + ": " + e.detail
}

func (e *validationError) Is(target error) bool {
	return target == ErrValidation || target == e.rule
}

func (e *validationError) Unwrap() error {
	return e.rule
}

func invalid(rule error, detail string) error {
	return &validationError{rule: rule, detail: detail}
}
