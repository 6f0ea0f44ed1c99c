package skills

import (
	"math"
	"strings"
	"unicode/utf8"
)

const (
	// ExactConfidence 消息与 trigger 完全一致
	ExactConfidence = 1.0
	// PrefixConfidence 消息以 trigger 开头
	PrefixConfidence = 0.9
	// MaxSubstringConfidence 子串/有序词匹配的上限
	MaxSubstringConfidence = 0.8
	// PartialConfidence 未匹配但出现了 trigger 中的某个词，仅作参考，不参与选择
	PartialConfidence = 0.3
)

// TriggerMatcher 判断消息是否命中 trigger 并给出置信度
type TriggerMatcher interface {
	// Match 是否命中（子串或有序词）
	Match(message, trigger string) bool
	// Confidence 置信度，取值 [0, 1]
	Confidence(message, trigger string) float64
}

// LexicalMatcher 基于字面的 trigger 匹配，忽略大小写
type LexicalMatcher struct{}

// NewLexicalMatcher 创建匹配器
func NewLexicalMatcher() *LexicalMatcher {
	return &LexicalMatcher{}
}

// Match 是否命中
func (LexicalMatcher) Match(message, trigger string) bool {
	msg, trig := normalize(message, trigger)
	if trig == "" {
		return false
	}
	return strings.Contains(msg, trig) || orderedWordsMatch(msg, trig)
}

// Confidence 计算置信度
// 完全一致 1.0，前缀 0.9，子串或有序词 min(0.8, 0.5+len/100)，部分命中 0.3，否则 0
func (LexicalMatcher) Confidence(message, trigger string) float64 {
	msg, trig := normalize(message, trigger)
	if trig == "" {
		return 0
	}

	trimmed := strings.TrimSpace(msg)
	switch {
	case trimmed == trig:
		return ExactConfidence
	case strings.HasPrefix(trimmed, trig):
		return PrefixConfidence
	case strings.Contains(msg, trig), orderedWordsMatch(msg, trig):
		return substringConfidence(trig)
	case anyWordPresent(msg, trig):
		return PartialConfidence
	default:
		return 0
	}
}

func normalize(message, trigger string) (string, string) {
	return strings.ToLower(message), strings.TrimSpace(strings.ToLower(trigger))
}

// substringConfidence trigger 越长置信度越高
func substringConfidence(trigger string) float64 {
	return math.Min(MaxSubstringConfidence, 0.5+float64(utf8.RuneCountInString(trigger))/100)
}

// orderedWordsMatch 多词 trigger 的各个词在同一行内按顺序出现（不要求相邻）
func orderedWordsMatch(message, trigger string) bool {
	words := strings.Fields(trigger)
	if len(words) < 2 {
		return false
	}
	for _, line := range strings.Split(message, "\n") {
		if wordsInOrder(line, words) {
			return true
		}
	}
	return false
}

func wordsInOrder(line string, words []string) bool {
	rest := line
	for _, w := range words {
		idx := strings.Index(rest, w)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(w):]
	}
	return true
}

func anyWordPresent(message, trigger string) bool {
	for _, w := range strings.Fields(trigger) {
		if strings.Contains(message, w) {
			return true
		}
	}
	return false
}
