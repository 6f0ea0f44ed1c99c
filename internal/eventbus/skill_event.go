package eventbus

type SkillEventType string

const (
	SkillEventCreated  SkillEventType = "SkillCreated"
	SkillEventUpdated  SkillEventType = "SkillUpdated"
	SkillEventDeleted  SkillEventType = "SkillDeleted"
	SkillEventPromoted SkillEventType = "SkillPromoted"
)

// AllSkillEventTypes 所有自定义 Skill 事件
var AllSkillEventTypes = []SkillEventType{
	SkillEventCreated,
	SkillEventUpdated,
	SkillEventDeleted,
	SkillEventPromoted,
}

// SkillEvent 自定义 Skill 变更事件
type SkillEvent struct {
	Type       SkillEventType
	RecordID   string
	StorageKey string
	Name       string
	Scope      string
	OwnerID    string
}

func (e SkillEvent) EventType() SkillEventType { return e.Type }

type SkillEventHandler = Handler[SkillEvent]
type SkillEventBus = Bus[SkillEventType, SkillEvent]

func NewSkillEventBus() *SkillEventBus {
	return NewBus[SkillEventType, SkillEvent]()
}
