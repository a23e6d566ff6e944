package domain

import "encoding/json"

// 房间广播事件类型 (出站消息的 type 字段)
const (
	EventParticipantsUpdate = "participants_update"
	EventChatMessage        = "chat_message"
	EventUpdateParticipants = "update_participants" // 仅入站：请求刷新参与者名单
	EventStudyUpdate        = "study_update"
	EventTyping             = "typing"
	EventFileUploaded       = "file_uploaded"
	EventFileDeleted        = "file_deleted"
	EventAddTask            = "add_task"
	EventRemoveTask         = "remove_task"
	EventToggleTask         = "toggle_task"
	EventDeleteList         = "delete_list"
)

// Event 是发送给房间广播组的出站消息。
type Event interface {
	EventType() string
}

// ParticipantsUpdate 参与者名单更新
type ParticipantsUpdate struct {
	Type         string   `json:"type"`
	Participants []string `json:"participants"`
}

func (e ParticipantsUpdate) EventType() string { return e.Type }

// NewParticipantsUpdate 用用户名列表构造名单事件 (nil 会被编码为空数组)
func NewParticipantsUpdate(usernames []string) ParticipantsUpdate {
	if usernames == nil {
		usernames = []string{}
	}
	return ParticipantsUpdate{Type: EventParticipantsUpdate, Participants: usernames}
}

// ParticipantsFromUsers 取出用户名，保持存储返回的顺序
func ParticipantsFromUsers(users []User) []string {
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	return names
}

// ChatMessage 聊天消息，message 和 sender 原样转发
type ChatMessage struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
	Sender  json.RawMessage `json:"sender"`
}

func (e ChatMessage) EventType() string { return e.Type }

// StudyUpdate 学习状态更新，update 为不透明负载
type StudyUpdate struct {
	Type   string          `json:"type"`
	Update json.RawMessage `json:"update"`
}

func (e StudyUpdate) EventType() string { return e.Type }

// Typing 正在输入提示
type Typing struct {
	Type   string          `json:"type"`
	Sender json.RawMessage `json:"sender"`
}

func (e Typing) EventType() string { return e.Type }

// FileUploaded 文件上传通知
type FileUploaded struct {
	Type string          `json:"type"`
	File json.RawMessage `json:"file"`
}

func (e FileUploaded) EventType() string { return e.Type }

// FileDeleted 文件删除通知
type FileDeleted struct {
	Type     string          `json:"type"`
	FileName json.RawMessage `json:"fileName"`
}

func (e FileDeleted) EventType() string { return e.Type }

// TaskPayload 是 add_task 事件中的任务描述
type TaskPayload struct {
	ID          uint   `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	IsCompleted bool   `json:"is_completed"`
	ListID      uint   `json:"list_id"`
}

// AddTask 新任务
type AddTask struct {
	Type string      `json:"type"`
	Task TaskPayload `json:"task"`
}

func (e AddTask) EventType() string { return e.Type }

// NewAddTask 由任务构造 add_task 事件
func NewAddTask(t Task) AddTask {
	return AddTask{Type: EventAddTask, Task: TaskPayload{
		ID:          t.ID,
		Title:       t.Title,
		Content:     t.Content,
		IsCompleted: t.IsCompleted,
		ListID:      t.ListID,
	}}
}

// RemoveTask 任务被删除
type RemoveTask struct {
	Type   string `json:"type"`
	TaskID uint   `json:"task_id"`
}

func (e RemoveTask) EventType() string { return e.Type }

// ToggleTask 任务完成状态切换
type ToggleTask struct {
	Type        string `json:"type"`
	TaskID      uint   `json:"task_id"`
	IsCompleted bool   `json:"is_completed"`
}

func (e ToggleTask) EventType() string { return e.Type }

// DeleteList 整个列表被删除
type DeleteList struct {
	Type   string `json:"type"`
	ListID uint   `json:"list_id"`
}

func (e DeleteList) EventType() string { return e.Type }

// ClientMessage 是客户端发来的入站消息，字段按类型选用。
type ClientMessage struct {
	Type     string          `json:"type"`
	Message  json.RawMessage `json:"message,omitempty"`
	Sender   json.RawMessage `json:"sender,omitempty"`
	Update   json.RawMessage `json:"update,omitempty"`
	File     json.RawMessage `json:"file,omitempty"`
	FileName json.RawMessage `json:"fileName,omitempty"`
}

// RelayEvent 把入站消息转换为需要转发给整个组的事件。
// update_participants 和未知类型返回 ok=false；缺少必需字段时同样返回 false。
func (m ClientMessage) RelayEvent() (Event, bool) {
	switch m.Type {
	case EventChatMessage:
		if !present(m.Message) || !present(m.Sender) {
			return nil, false
		}
		return ChatMessage{Type: EventChatMessage, Message: m.Message, Sender: m.Sender}, true
	case EventStudyUpdate:
		if !present(m.Update) {
			return nil, false
		}
		return StudyUpdate{Type: EventStudyUpdate, Update: m.Update}, true
	case EventTyping:
		if !present(m.Sender) {
			return nil, false
		}
		return Typing{Type: EventTyping, Sender: m.Sender}, true
	case EventFileUploaded:
		if !present(m.File) {
			return nil, false
		}
		return FileUploaded{Type: EventFileUploaded, File: m.File}, true
	case EventFileDeleted:
		if !present(m.FileName) {
			return nil, false
		}
		return FileDeleted{Type: EventFileDeleted, FileName: m.FileName}, true
	}
	return nil, false
}

func present(raw json.RawMessage) bool { return len(raw) > 0 }
