package dto

// CreateRoomRequest 创建房间请求；sessionName 缺失和为空时使用不同的默认名称
type CreateRoomRequest struct {
	SessionName *string `json:"sessionName"`
}

// RoomCodeRequest 加入/离开房间请求
type RoomCodeRequest struct {
	RoomCode string `json:"roomCode" binding:"required"`
}

// CreateRoomResponse 创建房间成功的响应
type CreateRoomResponse struct {
	RoomCode string `json:"roomCode"`
	RoomList uint   `json:"roomList"`
}

// MessageResponse 只带提示信息的响应
type MessageResponse struct {
	Message string `json:"message"`
}

// RoomDetailsResponse 房间详情
type RoomDetailsResponse struct {
	SessionName string `json:"sessionName"`
	RoomList    uint   `json:"roomList"`
}

// LeaveRoomResponse 离开房间成功的响应
type LeaveRoomResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// Participant 名单中的一个参与者
type Participant struct {
	Username string `json:"username"`
}

// ParticipantsResponse 参与者名单，顺序与房间广播的名单一致
type ParticipantsResponse struct {
	ParticipantsList []Participant `json:"participantsList"`
}

// NewParticipantsResponse 由用户名列表构造响应 (空名单编码为空数组)
func NewParticipantsResponse(usernames []string) ParticipantsResponse {
	list := make([]Participant, 0, len(usernames))
	for _, name := range usernames {
		list = append(list, Participant{Username: name})
	}
	return ParticipantsResponse{ParticipantsList: list}
}
