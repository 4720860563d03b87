package domain

import "time"

// SessionLoggedOnEvent 会话登录完成事件
type SessionLoggedOnEvent struct {
	SessionID  string
	OccurredOn time.Time
}

// SessionLoggedOutEvent 会话登出完成事件
type SessionLoggedOutEvent struct {
	SessionID  string
	Reason     string
	OccurredOn time.Time
}

// GapDetectedEvent 目标序号跳号事件（触发补发请求）
type GapDetectedEvent struct {
	SessionID  string
	Expected   int
	Received   int
	OccurredOn time.Time
}

// ResendCompletedEvent 补发范围处理完成事件
type ResendCompletedEvent struct {
	SessionID  string
	BeginSeq   int
	EndSeq     int
	OccurredOn time.Time
}

// SessionDisconnectedEvent 会话断开事件
type SessionDisconnectedEvent struct {
	SessionID  string
	Reason     string
	OccurredOn time.Time
}
