package session

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Session 单个用户的内存会话状态
type Session struct {
	UserID         string    `json:"user_id"`
	LastActivityAt time.Time `json:"last_activity_at"`
	PendingHistory []string  `json:"pending_history"`

	// New 为 true 表示本次 WithSession 是该会话的第一次访问
	New bool `json:"-"`
}

// Message 一次用户输入
type Message struct {
	UserID      string
	Text        string
	HistoryHint string // 调用方提供的历史摘要片段，可为空
}

// NormalizeUserID 去除首尾空白并做 Unicode 大小写折叠（"STRASSE" 与 "straße" 视为同一用户）
// cases.Caser 有状态，不可跨 goroutine 共享，因此每次调用新建。
func NormalizeUserID(userID string) (string, error) {
	id := cases.Fold().String(strings.TrimSpace(userID))
	if id == "" {
		return "", ErrUserIDRequired
	}
	return id, nil
}

// RenderTranscript 渲染编号对话记录，每行 "{i}. {msg}\n"，序号从 1 开始
func RenderTranscript(history []string) string {
	var b strings.Builder
	for i, msg := range history {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(msg)
		b.WriteByte('\n')
	}
	return b.String()
}

func (s *Session) clone() Session {
	cp := *s
	cp.PendingHistory = make([]string, len(s.PendingHistory))
	copy(cp.PendingHistory, s.PendingHistory)
	return cp
}
