package ledger

import (
	"context"
	"fmt"
	"sync"
)

// EventType 账本事件类型
type EventType string

const (
	EventProjectCreated   EventType = "ProjectCreated"
	EventProjectFunded    EventType = "ProjectFunded"
	EventProjectExpired   EventType = "ProjectExpired"
	EventRequestCreated   EventType = "RequestCreated"
	EventVoteCast         EventType = "VoteCast"
	EventRequestFinalized EventType = "RequestFinalized"
)

// Event 一次已接受的状态变更，Version 即变更后的账本版本号
type Event struct {
	Version uint64    `json:"version"`
	Type    EventType `json:"type"`
	At      int64     `json:"at"`

	ProjectCreated   *ProjectCreated   `json:"project_created,omitempty"`
	ProjectFunded    *ProjectFunded    `json:"project_funded,omitempty"`
	ProjectExpired   *ProjectExpired   `json:"project_expired,omitempty"`
	RequestCreated   *RequestCreated   `json:"request_created,omitempty"`
	VoteCast         *VoteCast         `json:"vote_cast,omitempty"`
	RequestFinalized *RequestFinalized `json:"request_finalized,omitempty"`
}

type ProjectCreated struct {
	ProjectID   uint64  `json:"project_id"`
	Owner       Address `json:"owner"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	FundingGoal Amount  `json:"funding_goal"`
	Deadline    int64   `json:"deadline"`
}

type ProjectFunded struct {
	ProjectID      uint64  `json:"project_id"`
	Contributor    Address `json:"contributor"`
	Amount         Amount  `json:"amount"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
	NewBacker      bool    `json:"new_backer"`
	Completed      bool    `json:"completed"`
}

type ProjectExpired struct {
	ProjectID uint64 `json:"project_id"`
}

type RequestCreated struct {
	ProjectID        uint64  `json:"project_id"`
	RequestID        uint64  `json:"request_id"`
	Description      string  `json:"description"`
	Recipient        Address `json:"recipient"`
	Amount           Amount  `json:"amount"`
	VotingDeadline   int64   `json:"voting_deadline"`
	TotalVotingPower Amount  `json:"total_voting_power"`
}

type VoteCast struct {
	ProjectID uint64  `json:"project_id"`
	RequestID uint64  `json:"request_id"`
	Voter     Address `json:"voter"`
	Support   bool    `json:"support"`
	Weight    Amount  `json:"weight"`
}

type RequestFinalized struct {
	ProjectID uint64        `json:"project_id"`
	RequestID uint64        `json:"request_id"`
	Outcome   RequestStatus `json:"outcome"`
	Recipient Address       `json:"recipient"`
	Amount    Amount        `json:"amount"`
}

// ProjectID 事件关联的项目ID
func (e Event) ProjectID() uint64 {
	switch {
	case e.ProjectCreated != nil:
		return e.ProjectCreated.ProjectID
	case e.ProjectFunded != nil:
		return e.ProjectFunded.ProjectID
	case e.ProjectExpired != nil:
		return e.ProjectExpired.ProjectID
	case e.RequestCreated != nil:
		return e.RequestCreated.ProjectID
	case e.VoteCast != nil:
		return e.VoteCast.ProjectID
	case e.RequestFinalized != nil:
		return e.RequestFinalized.ProjectID
	}
	return 0
}

// Validate 检查事件类型与负载一致
func (e Event) Validate() error {
	var ok bool
	switch e.Type {
	case EventProjectCreated:
		ok = e.ProjectCreated != nil
	case EventProjectFunded:
		ok = e.ProjectFunded != nil
	case EventProjectExpired:
		ok = e.ProjectExpired != nil
	case EventRequestCreated:
		ok = e.RequestCreated != nil
	case EventVoteCast:
		ok = e.VoteCast != nil
	case EventRequestFinalized:
		ok = e.RequestFinalized != nil
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if !ok {
		return fmt.Errorf("event %d of type %s has no payload", e.Version, e.Type)
	}
	return nil
}

// Journal 持久化账本事件。Append 返回错误时账本不会应用该事件
type Journal interface {
	Append(ctx context.Context, ev Event) error
}

// JournalReader 可按版本读回已持久化事件的日志。
// Append 报错但结果不明（例如提交成功而应答丢失）时，账本借此与持久化状态对齐
type JournalReader interface {
	EventsAfter(ctx context.Context, version uint64) ([]Event, error)
}

// MemoryJournal 内存事件日志
type MemoryJournal struct {
	mu     sync.Mutex
	events []Event
	// 非空时 Append 直接返回该错误
	Fail error
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Append(_ context.Context, ev Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Fail != nil {
		return j.Fail
	}
	j.events = append(j.events, ev)
	return nil
}

// Events 返回已追加事件的副本
func (j *MemoryJournal) Events() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Event, len(j.events))
	copy(out, j.events)
	return out
}

// EventsAfter 返回版本大于 version 的事件
func (j *MemoryJournal) EventsAfter(_ context.Context, version uint64) ([]Event, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Event
	for _, ev := range j.events {
		if ev.Version > version {
			out = append(out, ev)
		}
	}
	return out, nil
}
