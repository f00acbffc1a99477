package ledger

import "time"

// Status 项目状态
type Status string

const (
	StatusPending   Status = "pending"   // 待审核，核心流程不会进入
	StatusActive    Status = "active"    // 募资中
	StatusCompleted Status = "completed" // 已达成目标
	StatusExpired   Status = "expired"   // 已过期
)

// Terminal 是否终态
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusExpired
}

// RequestStatus 里程碑请求状态
type RequestStatus string

const (
	RequestOpen     RequestStatus = "open"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
	RequestExecuted RequestStatus = "executed"
)

// Project 众筹项目
type Project struct {
	ID           uint64  `json:"id"`
	Owner        Address `json:"owner"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	FundingGoal  Amount  `json:"funding_goal"`
	Deadline     int64   `json:"deadline"`
	AmountRaised Amount  `json:"amount_raised"`
	Released     Amount  `json:"released"`
	Status       Status  `json:"status"`
	BackerCount  uint64  `json:"backer_count"`
	CreatedAt    int64   `json:"created_at"`
}

// Available 托管中尚未释放的余额
func (p Project) Available() Amount {
	return p.AmountRaised - p.Released
}

// Contribution 单笔出资
type Contribution struct {
	ProjectID      uint64  `json:"project_id"`
	Seq            uint64  `json:"seq"`
	Contributor    Address `json:"contributor"`
	Amount         Amount  `json:"amount"`
	Timestamp      int64   `json:"timestamp"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

// MilestoneRequest 资金释放请求
type MilestoneRequest struct {
	ProjectID        uint64        `json:"project_id"`
	ID               uint64        `json:"id"`
	Description      string        `json:"description"`
	Recipient        Address       `json:"recipient"`
	Amount           Amount        `json:"amount"`
	VotingDeadline   int64         `json:"voting_deadline"`
	VotesFor         Amount        `json:"votes_for"`
	VotesAgainst     Amount        `json:"votes_against"`
	TotalVotingPower Amount        `json:"total_voting_power"`
	Executed         bool          `json:"executed"`
	Status           RequestStatus `json:"status"`
	CreatedAt        int64         `json:"created_at"`
}

// ContributorWeight 出资人累计投票权重
type ContributorWeight struct {
	Contributor       Address `json:"contributor"`
	Amount            Amount  `json:"amount"`
	FirstContribution int64   `json:"first_contribution"`
	firstSeq          uint64
}

// Clock 时间来源
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock 系统时钟
var SystemClock Clock = systemClock{}
