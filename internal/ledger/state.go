package ledger

import "fmt"

type projectState struct {
	Project
	contributions []Contribution
	weights       map[Address]*ContributorWeight
	requests      []*requestState
	idempotency   map[string]Contribution
}

type requestState struct {
	MilestoneRequest
	voters map[Address]bool
}

type state struct {
	version  uint64
	projects []*projectState
}

func (s *state) project(id uint64) *projectState {
	if id == 0 || id > uint64(len(s.projects)) {
		return nil
	}
	return s.projects[id-1]
}

func (ps *projectState) request(id uint64) *requestState {
	if id == 0 || id > uint64(len(ps.requests)) {
		return nil
	}
	return ps.requests[id-1]
}

// effectiveStatus 惰性判断过期
func (ps *projectState) effectiveStatus(now int64) Status {
	if ps.Status == StatusActive && now >= ps.Deadline && ps.AmountRaised < ps.FundingGoal {
		return StatusExpired
	}
	return ps.Status
}

func (ps *projectState) snapshot(now int64) Project {
	p := ps.Project
	p.Status = ps.effectiveStatus(now)
	return p
}

// apply 状态转移函数，运行时提交和启动回放共用
func (s *state) apply(ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	if ev.Version != s.version+1 {
		return fmt.Errorf("event version %d does not follow state version %d", ev.Version, s.version)
	}

	switch ev.Type {
	case EventProjectCreated:
		pc := ev.ProjectCreated
		if pc.ProjectID != uint64(len(s.projects))+1 {
			return fmt.Errorf("project id %d out of sequence", pc.ProjectID)
		}
		s.projects = append(s.projects, &projectState{
			Project: Project{
				ID:          pc.ProjectID,
				Owner:       pc.Owner,
				Title:       pc.Title,
				Description: pc.Description,
				FundingGoal: pc.FundingGoal,
				Deadline:    pc.Deadline,
				Status:      StatusActive,
				CreatedAt:   ev.At,
			},
			weights:     make(map[Address]*ContributorWeight),
			idempotency: make(map[string]Contribution),
		})

	case EventProjectFunded:
		pf := ev.ProjectFunded
		ps := s.project(pf.ProjectID)
		if ps == nil {
			return fmt.Errorf("funded unknown project %d", pf.ProjectID)
		}
		raised, err := ps.AmountRaised.Add(pf.Amount)
		if err != nil {
			return err
		}
		c := Contribution{
			ProjectID:      pf.ProjectID,
			Seq:            uint64(len(ps.contributions)) + 1,
			Contributor:    pf.Contributor,
			Amount:         pf.Amount,
			Timestamp:      ev.At,
			IdempotencyKey: pf.IdempotencyKey,
		}
		ps.contributions = append(ps.contributions, c)
		ps.AmountRaised = raised
		if w, ok := ps.weights[pf.Contributor]; ok {
			w.Amount += pf.Amount
		} else {
			ps.weights[pf.Contributor] = &ContributorWeight{
				Contributor:       pf.Contributor,
				Amount:            pf.Amount,
				FirstContribution: ev.At,
				firstSeq:          c.Seq,
			}
			ps.BackerCount++
		}
		if pf.IdempotencyKey != "" {
			ps.idempotency[pf.IdempotencyKey] = c
		}
		if ps.AmountRaised >= ps.FundingGoal {
			ps.Status = StatusCompleted
		}

	case EventProjectExpired:
		ps := s.project(ev.ProjectExpired.ProjectID)
		if ps == nil {
			return fmt.Errorf("expired unknown project %d", ev.ProjectExpired.ProjectID)
		}
		ps.Status = StatusExpired

	case EventRequestCreated:
		rc := ev.RequestCreated
		ps := s.project(rc.ProjectID)
		if ps == nil {
			return fmt.Errorf("request for unknown project %d", rc.ProjectID)
		}
		if rc.RequestID != uint64(len(ps.requests))+1 {
			return fmt.Errorf("request id %d out of sequence for project %d", rc.RequestID, rc.ProjectID)
		}
		ps.requests = append(ps.requests, &requestState{
			MilestoneRequest: MilestoneRequest{
				ProjectID:        rc.ProjectID,
				ID:               rc.RequestID,
				Description:      rc.Description,
				Recipient:        rc.Recipient,
				Amount:           rc.Amount,
				VotingDeadline:   rc.VotingDeadline,
				TotalVotingPower: rc.TotalVotingPower,
				Status:           RequestOpen,
				CreatedAt:        ev.At,
			},
			voters: make(map[Address]bool),
		})

	case EventVoteCast:
		vc := ev.VoteCast
		ps := s.project(vc.ProjectID)
		if ps == nil {
			return fmt.Errorf("vote for unknown project %d", vc.ProjectID)
		}
		rs := ps.request(vc.RequestID)
		if rs == nil {
			return fmt.Errorf("vote for unknown request %d/%d", vc.ProjectID, vc.RequestID)
		}
		if rs.voters[vc.Voter] {
			return fmt.Errorf("duplicate vote by %s on request %d/%d", vc.Voter, vc.ProjectID, vc.RequestID)
		}
		rs.voters[vc.Voter] = true
		if vc.Support {
			rs.VotesFor += vc.Weight
		} else {
			rs.VotesAgainst += vc.Weight
		}

	case EventRequestFinalized:
		rf := ev.RequestFinalized
		ps := s.project(rf.ProjectID)
		if ps == nil {
			return fmt.Errorf("finalize for unknown project %d", rf.ProjectID)
		}
		rs := ps.request(rf.RequestID)
		if rs == nil {
			return fmt.Errorf("finalize for unknown request %d/%d", rf.ProjectID, rf.RequestID)
		}
		if rf.Outcome == RequestExecuted && rs.Amount > ps.Available() {
			return fmt.Errorf("request %d/%d exceeds available balance", rf.ProjectID, rf.RequestID)
		}
		rs.Status = rf.Outcome
		if rf.Outcome == RequestExecuted {
			ps.Released += rs.Amount
			rs.Executed = true
		}
	}

	s.version = ev.Version
	return nil
}
