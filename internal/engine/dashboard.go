package engine

import (
	"context"
	"time"

	"digitalcoo/internal/domain"
	"digitalcoo/internal/repo"
)

const urgentLimit = 10

type DashboardStats struct {
	TotalTasks          int            `json:"totalTasks"`
	CompletedToday      int            `json:"completedToday"`
	PendingAttention    int            `json:"pendingAttention"`
	ErrorCount          int            `json:"errorCount"`
	ProjectCount        int            `json:"projectCount"`
	AgentCount          int            `json:"agentCount"`
	UnreadNotifications int            `json:"unreadNotifications"`
	ByCategory          map[string]int `json:"byCategory"`
}

// startOfDay returns local midnight of t in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DashboardStats recomputes the counters on every call.
func (e Engine) DashboardStats(ctx context.Context, userID string) (DashboardStats, error) {
	since := domain.FormatTime(startOfDay(e.now(), e.Config.TimeLocation()))
	counts, err := e.Repo.CountTasks(ctx, userID, since)
	if err != nil {
		return DashboardStats{}, err
	}
	stats := DashboardStats{
		TotalTasks:       counts.Total,
		CompletedToday:   counts.CompletedSince,
		PendingAttention: counts.PendingAttention,
		ErrorCount:       counts.Failed,
	}
	if stats.ProjectCount, err = e.Repo.CountProjects(ctx, userID); err != nil {
		return DashboardStats{}, err
	}
	if stats.AgentCount, err = e.Repo.CountAgents(ctx, userID); err != nil {
		return DashboardStats{}, err
	}
	if stats.UnreadNotifications, err = e.Repo.CountUnreadNotifications(ctx, userID); err != nil {
		return DashboardStats{}, err
	}
	if stats.ByCategory, err = e.Repo.CountTasksByCategory(ctx, userID); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}

// UrgentTasks lists pending tasks that need a human, newest first.
func (e Engine) UrgentTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
		UserID:   userID,
		Category: domain.CategoryHumanRequired,
		Status:   domain.StatusPending,
		Limit:    urgentLimit,
	})
	if tasks == nil && err == nil {
		tasks = []domain.Task{}
	}
	return tasks, err
}
