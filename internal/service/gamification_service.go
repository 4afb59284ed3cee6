package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-ops-api/internal/repository"
)

// Badge names awarded for resolved complaints.
const (
	BadgeVigilantStudent = "Vigilant Student"
	BadgeEcoWarrior      = "Eco Warrior"
	BadgeCampusHero      = "Campus Hero"
	BadgeLegend          = "Legend"
)

var badgeLadder = []struct {
	threshold int
	badge     string
}{
	{1, BadgeVigilantStudent},
	{5, BadgeEcoWarrior},
	{10, BadgeCampusHero},
	{25, BadgeLegend},
}

type activityRepository interface {
	RecordActivity(ctx context.Context, userID string, day time.Time, fn repository.StreakFunc) (int, error)
	AddBadge(ctx context.Context, userID, badge string) (bool, error)
}

type resolvedCounter interface {
	CountResolvedByStudent(ctx context.Context, studentID string) (int, error)
}

// GamificationService keeps contribution streaks and resolution badges.
type GamificationService struct {
	repo     activityRepository
	resolved resolvedCounter
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewGamificationService constructs the tracker. Day boundaries follow loc.
func NewGamificationService(repo activityRepository, resolved resolvedCounter, loc *time.Location, logger *zap.Logger) *GamificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &GamificationService{repo: repo, resolved: resolved, loc: loc, logger: logger, now: time.Now}
}

// Today returns the current campus day at midnight.
func (s *GamificationService) Today() time.Time {
	return CampusDay(s.now(), s.loc)
}

// TouchStreak applies today's activity to the user's streak and returns it.
// Repeated calls on the same day leave the streak unchanged.
func (s *GamificationService) TouchStreak(ctx context.Context, userID string) (int, error) {
	today := s.Today()
	return s.repo.RecordActivity(ctx, userID, today, func(last *time.Time, streak int) (int, bool) {
		return NextStreak(last, streak, today)
	})
}

// AwardBadges grants every badge whose resolved-complaint threshold the
// student has reached and returns the ones newly added.
func (s *GamificationService) AwardBadges(ctx context.Context, studentID string) ([]string, error) {
	count, err := s.resolved.CountResolvedByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	var added []string
	for _, rung := range badgeLadder {
		if count < rung.threshold {
			break
		}
		ok, err := s.repo.AddBadge(ctx, studentID, rung.badge)
		if err != nil {
			return added, err
		}
		if ok {
			added = append(added, rung.badge)
			s.logger.Info("badge awarded", zap.String("user_id", studentID), zap.String("badge", rung.badge), zap.Int("resolved", count))
		}
	}
	return added, nil
}

// NextStreak computes the streak after activity on today. Gaps are counted
// in calendar days; a last-active day on or after today changes nothing.
func NextStreak(lastActive *time.Time, streak int, today time.Time) (int, bool) {
	if lastActive == nil {
		return 1, true
	}
	switch gap := daysBetween(*lastActive, today); {
	case gap <= 0:
		return streak, false
	case gap == 1:
		return streak + 1, true
	default:
		return 1, true
	}
}

// CampusDay truncates t to midnight of its calendar date in loc.
func CampusDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
