package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/kikundi/core"
	"github.com/trezcool/kikundi/core/session"
)

type sessionRepository struct {
	db     *sessionTable
	groups *groupTable
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db.session, groups: db.group}
}

func (repo *sessionRepository) query() []session.Session {
	sessions := make([]session.Session, 0, len(repo.db.table))
	for _, s := range repo.db.table {
		sess := *s
		sess.Attendees = session.CopyAttendees(s.Attendees)
		sess.GroupName = repo.groupName(sess.GroupID)
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ScheduledStart.Before(sessions[j].ScheduledStart)
	})
	return sessions
}

func (repo *sessionRepository) groupName(groupID string) string {
	repo.groups.RLock()
	defer repo.groups.RUnlock()
	if grp, ok := repo.groups.table[groupID]; ok {
		return grp.Name
	}
	return ""
}

func (repo *sessionRepository) memberOf(userID string) map[string]struct{} {
	repo.groups.RLock()
	defer repo.groups.RUnlock()
	groupIDs := make(map[string]struct{})
	for groupID, members := range repo.groups.members {
		for _, mbr := range members {
			if mbr.UserID == userID {
				groupIDs[groupID] = struct{}{}
				break
			}
		}
	}
	return groupIDs
}

// intersects reports whether the session window intersects [from, to).
func intersects(sess session.Session, from, to time.Time) bool {
	if !to.IsZero() && !sess.ScheduledStart.Before(to) {
		return false
	}
	if !from.IsZero() && !sess.ScheduledEnd().After(from) {
		return false
	}
	return true
}

func (repo *sessionRepository) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess.ID = uuid.New().String()
	stored := sess
	stored.Attendees = session.CopyAttendees(sess.Attendees)
	repo.db.table[sess.ID] = &stored

	sess.GroupName = repo.groupName(sess.GroupID)
	return sess, nil
}

func (repo *sessionRepository) QuerySessions(_ context.Context, filter *session.QueryFilter, ordering []core.DBOrdering) ([]session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sessions := repo.query()
	if filter == nil || filter.IsEmpty() {
		return sessions, nil
	}

	matches := make([]session.Session, 0, len(sessions))
	for _, sess := range sessions {
		if filter.GroupID != "" && sess.GroupID != filter.GroupID {
			continue
		}
		if !intersects(sess, filter.From, filter.To) {
			continue
		}
		matches = append(matches, sess)
	}
	return matches, nil
}

func (repo *sessionRepository) QuerySessionsForUserByRange(_ context.Context, userID string, from, to time.Time) ([]session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	groupIDs := repo.memberOf(userID)

	var matches []session.Session
	for _, sess := range repo.query() {
		if _, ok := groupIDs[sess.GroupID]; !ok {
			continue
		}
		if !intersects(sess, from, to) {
			continue
		}
		matches = append(matches, sess)
	}
	return matches, nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sess, ok := repo.db.table[id]; ok {
		out := *sess
		out.Attendees = session.CopyAttendees(sess.Attendees)
		out.GroupName = repo.groupName(out.GroupID)
		return out, nil
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) UpdateSession(_ context.Context, sess session.Session) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[sess.ID]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	if sess.Title != "" {
		orig.Title = sess.Title
	}
	orig.Description = sess.Description
	orig.Location = sess.Location
	if !sess.ScheduledStart.IsZero() {
		orig.ScheduledStart = sess.ScheduledStart
	}
	if sess.DurationMinutes > 0 {
		orig.DurationMinutes = sess.DurationMinutes
	}
	if !sess.UpdatedAt.IsZero() {
		orig.UpdatedAt = sess.UpdatedAt
	}

	out := *orig
	out.Attendees = session.CopyAttendees(orig.Attendees)
	out.GroupName = repo.groupName(out.GroupID)
	return out, nil
}

func (repo *sessionRepository) DeleteSessionsByID(_ context.Context, ids []string) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *sessionRepository) ReplaceAttendees(_ context.Context, sessionID string, attendees []session.Attendee) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess, ok := repo.db.table[sessionID]
	if !ok {
		return session.ErrNotFound
	}
	sess.Attendees = session.CopyAttendees(attendees)
	return nil
}
