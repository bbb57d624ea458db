package session

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/kikundi/core"
	"github.com/trezcool/kikundi/core/group"
	"github.com/trezcool/kikundi/core/user"
)

// FetchBuffer pads the date-range query on both sides of a candidate window
// so back-to-back sessions nearby are fetched for the conflict check.
// The buffer is fetch padding only: it does not define conflict semantics,
// which remain pure interval overlap (see CheckConflicts).
const FetchBuffer = 15 * time.Minute

var (
	// errors
	ErrNotFound           = errors.New("session not found")
	ErrSchedulingConflict = errors.New("the proposed time conflicts with existing sessions")

	errInvalidStatus = errors.New("invalid rsvp status")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		// QuerySessions applies AND operation on available QueryFilter fields;
		// From/To select sessions whose window intersects [From, To).
		QuerySessions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error)
		// QuerySessionsForUserByRange returns sessions of every group the user
		// belongs to whose window intersects [from, to).
		QuerySessionsForUserByRange(ctx context.Context, userID string, from, to time.Time) ([]Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		UpdateSession(ctx context.Context, sess Session) (Session, error)
		DeleteSessionsByID(ctx context.Context, ids []string) (int, error)
		ReplaceAttendees(ctx context.Context, sessionID string, attendees []Attendee) error
	}

	Service struct {
		repo    Repository
		grpSvc  *group.Service
		usrSvc  *user.Service
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config
	}
)

func NewService(
	repo Repository,
	grpSvc *group.Service,
	usrSvc *user.Service,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:    repo,
		grpSvc:  grpSvc,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

// checkConflicts fetches the actor's sessions over the buffered range and runs
// the conflict check. A failed fetch is NOT a conflict: scheduling stays
// available and the DB constraint layer remains the authority, so the check is
// skipped with a warning and an empty report returned (fail open).
func (svc *Service) checkConflicts(ctx context.Context, actorID string, cand Candidate) (ConflictReport, error) {
	if cand.Start.IsZero() || cand.DurationMinutes <= 0 {
		return ConflictReport{}, core.NewValidationError(ErrInvalidCandidate)
	}

	from := cand.Start.Add(-FetchBuffer)
	to := cand.End().Add(FetchBuffer)
	existing, err := svc.repo.QuerySessionsForUserByRange(ctx, actorID, from, to)
	if err != nil {
		svc.logger.Warn("conflict check skipped", pkgerrors.Wrap(err, "fetching sessions in range"))
		return ConflictReport{}, nil
	}
	return CheckConflicts(cand, existing)
}

// Create schedules a new session in the group after checking the actor's
// calendar for conflicts. A conflicting window fails with
// ErrSchedulingConflict and the report, unless force is set.
func (svc *Service) Create(ctx context.Context, actor user.User, grp group.Group, ns NewSession, force bool) (Session, ConflictReport, error) {
	cand := Candidate{Start: ns.ScheduledStart.UTC(), DurationMinutes: ns.DurationMinutes}
	report, err := svc.checkConflicts(ctx, actor.ID, cand)
	if err != nil {
		return Session{}, ConflictReport{}, err
	}
	if report.HasConflict && !force {
		return Session{}, report, ErrSchedulingConflict
	}

	now := time.Now().UTC()
	sess := Session{
		GroupID:         grp.ID,
		GroupName:       grp.Name,
		Title:           ns.Title,
		Description:     ns.Description,
		Location:        ns.Location,
		ScheduledStart:  cand.Start,
		DurationMinutes: ns.DurationMinutes,
		CreatedBy:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	sess, err = svc.repo.CreateSession(ctx, sess)
	if err != nil {
		return Session{}, ConflictReport{}, pkgerrors.Wrap(err, "creating session")
	}

	svc.notifyScheduled(ctx, grp, sess)
	return sess, report, nil
}

// Update reschedules or edits an existing session; the session's own window
// is excluded from the conflict scan.
func (svc *Service) Update(ctx context.Context, actor user.User, orig Session, us UpdateSession, force bool) (Session, ConflictReport, error) {
	cand := Candidate{
		Start:           us.ScheduledStart.UTC(),
		DurationMinutes: us.DurationMinutes,
		ExcludeID:       orig.ID,
	}
	report, err := svc.checkConflicts(ctx, actor.ID, cand)
	if err != nil {
		return Session{}, ConflictReport{}, err
	}
	if report.HasConflict && !force {
		return Session{}, report, ErrSchedulingConflict
	}

	sess := Session{
		ID:              orig.ID,
		GroupID:         orig.GroupID,
		GroupName:       orig.GroupName,
		Title:           us.Title,
		Description:     us.Description,
		Location:        us.Location,
		ScheduledStart:  cand.Start,
		DurationMinutes: us.DurationMinutes,
		CreatedBy:       orig.CreatedBy,
		Attendees:       orig.Attendees,
		CreatedAt:       orig.CreatedAt,
		UpdatedAt:       time.Now().UTC(),
	}
	sess, err = svc.repo.UpdateSession(ctx, sess)
	if err != nil {
		return Session{}, ConflictReport{}, pkgerrors.Wrap(err, "updating session")
	}
	return sess, report, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Session, error) {
	return svc.repo.QuerySessions(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

// Calendar returns the user's upcoming sessions across all their groups,
// windowed to [from, to).
func (svc *Service) Calendar(ctx context.Context, userID string, from, to time.Time) ([]Session, error) {
	return svc.repo.QuerySessionsForUserByRange(ctx, userID, from, to)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteSessionsByID(ctx, ids)
	return err
}

// SetRSVP records the user's RSVP on the session. The attendee list transition
// is applied optimistically on the loaded session and rolled back to the prior
// snapshot if persisting fails, so callers always see a consistent value.
func (svc *Service) SetRSVP(ctx context.Context, sess *Session, usr user.User, status Status) error {
	if !status.Valid() {
		return core.NewValidationError(errInvalidStatus, core.FieldError{Field: "rsvp_status", Error: errInvalidStatus.Error()})
	}

	mut := core.BeginMutation(
		func() interface{} { return CopyAttendees(sess.Attendees) },
		func(snapshot interface{}) { sess.Attendees = snapshot.([]Attendee) },
	)
	_ = mut.Apply(func() {
		sess.Attendees = ApplyRSVP(sess.Attendees, usr.ID, usr.Name, status, time.Now().UTC())
	})

	if err := svc.repo.ReplaceAttendees(ctx, sess.ID, sess.Attendees); err != nil {
		_ = mut.Rollback()
		return pkgerrors.Wrap(err, "saving rsvp")
	}
	_ = mut.Commit()
	return nil
}

// notifyScheduled emails group members about the new session. Failures are
// logged and never block scheduling.
func (svc *Service) notifyScheduled(ctx context.Context, grp group.Group, sess Session) {
	members, err := svc.grpSvc.Members(ctx, grp.ID)
	if err != nil {
		svc.logger.Error("notifying members", pkgerrors.Wrap(err, "querying members"))
		return
	}

	to := make([]mail.Address, 0, len(members))
	for _, mbr := range members {
		if mbr.UserID == sess.CreatedBy {
			continue
		}
		usr, err := svc.usrSvc.GetByID(ctx, mbr.UserID)
		if err != nil {
			svc.logger.Error("notifying members", pkgerrors.Wrapf(err, "finding member %s", mbr.UserID))
			continue
		}
		to = append(to, mail.Address{Name: usr.Name, Address: usr.Email})
	}
	if len(to) == 0 {
		return
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           to,
		Subject:      fmt.Sprintf("New study session: %s", sess.Title),
		TemplateName: "session-scheduled",
		TemplateData: struct {
			Group   group.Group
			Session Session
		}{grp, sess},
	})
}
