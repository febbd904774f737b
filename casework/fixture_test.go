package casework_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/court-case-portal/casework"
	"github.com/linesmerrill/court-case-portal/databases"
	"github.com/linesmerrill/court-case-portal/databases/inmemory"
	"github.com/linesmerrill/court-case-portal/lifecycle"
	"github.com/linesmerrill/court-case-portal/models"
	"github.com/linesmerrill/court-case-portal/notify"
)

type clock struct {
	t time.Time
}

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	db       *inmemory.Database
	m        *casework.Mutator
	notes    *notify.Dispatcher
	clock    *clock
	ctx      context.Context
	litigant casework.Actor
	advocate casework.Actor
	officer  casework.Actor
	judge    casework.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := inmemory.New()
	clk := &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	notes := notify.NewDispatcher(databases.NewNotificationDatabase(db), databases.NewUserDatabase(db), 10*time.Minute)
	notes.Now = clk.Now
	m := casework.New(
		databases.NewCaseDatabase(db),
		databases.NewHearingDatabase(db),
		databases.NewCaseRequestDatabase(db),
		databases.NewCounterDatabase(db),
		notes,
	)
	m.Now = clk.Now
	return &fixture{
		db:       db,
		m:        m,
		notes:    notes,
		clock:    clk,
		ctx:      context.Background(),
		litigant: casework.Actor{ID: primitive.NewObjectID(), Role: models.RoleLitigant},
		advocate: casework.Actor{ID: primitive.NewObjectID(), Role: models.RoleAdvocate},
		officer:  casework.Actor{ID: primitive.NewObjectID(), Role: models.RoleCourtOfficer},
		judge:    casework.Actor{ID: primitive.NewObjectID(), Role: models.RoleJudge},
	}
}

func (f *fixture) fileCase(t *testing.T) *models.Case {
	t.Helper()
	c, err := f.m.FileCase(f.ctx, f.litigant, casework.FileCaseInput{
		Title:    "Boundary dispute",
		CaseType: "civil",
		Court:    "District Court 4",
	})
	require.NoError(t, err)
	return c
}

// approvedCase files a case and has the advocate accept it without a fee
func (f *fixture) approvedCase(t *testing.T) *models.Case {
	t.Helper()
	c := f.fileCase(t)
	r, err := f.m.SubmitRequest(f.ctx, f.litigant, casework.SubmitRequestInput{
		AdvocateID: f.advocate.ID,
		CaseID:     &c.ID,
	})
	require.NoError(t, err)
	_, err = f.m.RespondToRequest(f.ctx, f.advocate, r.ID, casework.RespondInput{Accept: true})
	require.NoError(t, err)
	return f.caseByID(t, c.ID)
}

func (f *fixture) scheduledHearing(t *testing.T, c *models.Case, start time.Time, minutes int) *models.Hearing {
	t.Helper()
	h, err := f.m.ScheduleHearing(f.ctx, f.officer, c.ID, casework.ScheduleInput{
		Date:     start,
		Duration: minutes,
		Type:     models.HearingPhysical,
		Location: "Courtroom 2",
	})
	require.NoError(t, err)
	return h
}

func (f *fixture) caseByID(t *testing.T, id primitive.ObjectID) *models.Case {
	t.Helper()
	c, err := f.m.Case(f.ctx, id)
	require.NoError(t, err)
	return c
}

func (f *fixture) hearingByID(t *testing.T, id primitive.ObjectID) *models.Hearing {
	t.Helper()
	h, err := f.m.Hearing(f.ctx, id)
	require.NoError(t, err)
	return h
}

func (f *fixture) requestByID(t *testing.T, id primitive.ObjectID) *models.CaseRequest {
	t.Helper()
	r, err := f.m.Request(f.ctx, id)
	require.NoError(t, err)
	return r
}

func (f *fixture) notifications(t *testing.T, recipient primitive.ObjectID, kind models.NotificationType) []models.Notification {
	t.Helper()
	list, err := f.notes.DB.Find(f.ctx, bson.M{
		"notification.recipientId": recipient,
		"notification.type":        kind,
	})
	require.NoError(t, err)
	return list
}

func requireRejection(t *testing.T, err error) *lifecycle.Rejection {
	t.Helper()
	require.Error(t, err)
	var rejection *lifecycle.Rejection
	require.ErrorAs(t, err, &rejection)
	return rejection
}
