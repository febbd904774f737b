package databases

// go generate: mockery --name SchedulerLockDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const schedulerLockName = "schedulerlocks"

// SchedulerLockDatabase is a lease so that only one instance runs a job at a time
type SchedulerLockDatabase interface {
	TryAcquireLock(ctx context.Context, job, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, job, owner string) error
}

type schedulerLockDatabase struct {
	db  DatabaseHelper
	now func() time.Time
}

// NewSchedulerLockDatabase initializes a new instance of scheduler lock database with the provided db connection
func NewSchedulerLockDatabase(db DatabaseHelper) SchedulerLockDatabase {
	return &schedulerLockDatabase{
		db:  db,
		now: time.Now,
	}
}

// TryAcquireLock takes the lease for job when it is free, expired, or
// already held by owner. A duplicate key on upsert means another owner
// holds a live lease.
func (s *schedulerLockDatabase) TryAcquireLock(ctx context.Context, job, owner string, ttl time.Duration) (bool, error) {
	now := s.now()
	filter := bson.M{
		"_id": job,
		"$or": []bson.M{
			{"expiresAt": bson.M{"$lt": primitive.NewDateTimeFromTime(now)}},
			{"owner": owner},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"owner":      owner,
			"acquiredAt": primitive.NewDateTimeFromTime(now),
			"expiresAt":  primitive.NewDateTimeFromTime(now.Add(ttl)),
		},
	}
	_, err := s.db.Collection(schedulerLockName).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseLock expires the lease if owner still holds it
func (s *schedulerLockDatabase) ReleaseLock(ctx context.Context, job, owner string) error {
	_, err := s.db.Collection(schedulerLockName).UpdateOne(ctx,
		bson.M{"_id": job, "owner": owner},
		bson.M{"$set": bson.M{"expiresAt": primitive.NewDateTimeFromTime(s.now().Add(-time.Millisecond))}},
	)
	return err
}
