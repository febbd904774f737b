package databases

// go generate: mockery --name HearingDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/court-case-portal/models"
)

const hearingName = "hearings"

// HearingDatabase contains the methods to use with the hearing database
type HearingDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Hearing, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Hearing, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error
}

type hearingDatabase struct {
	db DatabaseHelper
}

// NewHearingDatabase initializes a new instance of hearing database with the provided db connection
func NewHearingDatabase(db DatabaseHelper) HearingDatabase {
	return &hearingDatabase{
		db: db,
	}
}

func (h *hearingDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Hearing, error) {
	hearing := &models.Hearing{}
	err := h.db.Collection(hearingName).FindOne(ctx, filter, opts...).Decode(&hearing)
	if err != nil {
		return nil, err
	}
	return hearing, nil
}

func (h *hearingDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Hearing, error) {
	var hearings []models.Hearing
	curr, err := h.db.Collection(hearingName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	err = curr.All(ctx, &hearings)
	if err != nil {
		return nil, err
	}
	return hearings, nil
}

func (h *hearingDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return h.db.Collection(hearingName).CountDocuments(ctx, filter, opts...)
}

func (h *hearingDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return h.db.Collection(hearingName).InsertOne(ctx, document, opts...)
}

// UpdateOne returns ErrNoMatch when the filter matched nothing
func (h *hearingDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error {
	return matched(h.db.Collection(hearingName).UpdateOne(ctx, filter, update, opts...))
}

func (h *hearingDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	return h.db.Collection(hearingName).DeleteOne(ctx, filter, opts...)
}
