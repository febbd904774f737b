package databases

// go generate: mockery --name CaseRequestDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/court-case-portal/models"
)

const caseRequestName = "caserequests"

// CaseRequestDatabase contains the methods to use with the case request database
type CaseRequestDatabase interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.CaseRequest, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CaseRequest, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error)
}

type caseRequestDatabase struct {
	db DatabaseHelper
}

// NewCaseRequestDatabase initializes a new instance of case request database with the provided db connection
func NewCaseRequestDatabase(db DatabaseHelper) CaseRequestDatabase {
	return &caseRequestDatabase{
		db: db,
	}
}

func (c *caseRequestDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.CaseRequest, error) {
	request := &models.CaseRequest{}
	err := c.db.Collection(caseRequestName).FindOne(ctx, filter, opts...).Decode(&request)
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (c *caseRequestDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CaseRequest, error) {
	var requests []models.CaseRequest
	curr, err := c.db.Collection(caseRequestName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer curr.Close(ctx)
	err = curr.All(ctx, &requests)
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (c *caseRequestDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return c.db.Collection(caseRequestName).CountDocuments(ctx, filter, opts...)
}

func (c *caseRequestDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return c.db.Collection(caseRequestName).InsertOne(ctx, document, opts...)
}

// UpdateOne returns ErrNoMatch when the filter matched nothing
func (c *caseRequestDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) error {
	return matched(c.db.Collection(caseRequestName).UpdateOne(ctx, filter, update, opts...))
}

// UpdateMany returns the number of modified requests
func (c *caseRequestDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	res, err := c.db.Collection(caseRequestName).UpdateMany(ctx, filter, update, opts...)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
