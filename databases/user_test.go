package databases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/linesmerrill/court-case-portal/config"
	"github.com/linesmerrill/court-case-portal/databases"
	"github.com/linesmerrill/court-case-portal/databases/mocks"
	"github.com/linesmerrill/court-case-portal/models"
)

func TestNewUserDatabase(t *testing.T) {
	t.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	t.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	userDB := databases.NewUserDatabase(db)

	assert.NotEmpty(t, userDB)
}

func TestNewClientRejectsBadURI(t *testing.T) {
	_, err := databases.NewClient(&config.Config{URL: "postgres://nope"})
	assert.Error(t, err)
}

func TestUserDatabase_FindOne(t *testing.T) {
	id := primitive.NewObjectID()

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.User)
		(*arg).ID = id
		(*arg).Details.Email = "advocate@example.com"
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "users").Return(collectionHelper)

	// Create new database with mocked Database interface
	userDba := databases.NewUserDatabase(dbHelper)

	// Call method with defined filter, that in our mocked function returns
	// mocked-error
	user, err := userDba.FindOne(context.Background(), bson.M{"error": true})

	assert.Empty(t, user)
	assert.EqualError(t, err, "mocked-error")

	// Now call the same function with different filter for correct result
	user, err = userDba.FindOne(context.Background(), bson.M{"error": false})

	assert.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "advocate@example.com", user.Details.Email)
}

func TestUserDatabase_InsertOne(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	result := &mocks.InsertOneResultHelper{}

	details := models.UserDetails{Email: "judge@example.com", Role: models.RoleJudge}
	collectionHelper.
		On("InsertOne", context.Background(), mock.MatchedBy(func(doc interface{}) bool {
			raw, err := bson.Marshal(doc)
			if err != nil {
				return false
			}
			email, ok := bson.Raw(raw).Lookup("user", "email").StringValueOK()
			return ok && email == "judge@example.com"
		})).
		Return(result, nil)
	dbHelper.On("Collection", "users").Return(collectionHelper)

	res, err := databases.NewUserDatabase(dbHelper).InsertOne(context.Background(), details)

	assert.NoError(t, err)
	assert.Equal(t, result, res)
	collectionHelper.AssertExpectations(t)
}
