package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// User roles on the portal
const (
	RoleLitigant     = "litigant"
	RoleAdvocate     = "advocate"
	RoleCourtOfficer = "court-officer"
	RoleJudge        = "judge"
)

// User holds the structure for the users collection in mongo
type User struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details UserDetails        `json:"user" bson:"user"`
	Version int32              `json:"__v" bson:"__v"`
}

// UserDetails holds the structure for the inner user structure as defined in the user collection in mongo
type UserDetails struct {
	Email     string             `json:"email" bson:"email"`
	Name      string             `json:"name" bson:"name"`
	Username  string             `json:"username" bson:"username"`
	Role      string             `json:"role" bson:"role"`
	CreatedAt primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// DisplayName returns the best name to greet the user with
func (u UserDetails) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
