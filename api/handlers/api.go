package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linesmerrill/court-case-portal/api"
	"github.com/linesmerrill/court-case-portal/casework"
	"github.com/linesmerrill/court-case-portal/config"
	"github.com/linesmerrill/court-case-portal/databases"
	"github.com/linesmerrill/court-case-portal/lifecycle"
	"github.com/linesmerrill/court-case-portal/models"
	"github.com/linesmerrill/court-case-portal/notify"
)

// RequestTimeout bounds every /api/v1 request
const RequestTimeout = 30 * time.Second

// App stores the router and db connection, so it can be reused
type App struct {
	Router  *mux.Router
	Config  config.Config
	Mutator *casework.Mutator
	Notes   *notify.Dispatcher

	client   databases.ClientHelper
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := mux.NewRouter()
	r.Use(api.RequestLogMiddleware)

	c := Case{M: a.Mutator}
	h := Hearing{M: a.Mutator}
	cr := CaseRequest{M: a.Mutator}
	n := Notification{D: a.Notes}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(RequestTimeout), api.ActorMiddleware)

	apiCreate.HandleFunc("/cases", c.FileCaseHandler).Methods("POST")
	apiCreate.HandleFunc("/cases/{case_id}", c.CaseByIDHandler).Methods("GET")
	apiCreate.HandleFunc("/cases/{case_id}/review", c.ReviewCaseHandler).Methods("PUT")
	apiCreate.HandleFunc("/cases/{case_id}/status", c.UpdateCaseStatusHandler).Methods("PUT")
	apiCreate.HandleFunc("/cases/{case_id}/hearings", h.ScheduleHearingHandler).Methods("POST")

	apiCreate.HandleFunc("/hearings/{hearing_id}", h.HearingByIDHandler).Methods("GET")
	apiCreate.HandleFunc("/hearings/{hearing_id}", h.EditHearingHandler).Methods("PATCH")
	apiCreate.HandleFunc("/hearings/{hearing_id}/status", h.UpdateHearingStatusHandler).Methods("PUT")
	apiCreate.HandleFunc("/hearings/{hearing_id}/attendance", h.ConfirmAttendanceHandler).Methods("PUT")

	apiCreate.HandleFunc("/case-requests", cr.SubmitRequestHandler).Methods("POST")
	apiCreate.HandleFunc("/case-requests/{request_id}", cr.RequestByIDHandler).Methods("GET")
	apiCreate.HandleFunc("/case-requests/{request_id}/respond", cr.RespondHandler).Methods("PUT")
	apiCreate.HandleFunc("/case-requests/{request_id}/simulate-payment", cr.SimulatePaymentHandler).Methods("POST")

	apiCreate.HandleFunc("/users/{user_id}/notifications", n.NotificationsByUserHandler).Methods("GET")
	apiCreate.HandleFunc("/users/{user_id}/notifications/{notification_id}/read", n.MarkReadHandler).Methods("PUT")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize(ctx context.Context) error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		zap.S().Errorw("failed to create new client", "error", err)
		return err
	}
	if err := client.Connect(ctx); err != nil {
		zap.S().Errorw("failed to connect to database", "error", err)
		return err
	}
	if err := client.Ping(ctx); err != nil {
		zap.S().Errorw("failed to ping database", "error", err)
		return err
	}
	a.client = client
	zap.S().Info("court-case-portal has connected to the database")

	a.Wire(databases.NewDatabase(&a.Config, client))
	a.Router = a.New()
	return nil
}

// Wire builds the dispatcher and mutator on top of db
func (a *App) Wire(db databases.DatabaseHelper) {
	a.dbHelper = db

	a.Notes = notify.NewDispatcher(
		databases.NewNotificationDatabase(db),
		databases.NewUserDatabase(db),
		a.Config.ReminderDedupWindow,
	)
	a.Notes.BaseURL = a.Config.BaseURL
	if mailer := notify.NewSendgridMailer(a.Config.SendgridAPIKey, a.Config.MailFromName, a.Config.MailFromAddress); mailer != nil {
		a.Notes.Mailer = mailer
	}

	a.Mutator = casework.New(
		databases.NewCaseDatabase(db),
		databases.NewHearingDatabase(db),
		databases.NewCaseRequestDatabase(db),
		databases.NewCounterDatabase(db),
		a.Notes,
	)
}

// DB returns the database the app was wired with
func (a *App) DB() databases.DatabaseHelper {
	return a.dbHelper
}

// Close disconnects from the database
func (a *App) Close(ctx context.Context) error {
	if a.client == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}

// writeError maps mutator and dispatcher errors to a status code.
// Transition rejections answer 400 with their reason as the message.
func writeError(w http.ResponseWriter, message string, err error) {
	var rejection *lifecycle.Rejection
	switch {
	case errors.As(err, &rejection):
		config.ErrorStatus(rejection.Reason, http.StatusBadRequest, w, err)
	case errors.Is(err, casework.ErrInvalid):
		config.ErrorStatus(message, http.StatusBadRequest, w, err)
	case errors.Is(err, casework.ErrNotFound), errors.Is(err, notify.ErrNotFound):
		config.ErrorStatus(message, http.StatusNotFound, w, err)
	case errors.Is(err, casework.ErrForbidden), errors.Is(err, notify.ErrForbidden):
		config.ErrorStatus(message, http.StatusForbidden, w, err)
	case errors.Is(err, casework.ErrConflict):
		config.ErrorStatus(message, http.StatusConflict, w, err)
	default:
		config.ErrorStatus(message, http.StatusInternalServerError, w, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// pathID parses the hex object id in the named route variable
func pathID(w http.ResponseWriter, r *http.Request, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[name])
	if err != nil {
		config.ErrorStatus(fmt.Sprintf("invalid %s", name), http.StatusBadRequest, w, err)
		return primitive.NilObjectID, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return false
	}
	return true
}

func actor(w http.ResponseWriter, r *http.Request) (casework.Actor, bool) {
	a, ok := api.ActorFrom(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
	}
	return a, ok
}
