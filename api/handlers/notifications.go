package handlers

import (
	"net/http"
	"strconv"

	"github.com/linesmerrill/court-case-portal/api"
	"github.com/linesmerrill/court-case-portal/casework"
	"github.com/linesmerrill/court-case-portal/config"
	"github.com/linesmerrill/court-case-portal/notify"
)

// Page size limits for notification listings
const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// Notification exported for testing purposes
type Notification struct {
	D *notify.Dispatcher
}

// NotificationsByUserHandler lists the caller's notifications, newest first.
// ?unread=true limits the list to unread ones.
func (n Notification) NotificationsByUserHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	if userID != caller.ID {
		writeError(w, "cannot read another user's notifications", casework.ErrForbidden)
		return
	}

	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	limit := queryInt(r, "limit", defaultNotificationLimit)
	if limit <= 0 || limit > maxNotificationLimit {
		config.ErrorStatus("limit must be between 1 and 100", http.StatusBadRequest, w, nil)
		return
	}
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	list, err := n.D.ForRecipient(ctx, userID, unreadOnly, limit, page)
	if err != nil {
		writeError(w, "failed to get notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkReadHandler marks one of the caller's notifications read
func (n Notification) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := actor(w, r)
	if !ok {
		return
	}
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	notificationID, ok := pathID(w, r, "notification_id")
	if !ok {
		return
	}
	if userID != caller.ID {
		writeError(w, "cannot update another user's notifications", casework.ErrForbidden)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	read, err := n.D.MarkRead(ctx, userID, notificationID)
	if err != nil {
		writeError(w, "failed to mark notification read", err)
		return
	}
	writeJSON(w, http.StatusOK, read)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}
