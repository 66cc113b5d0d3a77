package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/marquezdaniela/reciclaje-municipal/api/responses"
	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/types"
)

// Notices is the per-user read-once message queue.
type Notices interface {
	Push(ctx context.Context, userID uuid.UUID, msgs ...types.Message) error
	Drain(ctx context.Context, userID uuid.UUID) ([]types.Message, error)
}

// queueNotice stores msg for the actor's next page. A failing queue only
// costs the notice, never the action that produced it.
func queueNotice(ctx context.Context, logg *logger.Logger, notices Notices, actor policy.Actor, msg types.Message) {
	if notices == nil || !actor.IsAuthenticated() {
		return
	}
	if err := notices.Push(ctx, actor.UserID(), msg); err != nil && logg != nil {
		logg.Error(ctx, "flash.push_failed", err)
	}
}

// writeBlocked answers a policy Block decision: the notice is queued and
// the caller is sent to the decision's landing route.
func writeBlocked(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, notices Notices, actor policy.Actor, decision *policy.Decision) {
	queueNotice(ctx, logg, notices, actor, decision.Message)
	if logg != nil {
		logg.Info(logg.WithField(ctx, "redirect", decision.Redirect), "policy.blocked")
	}
	msg := decision.Message
	responses.WriteRedirect(w, decision.Redirect, &msg)
}
