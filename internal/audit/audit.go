package audit

import (
	"context"

	"github.com/JeevanLal1/ProChat/pkg/log"
)

// Audit actions for the realtime relay.
const (
	ActionConnect         = "relay.connect"
	ActionConnectAnon     = "relay.connect_anonymous"
	ActionIdentityFailed  = "relay.identity_failed"
	ActionJoinRoom        = "relay.join_room"
	ActionLeaveRoom       = "relay.leave_room"
	ActionSendMessage     = "relay.send_message"
	ActionSendFailed      = "relay.send_failed"
	ActionChannelAnnounce = "relay.channel_announce"
	ActionDisconnect      = "relay.disconnect"
)

const (
	FieldAction   = "action"
	FieldTargetID = "target_id"
	FieldDetail   = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogTarget emits an audit entry naming the room, channel or peer acted on.
func LogTarget(ctx context.Context, action, userID, targetID, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Msg(msg)
}

// LogFailure emits an audit entry at warn level carrying the error.
func LogFailure(ctx context.Context, action, userID, targetID string, err error, msg string) {
	l := log.Ctx(ctx)
	l.Warn().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldTargetID, targetID).
		Str(FieldDetail, err.Error()).
		Msg(msg)
}
