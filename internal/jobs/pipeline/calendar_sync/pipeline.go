package calendar_sync

import (
	"errors"

	jobrt "github.com/yungbote/studyhub-backend/internal/jobs/runtime"
	"github.com/yungbote/studyhub-backend/internal/platform/gcal"
	"github.com/yungbote/studyhub-backend/internal/services"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	userID := jc.Job.OwnerUserID
	if id, ok := jc.PayloadUUID("user_id"); ok {
		userID = id
	}

	jc.Progress("sync", 10, "Syncing Google Calendar")
	res, err := p.calendar.Sync(jc.Ctx, userID)
	switch {
	case errors.Is(err, services.ErrCalendarNotLinked), errors.Is(err, gcal.ErrNotConfigured):
		// Unlinked between enqueue and run; nothing to retry.
		jc.Succeed("skipped", map[string]any{"reason": err.Error()})
		return nil
	case err != nil:
		jc.Fail("sync", err)
		return nil
	}
	if res.Failed > 0 {
		p.log.Warn("Calendar sync finished with failures", "user_id", userID, "failed", res.Failed)
	}
	jc.Succeed("done", res)
	return nil
}
