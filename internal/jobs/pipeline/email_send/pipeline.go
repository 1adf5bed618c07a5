package email_send

import (
	jobrt "github.com/yungbote/studyhub-backend/internal/jobs/runtime"
	"github.com/yungbote/studyhub-backend/internal/services"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	var msg services.EmailMessage
	if err := jc.DecodePayload(&msg); err != nil {
		jc.Fail("decode", err)
		return nil
	}

	jc.Progress("send", 50, "Sending "+msg.Template)
	res, err := p.email.Deliver(jc.Ctx, msg)
	if err != nil {
		jc.Fail("send", err)
		return nil
	}
	out := map[string]any{"template": msg.Template}
	if res != nil {
		out["status_code"] = res.StatusCode
		out["message_id"] = res.MessageID
	}
	jc.Succeed("done", out)
	return nil
}
