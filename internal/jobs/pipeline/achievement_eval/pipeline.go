package achievement_eval

import (
	"gorm.io/gorm"

	jobrt "github.com/yungbote/studyhub-backend/internal/jobs/runtime"
	"github.com/yungbote/studyhub-backend/internal/platform/dbctx"
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

	var res *services.AwardResult
	err := jc.DB.WithContext(jc.Ctx).Transaction(func(tx *gorm.DB) (err error) {
		res, err = p.gamification.Evaluate(dbctx.Context{Ctx: jc.Ctx, Tx: tx}, userID)
		return err
	})
	if err != nil {
		jc.Fail("evaluate", err)
		return nil
	}
	p.gamification.Publish(jc.Ctx, res)

	unlocked := []string{}
	if res != nil {
		for _, a := range res.Unlocked {
			unlocked = append(unlocked, a.Code)
		}
	}
	jc.Succeed("done", map[string]any{"unlocked": unlocked})
	return nil
}
