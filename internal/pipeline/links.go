package pipeline

import (
	"context"
	"io"

	"github.com/sells-group/bulletin-cli/internal/model"
	"github.com/sells-group/bulletin-cli/internal/report"
)

// Links resolves every entity's bulletin page and writes the links report
// to out. Nothing is downloaded or analyzed.
func (p *Pipeline) Links(ctx context.Context, entities []model.Entity, out io.Writer) (*model.RunResult, error) {
	r := p.startRun(ctx, model.RunModeLinks)
	result := &model.RunResult{}

	res := p.resolve(ctx, r, entities, result)

	if err := report.WriteLinks(out, p.format, entities, res, p.now()); err != nil {
		return nil, r.fail(ctx, err)
	}
	r.complete(ctx, result)
	return result, nil
}
