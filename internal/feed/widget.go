package feed

import (
	"context"

	"go.uber.org/zap"

	"github.com/ai-learning-tracker/tracker/internal/models"
)

// Widget is the compact feed shown beside other pages: one page of
// WidgetSize posts, never paginated. Errors only hide the widget.
type Widget struct {
	pager *Pager
}

func NewWidget(api API, identity Identity, logger *zap.Logger) *Widget {
	return &Widget{pager: newPager(api, identity, logger, WidgetSize)}
}

// Load fetches the latest posts. A failed load yields no posts and no error
// so the widget simply stays hidden.
func (w *Widget) Load(ctx context.Context) ([]models.GuruPost, error) {
	if err := w.pager.Load(ctx); err != nil {
		if err == ErrSessionLoading {
			return nil, err
		}
		return nil, nil
	}
	return w.pager.Posts(), nil
}

func (w *Widget) Posts() []models.GuruPost {
	return w.pager.Posts()
}

func (w *Widget) Close() {
	w.pager.Close()
}
