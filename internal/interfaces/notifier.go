package interfaces

import (
	"context"

	"github.com/ternarybob/marketbrief/internal/models"
)

// Notifier delivers a rendered report. One call is one delivery attempt.
type Notifier interface {
	Send(ctx context.Context, report *models.Report) error
}
