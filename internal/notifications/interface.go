package notifications

import (
	"context"

	"github.com/customerpulse/pulse/internal/models"
)

// NotificationInterface delivers the digest of a daily run
type NotificationInterface interface {
	SendReport(ctx context.Context, report *models.RunReport) error
}
