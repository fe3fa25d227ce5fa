package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/hostel-dispatch/internal/service"
)

// StartNotificationWorker subscribes notification handlers to the dispatcher.
// Delivery runs inline with Publish, so there is no goroutine to stop.
func StartNotificationWorker(notifications *service.NotificationService, logger *zap.Logger) {
	if notifications == nil {
		logger.Info("notifications disabled; no handlers registered")
		return
	}
	notifications.RegisterHandlers()
	logger.Info("notification handlers registered")
}
