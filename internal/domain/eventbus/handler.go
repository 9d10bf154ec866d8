package eventbus

import (
	"medid-server-go/internal/platform/logging"
)

// EventHandler reacts to bus events.
type EventHandler interface {
	Handle(eventType string, data interface{})
}

// LoggingHandler writes a line per analysis event.
type LoggingHandler struct {
	logger *logging.Logger
}

func NewLoggingHandler(logger *logging.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

func (h *LoggingHandler) Handle(eventType string, data interface{}) {
	switch d := data.(type) {
	case AnalysisEventData:
		if d.Success {
			h.logger.InfoTag("EVENT", "%s request=%s source=%s confidence=%.2f drug_info=%v took=%s",
				eventType, d.RequestID, d.Source, d.Confidence, d.DrugInfoAvailable, d.ProcessingTime)
			return
		}
		h.logger.WarnTag("EVENT", "%s request=%s source=%s code=%s took=%s",
			eventType, d.RequestID, d.Source, d.ErrorCode, d.ProcessingTime)
	case DrugInfoSkippedData:
		h.logger.InfoTag("EVENT", "%s request=%s reason=%s confidence=%.2f",
			eventType, d.RequestID, d.Reason, d.Confidence)
	default:
		h.logger.DebugTag("EVENT", "unhandled event %s", eventType)
	}
}

// SetupEventHandlers subscribes handler to every analysis topic.
func SetupEventHandlers(bus Subscriber, handler EventHandler) error {
	for _, topic := range []string{EventAnalysisCompleted, EventAnalysisFailed, EventDrugInfoSkipped} {
		topic := topic
		if err := bus.Subscribe(topic, func(data interface{}) {
			handler.Handle(topic, data)
		}); err != nil {
			return err
		}
	}
	return nil
}
