package notify

import (
	"fmt"

	"github.com/dialtone-ai/greenroom/internal/models"
)

// eventVerb returns a human-friendly headline verb for an event kind.
func eventVerb(kind string) string {
	switch kind {
	case models.EventVersionCreated:
		return "new script version"
	case models.EventSuggestionCreated:
		return "suggestion filed"
	case models.EventSuggestionAccepted:
		return "suggestion accepted"
	case models.EventSuggestionRejected:
		return "suggestion rejected"
	case models.EventExperimentStarted:
		return "experiment started"
	case models.EventExperimentDecided:
		return "experiment decided"
	case models.EventRepairApplied:
		return "script repaired"
	default:
		return kind
	}
}

// eventSeverity returns the display severity for an event kind.
func eventSeverity(kind string) string {
	switch kind {
	case models.EventSuggestionAccepted, models.EventExperimentDecided:
		return "success"
	case models.EventRepairApplied:
		return "warning"
	case models.EventSuggestionRejected:
		return "info"
	default:
		return "info"
	}
}

// FormatEvent renders one engine event as a chat notice.
func FormatEvent(ev models.EventLog) Notice {
	severity := eventSeverity(ev.Kind)
	n := Notice{
		Title:    fmt.Sprintf("Agent %s: %s", ev.AgentID, eventVerb(ev.Kind)),
		Body:     ev.Detail,
		Severity: severity,
		Color:    SeverityColor(severity),
	}
	if ev.Subject != "" {
		n.Fields = append(n.Fields, Field{Name: "Subject", Value: ev.Subject, Short: true})
	}
	n.Fields = append(n.Fields, Field{Name: "Event", Value: ev.Kind, Short: true})
	return n
}
