package events

import (
	"testing"

	"github.com/nexuscore/agentrt/pkg/models"
)

func TestTriggerMatchesType(t *testing.T) {
	trig := Trigger{Type: models.EventWebhook}
	if !trig.Matches(models.EngineEvent{Type: models.EventWebhook, Path: "/hooks/anything"}) {
		t.Fatal("expected type-only trigger to match any webhook")
	}
	if trig.Matches(models.EngineEvent{Type: models.EventAgentMessage}) {
		t.Fatal("expected type mismatch to fail")
	}
}

func TestTriggerFilterFieldsMustMatchWhenPresent(t *testing.T) {
	trig := Trigger{Type: models.EventWebhook, Path: "/hooks/deploy"}
	if trig.Matches(models.EngineEvent{Type: models.EventWebhook, Path: "/hooks/other"}) {
		t.Fatal("expected path filter mismatch to fail")
	}
	if !trig.Matches(models.EngineEvent{Type: models.EventWebhook, Path: "/hooks/deploy"}) {
		t.Fatal("expected matching path to pass")
	}
}

func TestTriggerPathFilterIsSubstringMatch(t *testing.T) {
	trig := Trigger{Type: models.EventWebhook, Path: "/deploy"}
	if !trig.Matches(models.EngineEvent{Type: models.EventWebhook, Path: "/webhook/deploy"}) {
		t.Fatal("expected /deploy to match as a substring of /webhook/deploy")
	}
	if trig.Matches(models.EngineEvent{Type: models.EventWebhook, Path: "/webhook/other"}) {
		t.Fatal("expected no match when the path filter is absent from the event path")
	}
}

func TestTriggerAgentMessageFilters(t *testing.T) {
	trig := Trigger{Type: models.EventAgentMessage, Channel: "ops", From: "boss"}
	if !trig.Matches(models.EngineEvent{Type: models.EventAgentMessage, Channel: "ops", From: "boss", Content: "go"}) {
		t.Fatal("expected channel+from match to pass")
	}
	if trig.Matches(models.EngineEvent{Type: models.EventAgentMessage, Channel: "eng", From: "boss"}) {
		t.Fatal("expected channel mismatch to fail")
	}
}
