package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"alertmesh/internal/broker"
	"alertmesh/internal/logger"
)

// HeaderAgentSecret carries the shared agent credential.
const HeaderAgentSecret = "x-agent-secret"

// StatusEnforce is the gateway-authoritative status stamped on every
// accepted alert. Callers cannot override it.
const StatusEnforce = "ENFORCE"

// Publisher is the broker capability the gateway depends on.
type Publisher interface {
	Publish(ctx context.Context, topic, event string, payload map[string]interface{}) error
}

// IncidentHandler accepts one alert submission per request: exact
// secret match, merge of gateway-authoritative fields, single publish.
// No dedup, no retry. Failures after the auth check all surface as a
// generic 500; details go to the log only.
func IncidentHandler(secret string, pub Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
			return
		}

		if r.Header.Get(HeaderAgentSecret) != secret {
			requestsTotal.WithLabelValues("unauthorized").Inc()
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"error": "UNAUTHORIZED"})
			return
		}

		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			logger.Errorf("Critical inbound error: %v", err)
			requestsTotal.WithLabelValues("error").Inc()
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "INTERNAL_SERVER_ERROR"})
			return
		}
		if payload == nil {
			payload = make(map[string]interface{})
		}

		// Gateway-authoritative fields win over anything the agent sent.
		payload["status"] = StatusEnforce
		payload["mitigated"] = true
		payload["serverTimestamp"] = time.Now().UnixMilli()

		if err := pub.Publish(r.Context(), broker.TopicCriticalAlert, broker.EventThreatDetected, payload); err != nil {
			logger.Errorf("Critical inbound error: %v", err)
			requestsTotal.WithLabelValues("error").Inc()
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"error": "INTERNAL_SERVER_ERROR"})
			return
		}

		logger.Infof("Alert published: file=%v", payload["fileName"])
		requestsTotal.WithLabelValues("ok").Inc()
		publishesTotal.Inc()
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

func writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warnf("Failed to write response: %v", err)
	}
}
