package api

import (
	"crypto/subtle"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mfreeman451/boardwatch/pkg/commands"
	"github.com/mfreeman451/boardwatch/pkg/models"
	"github.com/mfreeman451/boardwatch/pkg/tracker"
)

const pingSource = "boardwatch-api"

func (s *APIServer) getBoardStatus(w http.ResponseWriter, r *http.Request) {
	s.getStatus(w, r, s.svc.Boards, "deviceId")
}

func (s *APIServer) getGatewayStatus(w http.ResponseWriter, r *http.Request) {
	s.getStatus(w, r, s.svc.Gateways, "gatewayId")
}

func (s *APIServer) getStatus(w http.ResponseWriter, r *http.Request, t StatusTracker, idKey string) {
	id := strings.TrimSpace(r.URL.Query().Get(idKey))
	if id == "" {
		s.writeError(w, r, models.Validationf("%s query parameter is required", idKey))

		return
	}

	rec, err := t.Status(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, statusBody(idKey, rec))
}

func (s *APIServer) reportBoardStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReport
	if err := decodeJSON(r, &req, "Request body must be JSON"); err != nil {
		s.writeError(w, r, err)

		return
	}

	s.report(w, r, s.svc.Boards, "deviceId", req.DeviceID, req.Status, nil)
}

func (s *APIServer) reportGatewayStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReport
	if err := decodeJSON(r, &req, "Request body must be JSON"); err != nil {
		s.writeError(w, r, err)

		return
	}

	s.report(w, r, s.svc.Gateways, "gatewayId", req.GatewayID, req.Status, req.LatencyMs)
}

func (s *APIServer) report(w http.ResponseWriter, r *http.Request, t StatusTracker, idKey, id, status string, latencyMs *float64) {
	if strings.TrimSpace(id) == "" {
		s.writeError(w, r, models.Validationf("%s is required and must be a string", idKey))

		return
	}

	rec, err := t.Report(r.Context(), id, status, latencyMs)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	body := statusBody(idKey, rec)
	body["success"] = true

	s.writeJSON(w, http.StatusOK, body)
}

func (s *APIServer) gatewayHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := decodeJSON(r, &req, "Request body must be JSON"); err != nil {
		s.writeError(w, r, err)

		return
	}

	if s.cfg.HeartbeatSecret != "" &&
		subtle.ConstantTimeCompare([]byte(req.Secret), []byte(s.cfg.HeartbeatSecret)) != 1 {
		s.logger.Warn().Str("ip", r.RemoteAddr).Msg("heartbeat rejected, bad secret")
		s.writeError(w, r, models.ErrUnauthorized)

		return
	}

	gatewayID := strings.TrimSpace(req.GatewayID)
	if gatewayID == "" {
		gatewayID = models.DefaultGatewayID
	}

	rec, err := s.svc.Gateways.Heartbeat(r.Context(), gatewayID, req.LatencyMs)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	if req.LatencyMs != nil && s.svc.Latency != nil {
		if _, err := s.svc.Latency.Record(r.Context(), models.DefaultLatencySource, *req.LatencyMs); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record heartbeat latency")
		}
	}

	source := req.Source
	if source == "" {
		source = "raspberry-pi"
	}

	body := statusBody("gatewayId", rec)
	body["ok"] = true
	body["success"] = true
	body["source"] = source

	s.writeJSON(w, http.StatusOK, body)
}

func (s *APIServer) listCommands(w http.ResponseWriter, r *http.Request) {
	// deviceId is accepted for compatibility with existing gateways but does
	// not narrow the queue.
	pending, err := s.svc.Commands.ListPending(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	out := commandList{Commands: make([]commandView, 0, len(pending)), Count: len(pending)}

	for i := range pending {
		out.Commands = append(out.Commands, commandView{
			CommandID: pending[i].ID,
			Value:     pending[i].Value,
			Mode:      pending[i].Mode,
			Status:    pending[i].Status,
			Timestamp: pending[i].CreatedAt,
		})
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *APIServer) enqueueCommand(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := decodeJSON(r, &req, models.Message(commands.ErrInvalidValue)); err != nil {
		s.writeError(w, r, err)

		return
	}

	// Only integrality is checked here; the queue owns the range.
	if req.Value == nil || *req.Value != math.Trunc(*req.Value) || math.Abs(*req.Value) > math.MaxInt32 {
		s.writeError(w, r, commands.ErrInvalidValue)

		return
	}

	cmd, err := s.svc.Commands.Enqueue(r.Context(), req.DeviceID, int(*req.Value), req.Mode)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"commandId": cmd.ID,
		"deviceId":  cmd.DeviceID,
		"value":     cmd.Value,
		"mode":      cmd.Mode,
		"status":    cmd.Status,
	})
}

func (s *APIServer) advanceCommand(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := decodeJSON(r, &req, "commandId and status are required"); err != nil {
		s.writeError(w, r, err)

		return
	}

	cmd, err := s.svc.Commands.Advance(r.Context(), req.CommandID, req.Status)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"commandId": cmd.ID,
		"status":    cmd.Status,
	})
}

func (s *APIServer) getSwitchState(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.Switches.Get(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, state)
}

func (s *APIServer) setSwitchState(w http.ResponseWriter, r *http.Request) {
	var req switchRequest
	if err := decodeJSON(r, &req, "Mode must be 'serial', 'uart', or 'parallel'"); err != nil {
		s.writeError(w, r, err)

		return
	}

	state, err := s.svc.Switches.Set(r.Context(), req.Mode, req.Value)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"deviceId":    state.DeviceID,
		"mode":        state.Mode,
		"value":       state.Value,
		"lastUpdated": state.LastUpdated,
	})
}

func (s *APIServer) getLatency(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Latency.Snapshot(r.Context(), r.URL.Query().Get("source"))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *APIServer) recordLatency(w http.ResponseWriter, r *http.Request) {
	const latencyMsg = "Invalid latency value. Expected { latency: number }"

	var req latencyRequest
	if err := decodeJSON(r, &req, latencyMsg); err != nil {
		s.writeError(w, r, err)

		return
	}

	if req.Latency == nil {
		s.writeError(w, r, models.Validationf(latencyMsg))

		return
	}

	total, err := s.svc.Latency.Record(r.Context(), r.URL.Query().Get("source"), *req.Latency)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"recorded":     *req.Latency,
		"totalSamples": total,
	})
}

func (s *APIServer) ping(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"source":    pingSource,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// statusBody renders a record under the caller's id key, e.g. deviceId.
func statusBody(idKey string, rec *tracker.Record) map[string]any {
	body := map[string]any{
		idKey:         rec.ID,
		"status":      rec.Status,
		"lastUpdated": nil,
		"ageMs":       nil,
	}

	if rec.LastUpdated != nil {
		body["lastUpdated"] = rec.LastUpdated.UTC().Format(time.RFC3339Nano)
	}

	if rec.AgeMs != nil {
		body["ageMs"] = *rec.AgeMs
	}

	if rec.LatencyMs != nil {
		body["latencyMs"] = *rec.LatencyMs
	}

	return body
}
