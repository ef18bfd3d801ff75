package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/raterudder/c2c/pkg/log"
	"github.com/raterudder/c2c/pkg/storage"
	"github.com/raterudder/c2c/pkg/types"
	"golang.org/x/text/language"
)

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.manager.Services().ListServices(s.showHidden))
}

// requestLocale returns the most preferred language of the request, or
// English when none is given.
func requestLocale(r *http.Request) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return language.English
	}
	return tags[0]
}

func (s *Server) handleValidateIntegration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := s.getUserID(r)

	var req struct {
		IntegrationID int64 `json:"integrationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.IntegrationID <= 0 {
		writeJSONError(w, "integrationId is required", http.StatusBadRequest)
		return
	}

	result, err := s.manager.ValidateIntegration(ctx, userID, req.IntegrationID, requestLocale(r))
	if err != nil {
		writeOperationError(ctx, w, err)
		return
	}
	writeJSON(w, result)
}

// handleListIntegrations lists the user's integrations. Secure settings are
// never returned.
func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := s.getUserID(r)

	configs, err := s.storage.ListIntegrationConfigurations(ctx, userID)
	if err != nil {
		writeOperationError(ctx, w, err)
		return
	}
	services := s.manager.Services()
	for i, c := range configs {
		svc, err := services.Service(c.ServiceIdentifier)
		if err != nil {
			// which settings are secure is unknown
			configs[i].ServiceProperties = nil
			continue
		}
		props := make(map[string]any, len(c.ServiceProperties))
		for k, v := range c.ServiceProperties {
			props[k] = v
		}
		for _, setting := range svc.Info().Settings {
			if setting.Secure {
				delete(props, setting.Key)
			}
		}
		configs[i].ServiceProperties = props
	}
	if configs == nil {
		configs = []types.IntegrationConfiguration{}
	}
	writeJSON(w, configs)
}

// handleListEvents returns the user's audit events between start and end,
// defaulting to the last 24 hours.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := s.getUserID(r)

	start, err := parseOptionalTime(r.URL.Query().Get("start"))
	if err != nil {
		writeJSONError(w, "invalid start", http.StatusBadRequest)
		return
	}
	end, err := parseOptionalTime(r.URL.Query().Get("end"))
	if err != nil {
		writeJSONError(w, "invalid end", http.StatusBadRequest)
		return
	}
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.Add(-24 * time.Hour)
	}
	if !start.Before(end) {
		writeJSONError(w, "start must be before end", http.StatusBadRequest)
		return
	}

	events, err := s.storage.GetEvents(ctx, userID, start, end)
	if err != nil {
		writeOperationError(ctx, w, err)
		return
	}
	if events == nil {
		events = []types.AuditEvent{}
	}
	writeJSON(w, events)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleDataValues(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := s.getUserID(r)

	integrationID, ok := pathID(r, "id")
	if !ok {
		writeJSONError(w, "invalid integration id", http.StatusBadRequest)
		return
	}

	filters := make(map[string]any)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			filters[k] = v[0]
		}
	}

	values, err := s.manager.DataValues(ctx, userID, integrationID, filters)
	if err != nil {
		writeOperationError(ctx, w, err)
		return
	}
	if values == nil {
		values = []types.DataValue{}
	}
	writeJSON(w, values)
}

func parseOptionalTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func (s *Server) handleDatum(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := s.getUserID(r)

	streamID, ok := pathID(r, "id")
	if !ok {
		writeJSONError(w, "invalid stream id", http.StatusBadRequest)
		return
	}

	var filter types.DatumQueryFilter
	var err error
	if filter.StartDate, err = parseOptionalTime(r.URL.Query().Get("start")); err != nil {
		writeJSONError(w, "invalid start", http.StatusBadRequest)
		return
	}
	if filter.EndDate, err = parseOptionalTime(r.URL.Query().Get("end")); err != nil {
		writeJSONError(w, "invalid end", http.StatusBadRequest)
		return
	}
	if !filter.StartDate.IsZero() && !filter.EndDate.IsZero() && filter.EndDate.Before(filter.StartDate) {
		writeJSONError(w, "end must not be before start", http.StatusBadRequest)
		return
	}

	stream, err := s.storage.GetDatumStreamConfiguration(ctx, userID, streamID)
	if err != nil {
		writeOperationError(ctx, w, err)
		return
	}
	if !stream.Enabled {
		writeJSONError(w, "datum stream is disabled", http.StatusConflict)
		return
	}

	result, err := s.manager.Datum(ctx, stream, filter)
	if err != nil {
		writeOperationError(ctx, w, err)
		return
	}
	if result.Results == nil {
		result.Results = []types.Datum{}
	}
	writeJSON(w, result)
}

func (s *Server) handleExecuteInstruction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := s.getUserID(r)
	controlID := r.PathValue("controlId")

	var instruction types.Instruction
	if err := json.NewDecoder(r.Body).Decode(&instruction); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if instruction.Topic == "" {
		writeJSONError(w, "topic is required", http.StatusBadRequest)
		return
	}

	// only the owner of a control may instruct it
	control, err := s.storage.GetControlConfiguration(ctx, instruction.NodeID, controlID)
	if err != nil {
		writeOperationError(ctx, w, err)
		return
	}
	if control.UserID != userID {
		log.Ctx(ctx).WarnContext(ctx, "instruction for another user's control", slog.Int64("nodeID", instruction.NodeID), slog.String("controlID", controlID))
		writeOperationError(ctx, w, storage.ErrControlNotFound)
		return
	}

	if instruction.State == "" {
		instruction.State = types.InstructionStateQueued
	}

	status, err := s.manager.ExecuteInstruction(ctx, controlID, instruction)
	if err != nil {
		writeOperationError(ctx, w, err)
		return
	}
	writeJSON(w, status)
}
