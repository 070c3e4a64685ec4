package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sugarcypher/sweetguard/internal/ml"
	"github.com/sugarcypher/sweetguard/internal/models"
)

const (
	maxMessageBytes = 10 << 20
	historyLimit    = 20
)

type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type resolveRequest struct {
	Barcode string `json:"barcode"`
}

type scanRequest struct {
	Image string `json:"image"` // base64
}

// resolveReply is sent for both typed and scanned barcodes
type resolveReply struct {
	ScanID string `json:"scan_id,omitempty"`
	foodResponse
	Reading *ml.BarcodeReading `json:"reading,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	clientID := uuid.New().String()
	s.clients.Store(clientID, conn)
	defer s.clients.Delete(clientID)

	log := s.log.With("client_id", clientID)
	log.Debug("websocket client connected")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("error reading message", "error", err)
			}
			break
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendError(conn, "Invalid message format")
			continue
		}
		s.handleWebSocketMessage(r.Context(), conn, msg)
	}
	log.Debug("websocket client disconnected")
}

func (s *Server) handleWebSocketMessage(ctx context.Context, conn *websocket.Conn, msg wsMessage) {
	switch msg.Type {
	case "resolve":
		var req resolveRequest
		if err := decodeData(msg.Data, &req); err != nil || req.Barcode == "" {
			s.sendError(conn, "Invalid barcode")
			return
		}
		s.sendMessage(conn, "resolve_result", s.resolveAndRecord(ctx, req.Barcode, nil))
	case "scan":
		s.handleScan(ctx, conn, msg.Data)
	case "cache_stats":
		stats, err := s.resolver.CacheStats(ctx)
		if err != nil {
			s.log.Error("cache stats failed", "error", err)
			s.sendError(conn, "Cache unavailable")
			return
		}
		s.sendMessage(conn, "cache_stats", stats)
	case "clear_cache":
		if err := s.resolver.ClearCache(ctx); err != nil {
			s.log.Error("clear cache failed", "error", err)
			s.sendError(conn, "Cache unavailable")
			return
		}
		s.sendMessage(conn, "cache_cleared", nil)
	case "get_history":
		s.handleGetHistory(ctx, conn)
	default:
		s.sendError(conn, "Unknown message type")
	}
}

func (s *Server) handleScan(ctx context.Context, conn *websocket.Conn, data json.RawMessage) {
	var req scanRequest
	if err := decodeData(data, &req); err != nil || req.Image == "" {
		s.sendError(conn, "Invalid image data")
		return
	}
	imageData, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		s.sendError(conn, "Invalid image format")
		return
	}
	if s.model == nil {
		s.sendError(conn, "Image scanning is not available")
		return
	}

	reading, err := s.model.ReadBarcode(ctx, imageData)
	if err != nil {
		s.log.Warn("error reading barcode from image", "error", err)
		switch {
		case errors.Is(err, ml.ErrNoBarcode):
			s.sendError(conn, "No barcode found in image")
		case errors.Is(err, ml.ErrUnsupported):
			s.sendError(conn, "Image scanning is not available")
		default:
			s.sendError(conn, "Failed to process image")
		}
		return
	}
	s.sendMessage(conn, "resolve_result", s.resolveAndRecord(ctx, reading.Barcode, reading))
}

// resolveAndRecord resolves barcode and tracks the lookup in scan history
func (s *Server) resolveAndRecord(ctx context.Context, barcode string, reading *ml.BarcodeReading) resolveReply {
	scan := &models.ScanRecord{
		ID:      uuid.New().String(),
		Barcode: barcode,
		Status:  models.ScanPending,
	}
	recorded := false
	if s.db != nil {
		if err := s.db.SaveScan(ctx, scan); err != nil {
			s.log.Error("error saving scan", "error", err)
		} else {
			recorded = true
		}
	}

	res, err := s.resolver.Resolve(ctx, barcode)
	if err != nil {
		res = models.Failure(err.Error())
	}

	if recorded {
		status, errMsg := models.ScanResolved, ""
		if err != nil {
			status, errMsg = models.ScanFailed, err.Error()
		}
		if uErr := s.db.UpdateScanStatus(ctx, scan.ID, status, res.Source, errMsg); uErr != nil {
			s.log.Error("error updating scan", "scan_id", scan.ID, "error", uErr)
		}
	}

	reply := resolveReply{foodResponse: newFoodResponse(barcode, res), Reading: reading}
	if recorded {
		reply.ScanID = scan.ID
	}
	return reply
}

func (s *Server) handleGetHistory(ctx context.Context, conn *websocket.Conn) {
	if s.db == nil {
		s.sendError(conn, "History is not available")
		return
	}
	scans, err := s.db.GetRecentScans(ctx, historyLimit)
	if err != nil {
		s.log.Error("error retrieving history", "error", err)
		s.sendError(conn, "Failed to retrieve history")
		return
	}
	if scans == nil {
		scans = []*models.ScanRecord{}
	}
	s.sendMessage(conn, "history", map[string]any{"scans": scans})
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("missing data")
	}
	return json.Unmarshal(data, v)
}

func (s *Server) sendMessage(conn *websocket.Conn, messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Warn("error sending message", "type", messageType, "error", err)
	}
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	msg := map[string]any{
		"type":    "error",
		"message": message,
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.log.Warn("error sending error message", "error", err)
	}
}
