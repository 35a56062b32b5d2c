package handlers

import (
	"net/http"

	"alawein/internal/api/middleware"
	"alawein/internal/engine/scanner"
	"alawein/internal/pkg/errors"
)

type ScannerHandler struct {
	scanner *scanner.Service
}

func NewScannerHandler(svc *scanner.Service) *ScannerHandler {
	return &ScannerHandler{scanner: svc}
}

// Handle runs scan, research or both. Every call persists new result rows.
func (h *ScannerHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action  string `json:"action"`
		Target  string `json:"target"`
		Content string `json:"content"`
		Topic   string `json:"topic"`
		Context string `json:"context"`
	}
	if err := decodeFunctionBody(r, &req); err != nil {
		functionFailed(w, "scanner", "invalid", err)
		return
	}

	var uid string
	if claims := middleware.ClaimsFrom(r.Context()); claims != nil {
		uid = claims.UserID()
	}
	ctx := r.Context()

	switch req.Action {
	case "scan":
		res, err := h.scanner.Scan(ctx, uid, scanner.ScanInput{Target: req.Target, Content: req.Content})
		if err != nil {
			functionFailed(w, "scanner", req.Action, err)
			return
		}
		functionOK(w, "scanner", req.Action, map[string]interface{}{"success": true, "result": res})

	case "research":
		res, err := h.scanner.Research(ctx, uid, scanner.ResearchInput{Topic: req.Topic, Context: req.Context})
		if err != nil {
			functionFailed(w, "scanner", req.Action, err)
			return
		}
		functionOK(w, "scanner", req.Action, map[string]interface{}{"success": true, "result": res})

	case "analyze":
		scan, err := h.scanner.Scan(ctx, uid, scanner.ScanInput{Target: req.Target, Content: req.Content})
		if err != nil {
			functionFailed(w, "scanner", req.Action, err)
			return
		}
		topic := req.Topic
		if topic == "" {
			topic = scan.Target
		}
		background := req.Context
		if background == "" {
			background = req.Content
		}
		research, err := h.scanner.Research(ctx, uid, scanner.ResearchInput{Topic: topic, Context: background})
		if err != nil {
			functionFailed(w, "scanner", req.Action, err)
			return
		}
		functionOK(w, "scanner", req.Action, map[string]interface{}{
			"success": true,
			"result": map[string]interface{}{
				"findings":   scan.Findings,
				"summary":    research.Summary,
				"insights":   research.Insights,
				"confidence": research.Confidence,
			},
		})

	default:
		functionFailed(w, "scanner", "unknown", errors.NewValidation("", "Unknown action: "+req.Action))
	}
}
