package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/idcard-assistant/internal/card"
	"github.com/tjfontaine/idcard-assistant/internal/domain"
	"github.com/tjfontaine/idcard-assistant/internal/photo"
	"github.com/tjfontaine/idcard-assistant/internal/wizard"
)

const (
	maxMessageBytes  = 64 << 10
	multipartMemory  = 1 << 20
	photoFormField   = "photo"
	multipartOverage = 1 << 20
)

// ConversationHandler serves the single conversation owned by the process.
type ConversationHandler struct {
	conv   *wizard.Conversation
	logger *slog.Logger
	now    func() time.Time
}

func NewConversationHandler(conv *wizard.Conversation, logger *slog.Logger) *ConversationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConversationHandler{conv: conv, logger: logger, now: time.Now}
}

// Register mounts the conversation routes on r.
func (h *ConversationHandler) Register(r chi.Router) {
	r.Get("/api/conversation", h.HandleGet)
	r.Post("/api/conversation/messages", h.HandleMessage)
	r.Post("/api/conversation/photo", h.HandlePhoto)
	r.Get("/api/conversation/card.png", h.HandleCard)
	r.Post("/api/conversation/reset", h.HandleReset)
}

type profileView struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Age      string `json:"age"`
	HasPhoto bool   `json:"has_photo"`
}

// conversationView is the wire form of a snapshot. The photo itself is only
// exposed through the card.
type conversationView struct {
	Stage      wizard.Stage   `json:"stage"`
	Profile    profileView    `json:"profile"`
	Transcript []wizard.Entry `json:"transcript"`
	Busy       bool           `json:"busy"`
}

func newConversationView(s wizard.Snapshot) conversationView {
	return conversationView{
		Stage: s.Stage,
		Profile: profileView{
			Name:     s.Profile.Name,
			Email:    s.Profile.Email,
			Age:      s.Profile.Age,
			HasPhoto: s.Profile.HasPhoto(),
		},
		Transcript: s.Transcript,
		Busy:       s.Busy,
	}
}

type messageRequest struct {
	Text *string `json:"text"`
}

type messageResponse struct {
	Outcome      wizard.Outcome   `json:"outcome"`
	Conversation conversationView `json:"conversation"`
}

func (h *ConversationHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newConversationView(h.conv.Snapshot()))
}

func (h *ConversationHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("request body must be JSON: "+err.Error()))
		return
	}
	if req.Text == nil {
		writeError(w, r, domain.ErrInvalidRequest("text is required"))
		return
	}

	stage := h.conv.Stage()
	AddLogField(r.Context(), "stage", string(stage))

	outcome, err := h.conv.Submit(r.Context(), *req.Text)
	if err != nil {
		writeError(w, r, conversationError(err))
		return
	}
	if !outcome.Accepted {
		AddLogField(r.Context(), "rejected", outcome.Reason)
	}

	writeJSON(w, http.StatusOK, messageResponse{
		Outcome:      outcome,
		Conversation: newConversationView(h.conv.Snapshot()),
	})
}

func (h *ConversationHandler) HandlePhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, photo.MaxSize+multipartOverage)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || r.ContentLength > photo.MaxSize+multipartOverage {
			writeError(w, r, domain.ErrTooLarge(photo.ErrTooLarge.Error()))
			return
		}
		writeError(w, r, domain.ErrInvalidRequest("expected a multipart form: "+err.Error()))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(photoFormField)
	if err != nil {
		writeError(w, r, domain.ErrInvalidRequest("missing form field "+strconv.Quote(photoFormField)))
		return
	}
	defer file.Close()

	declared := header.Header.Get("Content-Type")
	AddLogField(r.Context(), "media_type", declared)
	if declared != "" && declared != "application/octet-stream" {
		if err := photo.Validate(declared, header.Size); err != nil {
			writeError(w, r, photoError(err))
			return
		}
	}

	ref, err := photo.Read(file, declared)
	if err != nil {
		writeError(w, r, photoError(err))
		return
	}

	if err := h.conv.SubmitPhoto(r.Context(), ref); err != nil {
		writeError(w, r, conversationError(err))
		return
	}

	writeJSON(w, http.StatusOK, newConversationView(h.conv.Snapshot()))
}

func (h *ConversationHandler) HandleCard(w http.ResponseWriter, r *http.Request) {
	snap := h.conv.Snapshot()
	if snap.Stage != wizard.StageComplete {
		writeError(w, r, domain.ErrConflict("the ID card is available once the conversation is complete"))
		return
	}

	var buf bytes.Buffer
	if err := card.Render(&buf, snap.Profile, card.Options{IssuedAt: h.now()}); err != nil {
		h.logger.ErrorContext(r.Context(), "card render failed", slog.String("error", err.Error()))
		writeError(w, r, domain.ErrServer("failed to render ID card"))
		return
	}

	disposition := mime.FormatMediaType("attachment", map[string]string{
		"filename": card.FileName(snap.Profile.Name),
	})
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *ConversationHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.conv.Reset()
	h.logger.InfoContext(r.Context(), "conversation reset", slog.String("request_id", GetRequestID(r.Context())))
	writeJSON(w, http.StatusOK, newConversationView(h.conv.Snapshot()))
}

func conversationError(err error) error {
	switch {
	case errors.Is(err, wizard.ErrBusy):
		return domain.ErrBusy(err.Error())
	case errors.Is(err, wizard.ErrWrongStage):
		return domain.ErrConflict(err.Error())
	case errors.Is(err, wizard.ErrEmptyPhoto):
		return domain.ErrInvalidRequest(err.Error())
	default:
		return err
	}
}

func photoError(err error) error {
	switch {
	case errors.Is(err, photo.ErrTooLarge):
		return domain.ErrTooLarge(err.Error())
	case errors.Is(err, photo.ErrNotImage):
		return domain.ErrUnsupportedMedia(photo.ErrNotImage.Error())
	case errors.Is(err, photo.ErrEmpty):
		return domain.ErrInvalidRequest(photo.ErrEmpty.Error())
	default:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes err as {"error": {...}}. Errors that are not already an
// *domain.APIError are logged and reported as a generic server error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	AddError(r.Context(), err)

	apiErr, ok := domain.AsAPIError(err)
	if !ok {
		apiErr = domain.ErrServer("internal server error")
	}
	writeJSON(w, apiErr.HTTPStatusCode(), map[string]*domain.APIError{"error": apiErr})
}
