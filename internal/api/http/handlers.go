package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	ws "meetpanel/internal/api/ws"
	"meetpanel/internal/meeting"
	"meetpanel/internal/models"
	"meetpanel/internal/panel"
	"meetpanel/internal/panel/posters"
	"meetpanel/internal/panel/upload"
)

const maxUpload = 32 << 20

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handlers serves the panel API.
type Handlers struct {
	Panels      *Registry
	Hub         *ws.Hub
	Archive     Archive // optional
	TokenSecret []byte
	Log         logrus.FieldLogger

	validate *validator.Validate
}

func NewHandlers(panels *Registry, hub *ws.Hub, archive Archive, tokenSecret []byte, log logrus.FieldLogger) *Handlers {
	return &Handlers{
		Panels:      panels,
		Hub:         hub,
		Archive:     archive,
		TokenSecret: tokenSecret,
		Log:         log,
		validate:    validator.New(),
	}
}

// ---------- helpers ----------

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps controller errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidTab):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrPollsDisabled):
		return http.StatusForbidden
	case errors.Is(err, models.ErrBusy), errors.Is(err, models.ErrNotPreviewing):
		return http.StatusConflict
	case errors.Is(err, models.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, upload.ErrClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Log.WithError(err).WithField("path", r.URL.Path).Error("panel request failed")
	}
	writeError(w, status, err.Error())
}

func (h *Handlers) panel(w http.ResponseWriter, r *http.Request) (*Panel, bool) {
	p, ok := h.Panels.Get(mux.Vars(r)["panelId"])
	if !ok {
		writeError(w, http.StatusNotFound, "panel not found")
	}
	return p, ok
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func bearer(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if len(auth) < len("Bearer ") || !strings.EqualFold(auth[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[len("Bearer "):])
}

// ---------- panels ----------

type createPanelRequest struct {
	MeetingURL string `json:"meeting_url" validate:"omitempty,url"`
	Token      string `json:"token"`
	Open       bool   `json:"open"`
}

type createPanelResponse struct {
	PanelID   string `json:"panel_id"`
	MeetingID string `json:"meeting_id"`
}

// CreatePanel resolves the meeting from a token (body or Authorization
// header) or from the meeting page URL. An unresolved meeting still gets a
// panel; its posters tab reports unauthorized access.
func (h *Handlers) CreatePanel(w http.ResponseWriter, r *http.Request) {
	var req createPanelRequest
	if r.ContentLength != 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}

	token := req.Token
	if token == "" {
		token = bearer(r)
	}

	var resolver panel.MeetingResolver
	if token != "" {
		tr := meeting.NewTokenResolver(token, h.TokenSecret)
		if err := tr.Err(); err != nil {
			h.Log.WithError(err).Warn("meeting token rejected")
		}
		resolver = tr
	} else {
		resolver = meeting.NewPathResolver(req.MeetingURL)
	}

	p := h.Panels.Create(resolver)
	if req.Open {
		p.Ctrl.Open()
	}
	h.Log.WithFields(logrus.Fields{"panel_id": p.ID, "meeting_id": p.MeetingID()}).Info("panel created")
	writeJSON(w, http.StatusCreated, createPanelResponse{PanelID: p.ID, MeetingID: p.MeetingID()})
}

func (h *Handlers) ListPanels(w http.ResponseWriter, r *http.Request) {
	out := []createPanelResponse{}
	for _, p := range h.Panels.List() {
		out = append(out, createPanelResponse{PanelID: p.ID, MeetingID: p.MeetingID()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) GetPanel(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p.Ctrl.Snapshot())
}

func (h *Handlers) DeletePanel(w http.ResponseWriter, r *http.Request) {
	if !h.Panels.Remove(mux.Vars(r)["panelId"]) {
		writeError(w, http.StatusNotFound, "panel not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Visibility handles /toggle, /open and /close.
func (h *Handlers) Visibility(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	switch mux.Vars(r)["action"] {
	case "toggle":
		p.Ctrl.Toggle()
	case "open":
		p.Ctrl.Open()
	case "close":
		p.Ctrl.Close()
	default:
		writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	writeJSON(w, http.StatusOK, p.Ctrl.Snapshot())
}

type tabRequest struct {
	Tab string `json:"tab" validate:"required"`
}

func (h *Handlers) SetTab(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	var req tabRequest
	if !h.decode(w, r, &req) {
		return
	}
	tab, err := panel.ParseTab(req.Tab)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := p.Ctrl.SetActiveTab(tab); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p.Ctrl.Snapshot())
}

// ---------- chat ----------

type receiveRequest struct {
	ID            string    `json:"id"`
	ParticipantID string    `json:"participant_id" validate:"required"`
	DisplayName   string    `json:"display_name"`
	Body          string    `json:"body" validate:"required"`
	Timestamp     time.Time `json:"timestamp"`
	IsPrivate     bool      `json:"is_private"`
	MIMEType      string    `json:"mime_type"`
}

// ReceiveMessage feeds a message coming from the meeting transport.
func (h *Handlers) ReceiveMessage(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	var req receiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	at := req.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}
	msg := models.NewMessage(req.ParticipantID, req.DisplayName, req.Body, at)
	if req.ID != "" {
		msg.ID = req.ID
	}
	msg.IsPrivate = req.IsPrivate
	msg.MIMEType = req.MIMEType

	p.Ctrl.ReceiveMessage(*msg)
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handlers) ApplyReaction(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	var ev models.ReactionEvent
	if !h.decode(w, r, &ev) {
		return
	}
	if err := p.Ctrl.ApplyReaction(ev.MessageID, ev.Symbol, ev.ParticipantID, !ev.Retract); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) PollActivity(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	p.Ctrl.NotePollActivity()
	w.WriteHeader(http.StatusNoContent)
}

type sendRequest struct {
	Text string `json:"text"`
}

func (h *Handlers) SendText(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	var req sendRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := p.Ctrl.SendText(r.Context(), req.Text); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ---------- files ----------

type selectResponse struct {
	Preview    upload.Handle `json:"preview"`
	PreviewURL string        `json:"preview_url"`
	State      upload.State  `json:"state"`
}

// SelectFile takes a multipart "file" part.
func (h *Handlers) SelectFile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read file")
		return
	}

	handle, err := p.Ctrl.SelectFile(upload.File{
		Name:     hdr.Filename,
		MIMEType: hdr.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, selectResponse{
		Preview:    handle,
		PreviewURL: "/api/panels/" + p.ID + "/previews/" + string(handle),
		State:      p.Ctrl.Snapshot().Upload,
	})
}

func (h *Handlers) SendFile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	out, err := p.Ctrl.SendFile(r.Context())
	h.writeOutcome(w, r, out, err)
}

func (h *Handlers) RetryFile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	out, err := p.Ctrl.RetryUpload(r.Context())
	h.writeOutcome(w, r, out, err)
}

func (h *Handlers) writeOutcome(w http.ResponseWriter, r *http.Request, out upload.Outcome, err error) {
	if err != nil && out == (upload.Outcome{}) {
		h.fail(w, r, err)
		return
	}
	if err != nil {
		// The upload finished but the message could not be dispatched.
		h.Log.WithError(err).Warn("upload outcome not dispatched")
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) DiscardFile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	if err := p.Ctrl.DiscardFile(); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPreview renders a preview handle.
func (h *Handlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	preview, ok := p.Previews.Get(upload.Handle(mux.Vars(r)["handle"]))
	if !ok {
		writeError(w, http.StatusNotFound, "preview not found")
		return
	}
	w.Header().Set("Content-Type", preview.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(preview.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(preview.Data)
}

// ---------- posters ----------

type postersResponse struct {
	Started bool          `json:"started"`
	Posters posters.State `json:"posters"`
}

func (h *Handlers) LoadMorePosters(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	started, err := p.Ctrl.LoadMorePosters(r.Context())
	h.writePosters(w, p, started, err)
}

func (h *Handlers) RetryPosters(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	started, err := p.Ctrl.RetryPosters(r.Context())
	h.writePosters(w, p, started, err)
}

// writePosters answers 200 for fetch failures too: they are part of the
// posters state.
func (h *Handlers) writePosters(w http.ResponseWriter, p *Panel, started bool, err error) {
	if err != nil {
		h.Log.WithError(err).WithField("panel_id", p.ID).Debug("poster request finished with error")
	}
	writeJSON(w, http.StatusOK, postersResponse{Started: started, Posters: p.Ctrl.Snapshot().Posters})
}

// ---------- archive ----------

func (h *Handlers) GetArchive(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	if h.Archive == nil {
		writeError(w, http.StatusNotFound, "message archive is disabled")
		return
	}
	meetingID := p.MeetingID()
	if meetingID == "" {
		writeError(w, http.StatusUnauthorized, posters.MessageUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	msgs, err := h.Archive.GetMessages(r.Context(), meetingID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []models.ArchivedMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// ---------- WebSocket ----------

// HandleWebSocket subscribes the peer to a panel's snapshots. The current
// snapshot is sent first.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	p, ok := h.panel(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := ws.NewClient(h.Hub, conn, p.ID)
	snap := p.Ctrl.Snapshot()
	if data, err := json.Marshal(frame{Type: "snapshot", Snapshot: &snap}); err == nil {
		client.Send <- data
	}
	h.Hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
