package campaign

import (
	"errors"
	"net/http"

	"github.com/janneta/canvass/candidate"
	"github.com/janneta/canvass/docstore"
	"github.com/janneta/canvass/pendingwrites"
	"github.com/janneta/canvass/printer"
	"github.com/janneta/canvass/share"
	"github.com/janneta/canvass/voter"
	"github.com/labstack/echo"
)

// Handler serves the Service over HTTP.
type Handler struct {
	service *Service
}

// NewHandler returns a handler for s.
func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// used by the print and share endpoints
type jobRequest struct {
	Voter  *voter.Voter `json:"voter"`
	Family bool         `json:"family"`
	Number string       `json:"number"`
}

type contactRequest struct {
	Kind   voter.ContactKind `json:"kind"`
	Number string            `json:"number"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Register mounts the routes on g.
func (h *Handler) Register(g *echo.Group) {
	g.GET("/voters/:id", h.GetVoter)
	g.POST("/voters/:id/contacts", h.SaveContact)
	g.GET("/voters/:id/family", h.GetFamily)
	g.POST("/voters/:id/family", h.AddMember)
	g.DELETE("/voters/:id/family/:member", h.RemoveMember)
	g.POST("/voters/:id/print", h.Print)
	g.POST("/voters/:id/share/whatsapp", h.ShareWhatsApp)
	g.POST("/voters/:id/share/sms", h.ShareSMS)
	g.GET("/pending", h.Pending)
	g.POST("/sync", h.Sync)
	g.GET("/printer", h.Printer)
	g.GET("/candidate", h.GetCandidate)
	g.PUT("/candidate", h.UpdateCandidate)
	g.DELETE("/candidate", h.ResetCandidate)
}

// statusOf maps an error to the HTTP status it is reported with.
func statusOf(err error) int {
	switch {
	case errors.Is(err, voter.ErrMissingID),
		errors.Is(err, voter.ErrInvalidContactKind),
		errors.Is(err, share.ErrInvalidPhone),
		errors.Is(err, ErrNoFamily):
		return http.StatusBadRequest
	case errors.Is(err, docstore.ErrNotFound),
		errors.Is(err, voter.ErrNotMember):
		return http.StatusNotFound
	case errors.Is(err, voter.ErrAlreadyMember),
		errors.Is(err, voter.ErrNoWhatsApp),
		errors.Is(err, ErrPhoneRequired):
		return http.StatusConflict
	case errors.Is(err, printer.ErrBusy),
		errors.Is(err, ErrPrintFailed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c echo.Context, err error) error {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		h.service.Logger.Errorw("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	}
	return c.JSON(code, errorResponse{Error: err.Error()})
}

func (h *Handler) badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
}

// bind decodes the request body into v. An empty body leaves v as is.
func bind(c echo.Context, v interface{}) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	return c.Bind(v)
}

// requestVoter returns the voter a request is about: the record sent
// in the body, addressed by the :id path parameter.
func requestVoter(c echo.Context, in *voter.Voter) voter.Voter {
	var v voter.Voter
	if in != nil {
		v = *in
	}
	if v.Key() == "" {
		v.ID = c.Param("id")
	}
	return v
}

// GetVoter returns the voter record.
func (h *Handler) GetVoter(c echo.Context) error {
	v, err := h.service.Voters.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// SaveContact stores a WhatsApp or phone number on the voter.
func (h *Handler) SaveContact(c echo.Context) error {
	in := contactRequest{}
	if err := bind(c, &in); err != nil {
		return h.badRequest(c, err)
	}
	if !share.ValidPhone(in.Number) {
		return h.fail(c, share.ErrInvalidPhone)
	}
	number := share.CleanPhone(in.Number)
	if err := h.service.Voters.SaveContact(c.Request().Context(), c.Param("id"), in.Kind, number); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{string(in.Kind): number})
}

// GetFamily lists the family members of the voter.
func (h *Handler) GetFamily(c echo.Context) error {
	members, err := h.service.Voters.Family(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, members)
}

// AddMember adds a member to the voter's family group.
func (h *Handler) AddMember(c echo.Context) error {
	in := voter.Member{}
	if err := bind(c, &in); err != nil {
		return h.badRequest(c, err)
	}
	m, saved, err := h.service.AddMember(c.Request().Context(), c.Param("id"), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"member": m,
		"saved":  saved,
	})
}

// RemoveMember removes a member from the voter's family group.
func (h *Handler) RemoveMember(c echo.Context) error {
	saved, err := h.service.Voters.RemoveMember(c.Request().Context(), c.Param("id"), c.Param("member"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"saved": saved})
}

// Print prints the voter (or family) receipt.
func (h *Handler) Print(c echo.Context) error {
	in := jobRequest{}
	if err := bind(c, &in); err != nil {
		return h.badRequest(c, err)
	}
	if err := h.service.Print(c.Request().Context(), requestVoter(c, in.Voter), in.Family); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, h.service.Printer.State())
}

// ShareWhatsApp returns the WhatsApp link for the receipt. When the
// request carries a number it is saved and used.
func (h *Handler) ShareWhatsApp(c echo.Context) error {
	in := jobRequest{}
	if err := bind(c, &in); err != nil {
		return h.badRequest(c, err)
	}
	ctx := c.Request().Context()
	v := requestVoter(c, in.Voter)
	var link Link
	var err error
	if in.Number != "" {
		link, err = h.service.ShareWithNumber(ctx, v, in.Family, in.Number)
	} else {
		link, err = h.service.Share(ctx, v, in.Family)
	}
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, link)
}

// ShareSMS returns the SMS link for the receipt.
func (h *Handler) ShareSMS(c echo.Context) error {
	in := jobRequest{}
	if err := bind(c, &in); err != nil {
		return h.badRequest(c, err)
	}
	link, err := h.service.SMS(c.Request().Context(), requestVoter(c, in.Voter), in.Number)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, link)
}

// Pending lists the writes waiting for a sync.
func (h *Handler) Pending(c echo.Context) error {
	entries, err := h.service.Queue.List(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	if entries == nil {
		entries = []pendingwrites.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

// Sync replays the pending writes. When some entries failed again it
// answers 503 with the failed entries and the error.
func (h *Handler) Sync(c echo.Context) error {
	res, err := h.service.Sync(c.Request().Context())
	out := map[string]interface{}{
		"synced": res.Synced,
		"failed": res.Failed,
	}
	if res.Failed == nil {
		out["failed"] = []pendingwrites.Entry{}
	}
	if err != nil {
		out["error"] = err.Error()
		return c.JSON(http.StatusServiceUnavailable, out)
	}
	return c.JSON(http.StatusOK, out)
}

// Printer returns the printer connection state.
func (h *Handler) Printer(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Printer.State())
}

// GetCandidate returns the candidate branding.
func (h *Handler) GetCandidate(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Candidate.Get())
}

// UpdateCandidate merges the non-empty fields of the body into the
// candidate branding.
func (h *Handler) UpdateCandidate(c echo.Context) error {
	in := candidate.Info{}
	if err := bind(c, &in); err != nil {
		return h.badRequest(c, err)
	}
	info, err := h.service.Candidate.Update(c.Request().Context(), in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// ResetCandidate restores the built-in candidate branding.
func (h *Handler) ResetCandidate(c echo.Context) error {
	info, err := h.service.Candidate.Reset(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, info)
}
