package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/storefy/storefy/internal/middleware"
	"github.com/storefy/storefy/internal/model"
	"github.com/storefy/storefy/internal/permission"
	"github.com/storefy/storefy/internal/resolver"
)

// SessionHandler exposes the resolved session state to the SPA. The client
// polls GET /v1/session during boot until the phase reaches ready, then
// renders whatever the snapshot says.
type SessionHandler struct {
	Registry *resolver.Registry
}

func NewSessionHandler(reg *resolver.Registry) *SessionHandler {
	return &SessionHandler{Registry: reg}
}

type sessionResp struct {
	Phase    string           `json:"phase"`
	IsReady  bool             `json:"is_ready"`
	AuthType model.AuthType   `json:"auth_type"`
	Error    string           `json:"error,omitempty"`
	User     *userPart        `json:"user,omitempty"`
	Operator *operatorPart    `json:"operator,omitempty"`
	Store    *storeResp       `json:"store,omitempty"`
	Role     string           `json:"role,omitempty"`
	Pages    []string         `json:"pages,omitempty"`
	Stores   []storeResp      `json:"stores,omitempty"`
	Warning  *sessionRespHint `json:"hint,omitempty"`
}

type operatorPart struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
}

type sessionRespHint struct {
	PinInvalidated bool `json:"pin_invalidated"`
}

func toSessionResp(snap resolver.Snapshot) sessionResp {
	out := sessionResp{
		Phase:    string(snap.Phase),
		IsReady:  snap.Ready(),
		AuthType: snap.AuthType,
	}
	if snap.Err != nil {
		out.Error = snap.Err.Error()
	}
	if snap.Identity != nil {
		out.User = &userPart{ID: snap.Identity.ID, Email: snap.Identity.Email}
	}
	if snap.Pin != nil {
		out.Operator = &operatorPart{MemberID: snap.Pin.MemberID, Name: snap.Pin.Name}
	}
	if snap.Store != nil {
		sr := toStoreResp(*snap.Store)
		out.Store = &sr
		out.Role = string(snap.Role)
	}
	if len(snap.Pages) > 0 {
		// Emit in the canonical page order so the nav renders stably.
		for _, p := range permission.AllPages {
			if snap.Pages[p] {
				out.Pages = append(out.Pages, string(p))
			}
		}
	}
	for _, s := range snap.StoreChoices {
		out.Stores = append(out.Stores, toStoreResp(s))
	}
	if snap.PinInvalidated {
		out.Warning = &sessionRespHint{PinInvalidated: true}
	}
	return out
}

// Get resolves (or returns the settled resolution of) the device's session.
func (h *SessionHandler) Get(c echo.Context) error {
	seq := h.Registry.Sequencer(middleware.ScopeFrom(c))
	snap := seq.Ensure(c.Request().Context(), middleware.IdentityFrom(c))
	return c.JSON(http.StatusOK, toSessionResp(snap))
}

// Retry re-runs a failed resolution from the top. Harmless on a healthy
// session; it just resolves again.
func (h *SessionHandler) Retry(c echo.Context) error {
	seq := h.Registry.Sequencer(middleware.ScopeFrom(c))
	snap := seq.Retry(c.Request().Context(), middleware.IdentityFrom(c))
	return c.JSON(http.StatusOK, toSessionResp(snap))
}
