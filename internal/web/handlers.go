package web

import (
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/leadvault/internal/errors"
	"github.com/hpungsan/leadvault/internal/lead"
	"github.com/hpungsan/leadvault/internal/store"
)

// Notices shown after a successful action.
const (
	NoticeCaptured  = "Lead captured"
	NoticeTabSaved  = "Current tab saved"
	NoticeStarred   = "Lead highlighted"
	NoticeUnstarred = "Lead unstarred"
	NoticeRemoved   = "Lead removed"
	NoticeCleared   = "Lead vault cleared"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	store    *store.Store
	renderer *Renderer
}

// HandleList handles GET /leads, the filtered lead list.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data, err := h.listData(q.Get("stage"), q.Get("q"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	data.Notice = q.Get("notice")

	// Live search swaps only the results section
	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "list", "results", data)
		return
	}
	h.renderer.renderPage(w, r, "list", data)
}

// HandleCreate handles POST /leads.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	form := LeadForm{
		Name:  r.FormValue("name"),
		URL:   r.FormValue("url"),
		Stage: r.FormValue("stage"),
		Tags:  r.FormValue("tags"),
		Note:  r.FormValue("note"),
	}
	created, err := h.store.Create(r.Context(), store.CreateInput{
		Name:  form.Name,
		URL:   form.URL,
		Stage: form.Stage,
		Tags:  form.Tags,
		Note:  form.Note,
	})
	if err != nil {
		// Validation failures re-render the form with the entered values
		if errors.Is(err, errors.ErrInvalidRequest) && !wantsJSON(r) && !isHTMX(r) {
			data, listErr := h.listData(r.FormValue("filter"), r.FormValue("q"))
			if listErr != nil {
				h.renderer.renderError(w, r, listErr)
				return
			}
			data.Form = form
			data.FormError = errorMessage(err)
			h.renderer.renderPageStatus(w, r, http.StatusBadRequest, "list", data)
			return
		}
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusCreated, created)
		return
	}
	h.redirectList(w, r, NoticeCaptured)
}

// HandleCapture handles POST /leads/capture, saving a link named after its page title.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	captured, err := h.store.Capture(r.Context(), store.CaptureInput{
		URL:   r.FormValue("url"),
		Title: r.FormValue("title"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusCreated, captured)
		return
	}
	h.redirectList(w, r, NoticeTabSaved)
}

// HandleStar handles POST /leads/{id}/star. A stale id is ignored.
func (h *Handlers) HandleStar(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	updated, err := h.store.ToggleStar(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) && !wantsJSON(r) {
			h.redirectList(w, r, "")
			return
		}
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, updated)
		return
	}
	notice := NoticeUnstarred
	if updated.Starred {
		notice = NoticeStarred
	}
	h.redirectList(w, r, notice)
}

// HandleDelete handles POST /leads/{id}/delete. Requires confirm=true.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewConfirmationRequired("remove"))
		return
	}

	result, err := h.store.Remove(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	notice := ""
	if result.Removed {
		notice = NoticeRemoved
	}
	h.redirectList(w, r, notice)
}

// HandleClear handles POST /leads/clear. Requires confirm=true.
func (h *Handlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewConfirmationRequired("clear"))
		return
	}

	result, err := h.store.ClearAll(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}
	notice := ""
	if result.Cleared > 0 {
		notice = NoticeCleared
	}
	h.redirectList(w, r, notice)
}

// HandleAPIList handles GET /api/leads.
func (h *Handlers) HandleAPIList(w http.ResponseWriter, r *http.Request) {
	view, err := h.store.View(store.ViewInput{
		Filter: r.URL.Query().Get("stage"),
		Search: r.URL.Query().Get("q"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, view)
}

// HandleAPIGet handles GET /api/leads/{id}.
func (h *Handlers) HandleAPIGet(w http.ResponseWriter, r *http.Request) {
	l, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, l)
}

// HandleAPIMetrics handles GET /api/metrics.
func (h *Handlers) HandleAPIMetrics(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, h.store.Metrics())
}

// listData builds the list page for a filter and search term.
func (h *Handlers) listData(filter, search string) (ListPageData, error) {
	view, err := h.store.View(store.ViewInput{Filter: filter, Search: search})
	if err != nil {
		return ListPageData{}, err
	}

	chips := make([]FilterChip, 0, len(lead.Filters()))
	for _, f := range lead.Filters() {
		chips = append(chips, FilterChip{Value: f, Label: f.Label(), Active: f == view.Filter})
	}

	return ListPageData{
		PageData: PageData{
			Title:   "Leads",
			Version: h.renderer.version,
		},
		View:           view,
		Filters:        chips,
		Stages:         lead.Stages(),
		Form:           LeadForm{Stage: string(lead.DefaultStage)},
		CaptureEnabled: !h.store.Config().CaptureDisabled,
	}, nil
}

// redirectList sends the browser back to the list, keeping the active filter
// and search (posted as "filter" and "q") and carrying an optional notice.
func (h *Handlers) redirectList(w http.ResponseWriter, r *http.Request, notice string) {
	target := listURL(r.FormValue("filter"), r.FormValue("q"), notice)

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func listURL(filter, search, notice string) string {
	v := url.Values{}
	if f := strings.TrimSpace(filter); f != "" && f != string(lead.FilterAll) {
		v.Set("stage", f)
	}
	if s := strings.TrimSpace(search); s != "" {
		v.Set("q", s)
	}
	if notice != "" {
		v.Set("notice", notice)
	}
	if len(v) == 0 {
		return "/leads"
	}
	return "/leads?" + v.Encode()
}

// errorMessage returns the user-facing message of err.
func errorMessage(err error) string {
	var lErr *errors.LeadError
	if stderrors.As(err, &lErr) {
		return lErr.Message
	}
	return err.Error()
}
