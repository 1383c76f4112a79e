package web

import (
	"database/sql"
	"encoding/json"
	"html/template"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/mvickers/dossier/internal/bundle"
	"github.com/mvickers/dossier/internal/config"
	"github.com/mvickers/dossier/internal/errors"
	"github.com/mvickers/dossier/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleList handles GET /bundles — list bundles for a ticket.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo_full_name")
	ticketPK := r.URL.Query().Get("ticket_pk")
	ticketID := r.URL.Query().Get("ticket_id")
	role := r.URL.Query().Get("role")

	data := ListPageData{
		PageData: PageData{
			Title:   "Bundles",
			Version: h.renderer.version,
			Nav:     "bundles",
		},
		RepoFullName: repo,
		TicketPK:     ticketPK,
		TicketID:     ticketID,
		Role:         role,
		HasTicket:    ticketPK != "" || ticketID != "",
	}

	// Without a ticket the page is just the lookup form.
	if !data.HasTicket {
		h.renderer.renderPage(w, "list", data)
		return
	}

	result, err := ops.List(r.Context(), h.db, ops.ListInput{
		TicketPK:     ticketPK,
		TicketID:     ticketID,
		RepoFullName: repo,
		Role:         role,
		Limit:        parseIntParam(r, "limit", 20),
		Offset:       parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data.Items = result.Bundles
	data.Pagination = result.Pagination

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}
	h.renderer.renderPage(w, "list", data)
}

// HandleDetail handles GET /bundles/{id} — view a single bundle.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("bundle ID is required"))
		return
	}

	result, err := ops.Fetch(r.Context(), h.db, ops.FetchInput{BundleID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	receipt, err := ops.GetReceipt(r.Context(), h.db, ops.GetReceiptInput{BundleID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{
			"bundle":  result,
			"receipt": receipt.Receipt,
		})
		return
	}

	payloadJSON, _ := json.MarshalIndent(result.Payload, "", "  ")

	var budget *ops.BudgetReport
	if rb, ok := bundle.GetRoleBudget(result.Role); ok {
		total := receipt.Receipt.TotalCharacters
		budget = &ops.BudgetReport{
			CharacterCount: total,
			HardLimit:      rb.HardLimit,
			Role:           rb.Role,
			DisplayName:    rb.DisplayName,
			Exceeds:        rb.ExceedsBudget(total),
			Overage:        rb.CalculateOverage(total),
		}
	}

	h.renderer.renderPage(w, "detail", DetailPageData{
		PageData: PageData{
			Title:   result.TicketID + " / " + result.Role + " v" + strconv.Itoa(result.Version),
			Version: h.renderer.version,
			Nav:     "bundles",
		},
		Bundle:       result,
		Receipt:      receipt.Receipt,
		Sections:     sectionRows(receipt.Receipt.SectionMetrics),
		TicketHTML:   ticketHTML(result.Payload),
		PayloadJSON:  string(payloadJSON),
		BudgetReport: budget,
	})
}

// HandleReceipt handles GET /bundles/{id}/receipt — the raw audit receipt.
func (h *Handlers) HandleReceipt(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("bundle ID is required"))
		return
	}

	result, err := ops.GetReceipt(r.Context(), h.db, ops.GetReceiptInput{BundleID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, result)
		return
	}

	receiptJSON, _ := json.MarshalIndent(result.Receipt, "", "  ")

	h.renderer.renderPage(w, "receipt", ReceiptPageData{
		PageData: PageData{
			Title:   "Receipt " + result.Receipt.ID,
			Version: h.renderer.version,
			Nav:     "bundles",
		},
		Receipt:     result.Receipt,
		ReceiptJSON: string(receiptJSON),
		Sections:    sectionRows(result.Receipt.SectionMetrics),
	})
}

// sectionRows flattens section metrics into a sorted table.
func sectionRows(metrics map[string]int) []SectionRow {
	rows := make([]SectionRow, 0, len(metrics))
	for name, chars := range metrics {
		rows = append(rows, SectionRow{Name: name, Chars: chars})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

// ticketHTML renders the ticket section's markdown body, if present.
func ticketHTML(p bundle.Payload) template.HTML {
	section, ok := p[bundle.SectionTicket].(map[string]any)
	if !ok {
		return ""
	}
	body, ok := section["body_md"].(string)
	if !ok || body == "" {
		return ""
	}
	return renderMarkdown(body)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
