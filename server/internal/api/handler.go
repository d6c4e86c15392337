package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/obsidianstack/statusroll/pkg/report"
	"github.com/obsidianstack/statusroll/pkg/status"
	"github.com/obsidianstack/statusroll/pkg/tree"
	"github.com/obsidianstack/statusroll/server/internal/alerts"
	"github.com/obsidianstack/statusroll/server/internal/store"
)

const maxBodyBytes = 64 << 10

// AlertSource lists current and recently resolved alerts.
type AlertSource interface {
	Active() []*alerts.Alert
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
// It reads node state from the store and returns JSON responses.
type Handler struct {
	store  *store.Store
	alerts AlertSource
	mux    *http.ServeMux
}

// New creates a Handler wired to the given store and registers all routes.
// al may be nil, in which case the alert list is always empty.
func New(st *store.Store, al AlertSource) http.Handler {
	h := &Handler{store: st, alerts: al, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/nodes", h.listNodes)
	h.mux.HandleFunc("/api/v1/nodes/", h.node) // subtree, extracts {name}
	h.mux.HandleFunc("/api/v1/tree", h.tree)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: root status and per-status counts.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := h.store.Snapshot()
	resp := HealthResponse{
		RootStatus: snap.RootStatus,
		Roots:      snap.Roots,
		NodeCount:  len(snap.Nodes),
		AlertCount: len(h.activeAlerts()),
	}
	for _, n := range snap.Nodes {
		if n.Kind == tree.Imported {
			resp.LeafCount++
		}
		switch n.Status {
		case status.Green:
			resp.GreenCount++
		case status.Yellow:
			resp.YellowCount++
		case status.Red:
			resp.RedCount++
		default:
			resp.UnknownCount++
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// listNodes returns GET /api/v1/nodes, optionally filtered by ?kind= and
// ?status=.
func (h *Handler) listNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	kind := q.Get("kind")
	var want *status.Status
	if s := q.Get("status"); s != "" {
		parsed, err := status.ParseStrict(s)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		}
		want = &parsed
	}
	if kind != "" && kind != tree.Imported.String() && kind != tree.Derived.String() {
		jsonErr(w, http.StatusBadRequest, "kind must be imported or derived")
		return
	}

	snap := h.store.Snapshot()
	out := make([]store.NodeState, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		if kind != "" && n.Kind.String() != kind {
			continue
		}
		if want != nil && n.Status != *want {
			continue
		}
		out = append(out, n)
	}
	jsonResp(w, http.StatusOK, out)
}

// node serves GET and PUT /api/v1/nodes/{name}.
func (h *Handler) node(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/nodes/")
	if name == "" {
		h.listNodes(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getNode(w, name)
	case http.MethodPut:
		h.putNode(w, r, name)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) getNode(w http.ResponseWriter, name string) {
	ns, ok := h.store.Node(name)
	if !ok {
		jsonErr(w, http.StatusNotFound, "node not found")
		return
	}
	affected, _ := h.store.Affected(name)
	if affected == nil {
		affected = []string{}
	}
	jsonResp(w, http.StatusOK, NodeResponse{NodeState: ns, Affected: affected})
}

func (h *Handler) putNode(w http.ResponseWriter, r *http.Request, name string) {
	var body SetStatusRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	s, err := status.ParseStrict(body.Status)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	source := body.Source
	if source == "" {
		source = "api"
	}

	// No ObservedAt: an operator override is never superseded by agent
	// timestamps taken on another clock.
	changes, err := h.store.Report(&report.Report{
		Node:   name,
		Status: s,
		Source: source,
		Detail: body.Detail,
	})
	switch {
	case errors.Is(err, tree.ErrUnknownNode):
		jsonErr(w, http.StatusNotFound, "node not found")
		return
	case errors.Is(err, store.ErrNotLeaf):
		jsonErr(w, http.StatusConflict, "derived node status is computed and cannot be set")
		return
	case err != nil:
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	if changes == nil {
		changes = []store.Change{}
	}
	jsonResp(w, http.StatusOK, SetStatusResponse{
		Node:       name,
		Status:     s,
		Changes:    changes,
		RootStatus: h.store.RootStatus(),
	})
}

// tree returns GET /api/v1/tree: the rendered text view.
func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	h.store.Render(w) //nolint:errcheck
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.activeAlerts())
}

// snapshot returns GET /api/v1/snapshot: every node plus root status.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.store.Snapshot())
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) activeAlerts() []*alerts.Alert {
	if h.alerts == nil {
		return []*alerts.Alert{}
	}
	out := h.alerts.Active()
	if out == nil {
		out = []*alerts.Alert{}
	}
	return out
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
