package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"tipvault/sdk/tipvault"
)

// readRoutes serves the anonymous query surface backed by the node RPC.
type readRoutes struct {
	client *tipvault.Client
}

func (rr *readRoutes) mount(r chi.Router) {
	r.Get("/creators", rr.listCreators)
	r.Get("/creators/{address}", rr.getCreator)
	r.Get("/creators/{address}/badges", rr.listBadges)
	r.Get("/creators/{address}/split", rr.getSplit)
	r.Get("/creators/{address}/tips", rr.getTipRecord)
	r.Get("/balances/{address}", rr.getBalance)
	r.Get("/stats", rr.getStats)
	r.Get("/params", rr.getParams)
}

func (rr *readRoutes) listCreators(w http.ResponseWriter, r *http.Request) {
	creators, err := rr.client.ListCreators(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if creators == nil {
		creators = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"creators": creators})
}

func (rr *readRoutes) getCreator(w http.ResponseWriter, r *http.Request) {
	profile, err := rr.client.GetProfile(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (rr *readRoutes) listBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := rr.client.ListBadges(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	if badges == nil {
		badges = []tipvault.Badge{}
	}
	writeJSON(w, http.StatusOK, map[string][]tipvault.Badge{"badges": badges})
}

func (rr *readRoutes) getSplit(w http.ResponseWriter, r *http.Request) {
	split, err := rr.client.GetSplit(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*tipvault.Split{"split": split})
}

func (rr *readRoutes) getTipRecord(w http.ResponseWriter, r *http.Request) {
	record, err := rr.client.GetTipRecord(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rr *readRoutes) getBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := rr.client.GetBalance(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (rr *readRoutes) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := rr.client.GetStats(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rr *readRoutes) getParams(w http.ResponseWriter, r *http.Request) {
	params, err := rr.client.GetParams(r.Context())
	if err != nil {
		writeUpstreamError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, params)
}
