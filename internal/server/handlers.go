package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	digest "github.com/porticus-lab/tdnet-digest"
	"github.com/porticus-lab/tdnet-digest/internal/tdnet"
	"github.com/porticus-lab/tdnet-digest/relay"
	"github.com/porticus-lab/tdnet-digest/settings"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

type messageRequest struct {
	Action  string                `json:"action"`
	PDFURL  string                `json:"pdfUrl"`
	RowData *digest.DisclosureRow `json:"rowData,omitempty"`
	Enabled *bool                 `json:"enabled,omitempty"`
}

type summarizeReply struct {
	digest.SummaryResult
	SummaryHTML string `json:"summaryHtml,omitempty"`
}

type toggleReply struct {
	Enabled bool       `json:"enabled"`
	Pass    tdnet.Pass `json:"pass"`
}

type settingsView struct {
	APIURL           string `json:"apiUrl"`
	APIKey           string `json:"apiKey"`
	Model            string `json:"model"`
	Configured       bool   `json:"configured"`
	ExtensionEnabled bool   `json:"extensionEnabled"`
}

type errorReply struct {
	Error string `json:"error"`
}

func (s *Server) message(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorReply{Error: "invalid body"})
		return
	}

	switch req.Action {
	case relay.ActionSummarize:
		s.summarize(w, r, req)
	case relay.ActionToggleExtension:
		s.toggle(w, r, req)
	default:
		writeJSON(w, http.StatusBadRequest, errorReply{Error: "unknown action " + req.Action})
	}
}

func (s *Server) summarize(w http.ResponseWriter, r *http.Request, req messageRequest) {
	if req.PDFURL == "" {
		writeJSON(w, http.StatusBadRequest, errorReply{Error: "pdfUrl is required"})
		return
	}
	if s.opts.Summarizer == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorReply{Error: "summarizer not configured"})
		return
	}

	res := s.opts.Summarizer.Handle(r.Context(), digest.SummarizeRequest{
		Action:  req.Action,
		PDFURL:  req.PDFURL,
		RowData: req.RowData,
	})

	row := digest.DisclosureRow{PDFURL: req.PDFURL}
	if req.RowData != nil {
		row = *req.RowData
	}
	reply := summarizeReply{SummaryResult: res}
	html, err := tdnet.SummaryRowHTML(row, res)
	if err != nil {
		s.log.WithError(err).Warn("building summary row")
	} else {
		reply.SummaryHTML = html
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request, req messageRequest) {
	if req.Enabled == nil {
		writeJSON(w, http.StatusBadRequest, errorReply{Error: "enabled is required"})
		return
	}
	if s.opts.Store != nil {
		if err := settings.SetEnabled(r.Context(), s.opts.Store, *req.Enabled); err != nil {
			s.log.WithError(err).Error("saving toggle")
			writeJSON(w, http.StatusInternalServerError, errorReply{Error: err.Error()})
			return
		}
	}
	pass := s.opts.State.Set(*req.Enabled)
	s.log.WithFields(logrus.Fields{"enabled": *req.Enabled, "pass": pass}).Info("summary buttons toggled")
	writeJSON(w, http.StatusOK, toggleReply{Enabled: *req.Enabled, Pass: pass})
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	view, err := s.settingsView(r)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorReply{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// putSettings saves the endpoint settings. An empty apiKey keeps the
// stored key, so the masked value shown by GET never overwrites it, but
// only while apiUrl is unchanged: the stored key is never sent to a new
// endpoint without being re-entered.
func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorReply{Error: "settings store not configured"})
		return
	}
	var in settings.Settings
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorReply{Error: "invalid body"})
		return
	}
	in.APIURL = strings.TrimSpace(in.APIURL)
	in.APIKey = strings.TrimSpace(in.APIKey)

	if in.APIKey == "" {
		cur, err := settings.Load(r.Context(), s.opts.Store)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorReply{Error: err.Error()})
			return
		}
		if cur.APIKey != "" && in.APIURL != cur.APIURL {
			writeJSON(w, http.StatusBadRequest, errorReply{Error: "apiKey is required when changing apiUrl"})
			return
		}
		in.APIKey = cur.APIKey
	}
	if err := settings.Save(r.Context(), s.opts.Store, in); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorReply{Error: err.Error()})
		return
	}
	s.getSettings(w, r)
}

func (s *Server) settingsView(r *http.Request) (settingsView, error) {
	if s.opts.Store == nil {
		return settingsView{Model: settings.DefaultModel, ExtensionEnabled: s.opts.State.Enabled()}, nil
	}
	cur, err := settings.Load(r.Context(), s.opts.Store)
	if err != nil {
		return settingsView{}, err
	}
	enabled, err := settings.Enabled(r.Context(), s.opts.Store)
	if err != nil {
		return settingsView{}, err
	}
	return settingsView{
		APIURL:           cur.APIURL,
		APIKey:           settings.MaskKey(cur.APIKey),
		Model:            cur.Model,
		Configured:       cur.Configured(),
		ExtensionEnabled: enabled,
	}, nil
}

// listing serves the listing frame annotated for the current toggle
// state. With ?summarize=<pdfUrl> the summary of that row is rendered
// inline as well.
func (s *Server) listing(w http.ResponseWriter, r *http.Request) {
	listing, err := s.opts.Loader.Load(r.Context(), s.opts.ListingURL)
	if err != nil {
		s.log.WithError(err).Warn("loading listing")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	doc, err := tdnet.ParseHTML(strings.NewReader(listing.HTML))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	// Relative links keep pointing at TDnet.
	if head := doc.Find("head"); head.Find("base").Length() == 0 {
		head.PrependHtml(`<base>`)
		head.Find("base").First().SetAttr("href", listing.URL)
	}

	pass := s.opts.State.Apply(doc, endpointURL(r))

	target := r.URL.Query().Get("summarize")
	if target != "" && r.Header.Get("Sec-Fetch-Site") == "cross-site" {
		s.log.WithField("pdf_url", target).Warn("ignoring cross-site summarize request")
		target = ""
	}
	if target != "" && pass == tdnet.PassInject && s.opts.Summarizer != nil {
		row := digest.DisclosureRow{PDFURL: target}
		for _, candidate := range tdnet.Rows(doc) {
			if candidate.PDFURL == target {
				row = candidate
				break
			}
		}
		res := s.opts.Summarizer.Handle(r.Context(), digest.SummarizeRequest{
			Action:  relay.ActionSummarize,
			PDFURL:  row.PDFURL,
			RowData: &row,
		})
		if html, err := tdnet.SummaryRowHTML(row, res); err == nil {
			tdnet.InsertSummary(doc, target, html)
		}
	}

	html, err := doc.Html()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// endpointURL is the absolute message endpoint, needed because the
// listing carries a <base> pointing at TDnet.
func endpointURL(r *http.Request) string {
	return baseURL(r) + "/api/message"
}

// baseURL is the origin this request was addressed to.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
