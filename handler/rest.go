package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/stevemurr/eden-shim/collection"
	"github.com/stevemurr/eden-shim/query"
)

// singleObject is the Accept header asking for exactly one row.
const singleObject = "application/vnd.pgrst.object+json"

// applyQuery adds the select projection and eq filters from the query string
// to b. Filters look like field=eq.value; other operators are rejected. The
// value is matched against the stored field's textual form, so eq.42 finds
// both the string "42" and the number 42.
func applyQuery(b *query.Builder, q url.Values) error {
	for field, values := range q {
		if field == "select" {
			continue
		}
		for _, v := range values {
			raw, ok := strings.CutPrefix(v, "eq.")
			if !ok {
				return fmt.Errorf("unsupported filter %s=%s (only eq is supported)", field, v)
			}
			b.Eq(field, collection.Text(raw))
		}
	}
	if sel := q.Get("select"); sel != "" {
		b.Select(splitColumns(sel)...)
	}
	return nil
}

func splitColumns(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func wantsSingle(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), singleObject)
}

// readRecords accepts either one JSON object or an array of them.
func readRecords(r *http.Request) ([]collection.Record, error) {
	defer r.Body.Close()
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var records []collection.Record
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, err
		}
		return records, nil
	}
	var record collection.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, err
	}
	return []collection.Record{record}, nil
}

func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	names, err := h.client.Collections(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *Handler) read(w http.ResponseWriter, r *http.Request) {
	b := h.client.From(r.PathValue("collection")).Select()
	if err := applyQuery(b, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respond(w, r, b, http.StatusOK)
}

// insert handles POST. With "Prefer: resolution=merge-duplicates" the rows
// are upserted by id instead.
func (h *Handler) insert(w http.ResponseWriter, r *http.Request) {
	records, err := readRecords(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	b := h.client.From(r.PathValue("collection"))
	if strings.Contains(r.Header.Get("Prefer"), "resolution=merge-duplicates") {
		b.Upsert(records...)
	} else {
		b.Insert(records...)
	}
	if sel := r.URL.Query().Get("select"); sel != "" {
		b.Select(splitColumns(sel)...)
	}
	h.respond(w, r, b, http.StatusCreated)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var patch collection.Record
	if err := readJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if patch == nil {
		writeError(w, http.StatusBadRequest, query.ErrNoPayload.Error())
		return
	}
	b := h.client.From(r.PathValue("collection")).Update(patch)
	if err := applyQuery(b, r.URL.Query()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := b.Execute(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Range", fmt.Sprintf("*/%d", res.Count))
	writeJSON(w, http.StatusOK, res.Data[0])
}

// respond executes b and writes either the row list or, when the client
// asked for one object, the first row.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, b *query.Builder, status int) {
	if wantsSingle(r) {
		row, err := b.Single(r.Context())
		if err != nil {
			h.writeStoreError(w, err)
			return
		}
		writeJSON(w, status, row)
		return
	}
	res, err := b.Execute(r.Context())
	if err != nil {
		if errors.Is(err, query.ErrNoPayload) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, status, res.Data)
}
