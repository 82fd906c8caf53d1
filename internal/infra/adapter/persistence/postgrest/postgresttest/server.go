// Package postgresttest provides an in-memory server speaking the subset of
// the PostgREST protocol used by the postgrest backend: eq/lt/in/not.in
// filters, select, order, limit, single-object responses, Prefer handling,
// and primary key conflicts on "id".
package postgresttest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type row = map[string]any

// Server is an httptest server holding tables in memory. It is safe for
// concurrent requests.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	tables    map[string][]row
	calls     map[string]int
	intercept func(r *http.Request) (status int, body string, ok bool)
}

// NewServer starts a server. Tables are created on first write.
func NewServer() *Server {
	s := &Server{
		tables: make(map[string][]row),
		calls:  make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Seed appends rows to table without conflict checks.
func (s *Server) Seed(table string, rows ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table] = append(s.tables[table], normalize(r))
	}
}

// Rows returns a copy of every row in table, in insertion order.
func (s *Server) Rows(table string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.tables[table]))
	for _, r := range s.tables[table] {
		out = append(out, clone(r))
	}
	return out
}

// Calls returns how many requests with the given method reached a table.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// Intercept installs fn; when it returns ok, its status and body are sent
// instead of the normal response.
func (s *Server) Intercept(fn func(r *http.Request) (status int, body string, ok bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intercept = fn
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	table, ok := strings.CutPrefix(r.URL.Path, "/rest/v1/")
	if !ok || table == "" {
		writeError(w, http.StatusNotFound, "PGRST205", "unknown path "+r.URL.Path)
		return
	}

	s.mu.Lock()
	s.calls[r.Method]++
	intercept := s.intercept
	s.mu.Unlock()

	if intercept != nil {
		if status, body, hit := intercept(r); hit {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
			return
		}
	}

	q, err := parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "PGRST100", err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.get(w, r, table, q)
	case http.MethodPost:
		s.post(w, r, table)
	case http.MethodPatch:
		s.patch(w, r, table, q)
	case http.MethodDelete:
		s.delete(w, r, table, q)
	default:
		writeError(w, http.StatusMethodNotAllowed, "PGRST000", "method not allowed")
	}
}

func (s *Server) get(w http.ResponseWriter, r *http.Request, table string, q *parsedQuery) {
	s.mu.Lock()
	matched := q.apply(s.tables[table])
	s.mu.Unlock()
	respond(w, r, http.StatusOK, project(matched, q.columns))
}

func (s *Server) post(w http.ResponseWriter, r *http.Request, table string) {
	incoming, err := decodeBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "PGRST102", err.Error())
		return
	}

	s.mu.Lock()
	existing := make(map[string]struct{}, len(s.tables[table]))
	for _, rw := range s.tables[table] {
		existing[fmt.Sprint(rw["id"])] = struct{}{}
	}
	for _, in := range incoming {
		id := fmt.Sprint(in["id"])
		if _, dup := existing[id]; dup {
			s.mu.Unlock()
			writeJSON(w, http.StatusConflict, map[string]any{
				"code":    "23505",
				"message": fmt.Sprintf("duplicate key value violates unique constraint %q", table+"_pkey"),
				"details": fmt.Sprintf("Key (id)=(%s) already exists.", id),
				"hint":    nil,
			})
			return
		}
		existing[id] = struct{}{}
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	created := make([]row, 0, len(incoming))
	for _, in := range incoming {
		if _, ok := in["created_at"]; !ok {
			in["created_at"] = now
		}
		if _, ok := in["updated_at"]; !ok {
			in["updated_at"] = now
		}
		s.tables[table] = append(s.tables[table], in)
		created = append(created, clone(in))
	}
	s.mu.Unlock()

	respond(w, r, http.StatusCreated, created)
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request, table string, q *parsedQuery) {
	incoming, err := decodeBody(r)
	if err != nil || len(incoming) != 1 {
		writeError(w, http.StatusBadRequest, "PGRST102", "PATCH expects one JSON object")
		return
	}
	changes := incoming[0]

	s.mu.Lock()
	var updated []row
	for _, rw := range s.tables[table] {
		if q.matches(rw) {
			for k, v := range changes {
				rw[k] = v
			}
			updated = append(updated, clone(rw))
		}
	}
	s.mu.Unlock()

	respond(w, r, http.StatusOK, updated)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request, table string, q *parsedQuery) {
	s.mu.Lock()
	var kept, removed []row
	for _, rw := range s.tables[table] {
		if q.matches(rw) {
			removed = append(removed, clone(rw))
		} else {
			kept = append(kept, rw)
		}
	}
	s.tables[table] = kept
	s.mu.Unlock()

	respond(w, r, http.StatusOK, removed)
}

// respond honours Prefer: return=minimal and single-object Accept.
func respond(w http.ResponseWriter, r *http.Request, status int, rows []row) {
	if r.Method != http.MethodGet && !strings.Contains(r.Header.Get("Prefer"), "return=representation") {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if rows == nil {
		rows = []row{}
	}
	if r.Header.Get("Accept") == "application/vnd.pgrst.object+json" {
		if len(rows) != 1 {
			writeJSON(w, http.StatusNotAcceptable, map[string]any{
				"code":    "PGRST116",
				"message": "JSON object requested, multiple (or no) rows returned",
				"details": fmt.Sprintf("The result contains %d rows", len(rows)),
				"hint":    nil,
			})
			return
		}
		writeJSON(w, status, rows[0])
		return
	}
	writeJSON(w, status, rows)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]any{"code": code, "message": msg, "details": nil, "hint": nil})
}

func decodeBody(r *http.Request) ([]row, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		return nil, err
	}
	raw := bytes.TrimSpace(buf.Bytes())
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	if len(raw) > 0 && raw[0] == '[' {
		var rows []row
		if err := dec.Decode(&rows); err != nil {
			return nil, err
		}
		return rows, nil
	}
	var one row
	if err := dec.Decode(&one); err != nil {
		return nil, err
	}
	return []row{one}, nil
}

// normalize round-trips r through JSON so seeded values have the same
// dynamic types as decoded request bodies.
func normalize(r map[string]any) row {
	raw, _ := json.Marshal(r)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out row
	_ = dec.Decode(&out)
	return out
}

func clone(r row) row {
	out := make(row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func project(rows []row, columns []string) []row {
	if columns == nil {
		return rows
	}
	out := make([]row, 0, len(rows))
	for _, r := range rows {
		p := make(row, len(columns))
		for _, c := range columns {
			if v, ok := r[c]; ok {
				p[c] = v
			}
		}
		out = append(out, p)
	}
	return out
}

/* ───────── query parsing ───────── */

type filter struct {
	column string
	op     string
	value  string
	list   []string
	negate bool
}

type orderTerm struct {
	column string
	desc   bool
}

type parsedQuery struct {
	filters []filter
	order   []orderTerm
	limit   int
	columns []string
}

func parseQuery(r *http.Request) (*parsedQuery, error) {
	q := &parsedQuery{limit: -1}
	for key, values := range r.URL.Query() {
		for _, v := range values {
			switch key {
			case "select":
				if v != "*" {
					q.columns = strings.Split(v, ",")
				}
			case "limit":
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, fmt.Errorf("bad limit %q", v)
				}
				q.limit = n
			case "order":
				for _, term := range strings.Split(v, ",") {
					col, dir, _ := strings.Cut(term, ".")
					q.order = append(q.order, orderTerm{column: col, desc: dir == "desc"})
				}
			default:
				f, err := parseFilter(key, v)
				if err != nil {
					return nil, err
				}
				q.filters = append(q.filters, f)
			}
		}
	}
	return q, nil
}

func parseFilter(column, expr string) (filter, error) {
	f := filter{column: column}
	if rest, ok := strings.CutPrefix(expr, "not."); ok {
		f.negate = true
		expr = rest
	}
	op, value, ok := strings.Cut(expr, ".")
	if !ok {
		return f, fmt.Errorf("bad filter %s=%s", column, expr)
	}
	f.op = op
	switch op {
	case "eq", "lt":
		f.value = value
	case "in":
		list, err := parseList(value)
		if err != nil {
			return f, err
		}
		f.list = list
	default:
		return f, fmt.Errorf("unsupported operator %q", op)
	}
	return f, nil
}

// parseList reads ("a","b\"c",d).
func parseList(s string) ([]string, error) {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("bad list %q", s)
	}
	s = s[1 : len(s)-1]
	var (
		out     []string
		cur     strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quoted:
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if s != "" {
		out = append(out, cur.String())
	}
	return out, nil
}

func (q *parsedQuery) matches(r row) bool {
	for _, f := range q.filters {
		if f.match(r[f.column]) == f.negate {
			return false
		}
	}
	return true
}

func (f filter) match(v any) bool {
	if v == nil {
		return false
	}
	switch f.op {
	case "eq":
		return compare(v, f.value) == 0
	case "lt":
		return compare(v, f.value) < 0
	case "in":
		for _, item := range f.list {
			if compare(v, item) == 0 {
				return true
			}
		}
	}
	return false
}

// compare orders a stored value against a filter literal, numerically when
// the stored value is a number.
func compare(v any, literal string) int {
	if n, ok := v.(json.Number); ok {
		a, errA := n.Float64()
		b, errB := strconv.ParseFloat(literal, 64)
		if errA == nil && errB == nil {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(v), literal)
}

func (q *parsedQuery) apply(rows []row) []row {
	var out []row
	for _, r := range rows {
		if q.matches(r) {
			out = append(out, clone(r))
		}
	}
	if len(q.order) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, t := range q.order {
				c := compareValues(out[i][t.column], out[j][t.column])
				if c == 0 {
					continue
				}
				if t.desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if q.limit >= 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out
}

func compareValues(a, b any) int {
	if b == nil {
		if a == nil {
			return 0
		}
		return 1
	}
	if a == nil {
		return -1
	}
	return compare(a, fmt.Sprint(b))
}
