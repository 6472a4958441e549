package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	httpserver "hotel_rates/internal/adapters/http_server"
	"hotel_rates/internal/app"
	"hotel_rates/internal/domain"
	"hotel_rates/internal/storage/memory"
)

var group = domain.GroupKey{HotelID: 42, RoomTypeID: 3, OccupancyTypeID: 2}

func day(m time.Month, d int) time.Time { return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC) }

func newServer(t *testing.T, st domain.PeriodStore, opts app.CommitOptions) *httptest.Server {
	t.Helper()
	srv := httpserver.New(5 * time.Second)
	srv.MountHandlers(&httpserver.Handlers{
		Q: app.NewQueryService(st, nil, time.Minute),
		C: app.NewCommandService(st, nil, opts),
	})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func seededStore() (*memory.Store, domain.PricingPeriod) {
	st := memory.New()
	ps := st.Seed(domain.PricingPeriod{Group: group, Range: domain.NewDateRange(day(1, 1), day(1, 31)), Price: decimal.NewFromInt(100)})
	return st, ps[0]
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

const splitBody = `{"roomTypeId":3,"occupancyTypeId":2,"startDate":"2026-01-10","endDate":"2026-01-20","price":"150"}`

func withToken(body, token string) string {
	return strings.TrimSuffix(body, "}") + `,"previewToken":"` + token + `"}`
}

func TestPreviewThenCommit(t *testing.T) {
	st, _ := seededStore()
	ts := newServer(t, st, app.DefaultCommitOptions())

	resp := post(t, ts.URL+"/v1/hotels/42/rates/preview", splitBody)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("preview status %d", resp.StatusCode)
	}
	var pv domain.PreviewResult
	decode(t, resp, &pv)
	if !pv.WillSplit || len(pv.ResultingPeriods) != 3 || pv.Token == "" {
		t.Fatalf("unexpected preview: %+v", pv)
	}

	resp = post(t, ts.URL+"/v1/hotels/42/rates", withToken(splitBody, pv.Token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("commit status %d", resp.StatusCode)
	}
	var res domain.CommitResult
	decode(t, resp, &res)
	if len(res.Periods) != 3 || res.Periods[1].Label != "2026-01-10..2026-01-20 @ 150.00" {
		t.Fatalf("unexpected commit result: %+v", res.Periods)
	}
}

func TestCommit_StaleTokenIsConflict(t *testing.T) {
	st, _ := seededStore()
	ts := newServer(t, st, app.DefaultCommitOptions())

	var pv domain.PreviewResult
	decode(t, post(t, ts.URL+"/v1/hotels/42/rates/preview", splitBody), &pv)

	// someone else changes the group in between
	other := `{"roomTypeId":3,"occupancyTypeId":2,"startDate":"2026-01-15","endDate":"2026-01-16","price":"99"}`
	if resp := post(t, ts.URL+"/v1/hotels/42/rates", other); resp.StatusCode != http.StatusCreated {
		t.Fatalf("intervening commit status %d", resp.StatusCode)
	}

	resp := post(t, ts.URL+"/v1/hotels/42/rates", withToken(splitBody, pv.Token))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("want 409, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type %q", ct)
	}
	var p struct {
		Affected     []string `json:"affected"`
		PreviewToken string   `json:"previewToken"`
	}
	decode(t, resp, &p)
	if len(p.Affected) != 3 || p.PreviewToken == "" || p.PreviewToken == pv.Token {
		t.Fatalf("unexpected conflict body: %+v", p)
	}
}

func TestCommit_ValidationErrors(t *testing.T) {
	ts := newServer(t, memory.New(), app.DefaultCommitOptions())

	cases := []struct {
		name   string
		body   string
		status int
		field  string
	}{
		{"malformed json", `{"roomTypeId":`, http.StatusBadRequest, ""},
		{"unknown field", `{"roomTypeId":3,"bogus":1}`, http.StatusBadRequest, ""},
		{"missing price", `{"roomTypeId":3,"occupancyTypeId":2,"startDate":"2026-01-01","endDate":"2026-01-02"}`, http.StatusUnprocessableEntity, "price"},
		{"bad date", `{"roomTypeId":3,"occupancyTypeId":2,"startDate":"01/01/2026","endDate":"2026-01-02","price":1}`, http.StatusUnprocessableEntity, "startDate"},
		{"end before start", `{"roomTypeId":3,"occupancyTypeId":2,"startDate":"2026-01-05","endDate":"2026-01-02","price":1}`, http.StatusUnprocessableEntity, "endDate"},
		{"negative price", `{"roomTypeId":3,"occupancyTypeId":2,"startDate":"2026-01-01","endDate":"2026-01-02","price":"-1"}`, http.StatusUnprocessableEntity, "price"},
		{"missing room type", `{"occupancyTypeId":2,"startDate":"2026-01-01","endDate":"2026-01-02","price":1}`, http.StatusUnprocessableEntity, "roomTypeId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := post(t, ts.URL+"/v1/hotels/42/rates", tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("want %d, got %d", tc.status, resp.StatusCode)
			}
			if tc.field == "" {
				return
			}
			var p struct {
				Errors []domain.FieldProblem `json:"errors"`
			}
			decode(t, resp, &p)
			found := false
			for _, fp := range p.Errors {
				found = found || fp.Field == tc.field
			}
			if !found {
				t.Fatalf("field %s not reported: %+v", tc.field, p.Errors)
			}
		})
	}
}

func TestCommit_StrictModeNeedsToken(t *testing.T) {
	opts := app.DefaultCommitOptions()
	opts.RequireToken = true
	ts := newServer(t, memory.New(), opts)

	resp := post(t, ts.URL+"/v1/hotels/42/rates", splitBody)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("want 422, got %d", resp.StatusCode)
	}
}

func TestListRates_ETag(t *testing.T) {
	st, _ := seededStore()
	ts := newServer(t, st, app.DefaultCommitOptions())
	url := ts.URL + "/v1/hotels/42/rates?room_type=3&occupancy=2"

	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	etag := resp.Header.Get("ETag")
	var page domain.GroupPeriods
	decode(t, resp, &page)
	if etag == "" || len(page.Items) != 1 {
		t.Fatalf("etag=%q items=%+v", etag, page.Items)
	}

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotModified {
		t.Fatalf("want 304, got %d", resp2.StatusCode)
	}

	// meal plan selects a different, empty group
	resp3, err := http.Get(url + "&meal_plan=4")
	if err != nil {
		t.Fatal(err)
	}
	defer resp3.Body.Close()
	var other domain.GroupPeriods
	decode(t, resp3, &other)
	if len(other.Items) != 0 {
		t.Fatalf("meal plan group should be empty: %+v", other.Items)
	}
}

func TestListRates_BadQuery(t *testing.T) {
	ts := newServer(t, memory.New(), app.DefaultCommitOptions())
	for _, u := range []string{"/v1/hotels/42/rates?occupancy=2", "/v1/hotels/42/rates?room_type=3&occupancy=x"} {
		resp, err := http.Get(ts.URL + u)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnprocessableEntity {
			t.Errorf("%s: want 422, got %d", u, resp.StatusCode)
		}
	}
	resp, err := http.Get(ts.URL + "/v1/hotels/abc/rates?room_type=3&occupancy=2")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("want 400 for bad hotel id, got %d", resp.StatusCode)
	}
}

func TestDeleteRate(t *testing.T) {
	st, p := seededStore()
	ts := newServer(t, st, app.DefaultCommitOptions())

	del := func(id string) int {
		req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/rates/"+id, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}
	if got := del(p.ID); got != http.StatusNoContent {
		t.Fatalf("want 204, got %d", got)
	}
	if got := del(p.ID); got != http.StatusNotFound {
		t.Fatalf("want 404 on second delete, got %d", got)
	}
	if got := del("not-an-id"); got != http.StatusBadRequest {
		t.Fatalf("want 400 for malformed id, got %d", got)
	}
}

type downStore struct{ domain.PeriodStore }

func (downStore) WithinGroup(context.Context, domain.GroupKey, func(domain.PeriodTx) error) error {
	return &domain.StorageError{Op: "begin", Err: context.DeadlineExceeded, Retryable: false}
}

func TestCommit_StorageErrorIs503(t *testing.T) {
	ts := newServer(t, downStore{memory.New()}, app.DefaultCommitOptions())

	resp, err := http.Post(ts.URL+"/v1/hotels/42/rates", "application/json", bytes.NewBufferString(splitBody))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("want 503, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "1" {
		t.Fatalf("missing Retry-After")
	}
}
