package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/perkdesk/perkdesk/internal/proxy"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL + "/proxy")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return c, &calls
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestParseEndpoint_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseEndpoint("")
	if err != nil {
		t.Fatalf("parseEndpoint returned error: %v", err)
	}
	if u.String() != defaultEndpoint {
		t.Fatalf("endpoint = %q, want %q", u.String(), defaultEndpoint)
	}

	u, err = parseEndpoint("shop.local:9000")
	if err != nil {
		t.Fatalf("parseEndpoint returned error: %v", err)
	}
	if u.Scheme != "http" || u.Host != "shop.local:9000" || u.Path != "/proxy" {
		t.Fatalf("endpoint = %q, want http://shop.local:9000/proxy", u.String())
	}

	if _, err := parseEndpoint("http://"); err == nil {
		t.Fatalf("parseEndpoint(http://) returned nil error, want missing host")
	}
}

func TestListCustomers_BuildsRequestAndUnwrapsEnvelope(t *testing.T) {
	var gotQuery url.Values
	var gotAuth, gotMethod string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get(AuthHeader)
		gotMethod = r.Method
		writeJSON(w, http.StatusOK, `{"ok":true,"data":[{"ID":"c-2","Name":"Bea"},{"ID":"c-1","Name":"Al"}]}`)
	})

	customers, err := c.ListCustomers(testContext(t), "b&a s", "pw")
	if err != nil {
		t.Fatalf("ListCustomers returned error: %v", err)
	}
	if gotMethod != http.MethodGet {
		t.Fatalf("method = %s, want GET", gotMethod)
	}
	if gotQuery.Get("action") != ActionList || gotQuery.Get("query") != "b&a s" {
		t.Fatalf("query = %v, want action=list query=%q", gotQuery, "b&a s")
	}
	if gotAuth != "pw" {
		t.Fatalf("X-Auth = %q, want pw", gotAuth)
	}
	if len(customers) != 2 || customers[0].ID != "c-2" || customers[1].ID != "c-1" {
		t.Fatalf("customers = %#v, want backend order c-2, c-1", customers)
	}
}

func TestListCustomers_EmptyQueryStillSent(t *testing.T) {
	var raw string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw = r.URL.RawQuery
		writeJSON(w, http.StatusOK, `[]`)
	})
	if _, err := c.ListCustomers(testContext(t), "", "pw"); err != nil {
		t.Fatalf("ListCustomers returned error: %v", err)
	}
	if raw != "action=list&query=" {
		t.Fatalf("RawQuery = %q, want action=list&query=", raw)
	}
}

func TestListCustomers_BareArray(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `[{"ID":"c-1","Name":"Al","Spend":12.5,"Goal":200}]`)
	})
	customers, err := c.ListCustomers(testContext(t), "", "pw")
	if err != nil {
		t.Fatalf("ListCustomers returned error: %v", err)
	}
	if len(customers) != 1 || customers[0].Name != "Al" || customers[0].Spend != 12.5 {
		t.Fatalf("customers = %#v, want bare array decoded", customers)
	}
}

func TestListCustomers_EnvelopeWithoutDataIsEmpty(t *testing.T) {
	for _, body := range []string{`{"ok":true}`, `{"ok":true,"data":null}`, `null`} {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, body)
		})
		customers, err := c.ListCustomers(testContext(t), "", "pw")
		if err != nil {
			t.Fatalf("%s: ListCustomers returned error: %v", body, err)
		}
		if customers == nil || len(customers) != 0 {
			t.Fatalf("%s: customers = %#v, want empty non-nil slice", body, customers)
		}
	}
}

func TestListCustomers_NonJSONBodyIsRawPayload(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, `[{"ID":"c-9"}]`)
	})
	customers, err := c.ListCustomers(testContext(t), "", "pw")
	if err != nil {
		t.Fatalf("ListCustomers returned error: %v", err)
	}
	if len(customers) != 1 || customers[0].ID != "c-9" {
		t.Fatalf("customers = %#v, want raw payload decoded", customers)
	}
}

func TestDecode_BackendErrors(t *testing.T) {
	cases := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantStatus  int
		wantMessage string
	}{
		{"envelope error on 401", http.StatusUnauthorized, "application/json", `{"ok":false,"error":"bad password"}`, 401, "bad password"},
		{"message field on 500", http.StatusInternalServerError, "application/json", `{"message":"sheet locked"}`, 500, "sheet locked"},
		{"json without message", http.StatusForbidden, "application/json", `{"ok":false}`, 403, "Request failed (403)"},
		{"non-json error", http.StatusBadGateway, "text/html", `<h1>bad gateway</h1>`, 502, "Request failed (502)"},
		{"ok false on 200 with text", http.StatusOK, "application/json", `{"ok":false,"error":"Unauthorized"}`, 200, "Unauthorized"},
		{"ok false on 200 without text", http.StatusOK, "application/json", `{"ok":false}`, 200, "Failed to fetch customers (200)"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tc.contentType)
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := c.ListCustomers(testContext(t), "", "pw")
			if err == nil {
				t.Fatalf("ListCustomers returned nil error")
			}
			if err.Error() != tc.wantMessage {
				t.Fatalf("error = %q, want %q", err.Error(), tc.wantMessage)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %T is not *APIError", err)
			}
			if apiErr.Status != tc.wantStatus {
				t.Fatalf("APIError.Status = %d, want %d", apiErr.Status, tc.wantStatus)
			}
		})
	}
}

func TestDecode_MalformedJSONIsError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ok":tru`)
	})
	_, err := c.ListCustomers(testContext(t), "", "pw")
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("error = %v, want decode response error", err)
	}
}

func TestAddOrUpdate_ValidationFailsWithoutNetwork(t *testing.T) {
	cases := []struct {
		name  string
		input CustomerInput
		field string
		msg   string
	}{
		{"missing name", CustomerInput{}, "name", "Name is required"},
		{"blank name", CustomerInput{Name: "   ", Email: "a@b.co"}, "name", "Name is required"},
		{"name wins over email", CustomerInput{Email: "nope"}, "name", "Name is required"},
		{"invalid email", CustomerInput{Name: "Ann", Email: "not-an-email"}, "email", "Invalid email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `{"ok":true,"data":{"ID":"x"}}`)
			})
			_, err := c.AddOrUpdate(testContext(t), tc.input, "pw")
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Field != tc.field || verr.Message != tc.msg {
				t.Fatalf("ValidationError = %+v, want field %q message %q", verr, tc.field, tc.msg)
			}
			if n := calls.Load(); n != 0 {
				t.Fatalf("network calls = %d, want 0", n)
			}
		})
	}
}

func TestAddOrUpdate_NormalizesOptionalFields(t *testing.T) {
	var gotBody, gotAction string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotAction = r.URL.Query().Get("action")
		writeJSON(w, http.StatusOK, `{"ok":true,"data":{"ID":"c-1","Name":"Ann"}}`)
	})

	customer, err := c.AddOrUpdate(testContext(t), CustomerInput{Name: " Ann ", Email: "", Phone: "  "}, "pw")
	if err != nil {
		t.Fatalf("AddOrUpdate returned error: %v", err)
	}
	if gotAction != ActionAddOrUpdate {
		t.Fatalf("action = %q, want %q", gotAction, ActionAddOrUpdate)
	}
	if gotBody != `{"name":"Ann"}` {
		t.Fatalf("body = %s, want empty optional fields dropped", gotBody)
	}
	if customer.ID != "c-1" {
		t.Fatalf("customer = %#v, want ID c-1", customer)
	}

	if _, err := c.AddOrUpdate(testContext(t), CustomerInput{Name: "Ann", Email: "ann@example.com", Phone: "555-0100"}, "pw"); err != nil {
		t.Fatalf("AddOrUpdate returned error: %v", err)
	}
	if gotBody != `{"name":"Ann","email":"ann@example.com","phone":"555-0100"}` {
		t.Fatalf("body = %s, want all fields", gotBody)
	}
}

func TestApplySpend_RejectsBadInputWithoutNetwork(t *testing.T) {
	cases := []struct {
		name   string
		id     string
		amount float64
		msg    string
	}{
		{"zero", "c-1", 0, "Amount must be greater than 0"},
		{"negative", "c-1", -5, "Amount must be greater than 0"},
		{"nan", "c-1", math.NaN(), "Amount must be greater than 0"},
		{"inf", "c-1", math.Inf(1), "Amount must be greater than 0"},
		{"missing id", "", 10, "Missing customer ID"},
		{"blank id", "  ", 10, "Missing customer ID"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, `{"ok":true,"data":{"ID":"c-1"}}`)
			})
			_, err := c.ApplySpend(testContext(t), tc.id, tc.amount, "pw")
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Message != tc.msg {
				t.Fatalf("error = %v, want ValidationError %q", err, tc.msg)
			}
			if n := calls.Load(); n != 0 {
				t.Fatalf("network calls = %d, want 0", n)
			}
		})
	}
}

func TestApplySpend_PostsIDAndAmount(t *testing.T) {
	var got spendPayload
	var gotMethod, gotAction string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAction = r.URL.Query().Get("action")
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, `{"ok":true,"data":{"ID":"c-1","Spend":"62.50","Goal":"200","Visits":"3"}}`)
	})

	customer, err := c.ApplySpend(testContext(t), "c-1", 12.5, "pw")
	if err != nil {
		t.Fatalf("ApplySpend returned error: %v", err)
	}
	if gotMethod != http.MethodPost || gotAction != ActionApplySpend {
		t.Fatalf("request = %s action=%s, want POST apply_spend", gotMethod, gotAction)
	}
	if got.ID != "c-1" || got.Amount != 12.5 {
		t.Fatalf("payload = %+v, want id c-1 amount 12.5", got)
	}
	if customer.Spend != 62.5 || customer.Goal != 200 || customer.Visits != 3 {
		t.Fatalf("customer = %#v, want spend 62.5 goal 200 visits 3", customer)
	}
}

func TestResetReward(t *testing.T) {
	var gotBody string
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		writeJSON(w, http.StatusOK, `{"ID":"c-1","Spend":0,"TimesHit200":2}`)
	})

	if _, err := c.ResetReward(testContext(t), "", "pw"); err == nil || err.Error() != "Missing customer ID" {
		t.Fatalf("ResetReward(empty) error = %v, want Missing customer ID", err)
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("network calls = %d, want 0", n)
	}

	customer, err := c.ResetReward(testContext(t), "c-1", "pw")
	if err != nil {
		t.Fatalf("ResetReward returned error: %v", err)
	}
	if gotBody != `{"id":"c-1"}` {
		t.Fatalf("body = %s, want {\"id\":\"c-1\"}", gotBody)
	}
	if customer.TimesHit200 != 2 || customer.Spend != 0 {
		t.Fatalf("customer = %#v, want bare object decoded", customer)
	}
}

func TestMutation_EnvelopeWithoutDataIsErrNoData(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	})
	if _, err := c.ResetReward(testContext(t), "c-1", "pw"); !errors.Is(err, ErrNoData) {
		t.Fatalf("error = %v, want ErrNoData", err)
	}
}

func TestMutation_FallbackMessages(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ok":false}`)
	})
	ctx := testContext(t)
	if _, err := c.AddOrUpdate(ctx, CustomerInput{Name: "Ann"}, "pw"); err == nil || err.Error() != "Failed to upsert customer (200)" {
		t.Fatalf("AddOrUpdate error = %v", err)
	}
	if _, err := c.ApplySpend(ctx, "c-1", 1, "pw"); err == nil || err.Error() != "Failed to apply spend (200)" {
		t.Fatalf("ApplySpend error = %v", err)
	}
	if _, err := c.ResetReward(ctx, "c-1", "pw"); err == nil || err.Error() != "Failed to reset reward (200)" {
		t.Fatalf("ResetReward error = %v", err)
	}
}

func TestTransportErrorPropagatesUnchanged(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/proxy"
	server.Close()

	c, err := NewClient(endpoint)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	_, err = c.ListCustomers(testContext(t), "", "pw")
	if err == nil {
		t.Fatalf("ListCustomers returned nil error, want transport error")
	}
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		t.Fatalf("error %T is not *url.Error", err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("transport error must not be an APIError")
	}
}

func TestRoundTrip_UpsertedCustomerMatchesListing(t *testing.T) {
	record := `{"ID":"c-7","Name":"Cy","Email":"cy@example.com","Spend":40,"Goal":200,"Visits":2,` +
		`"LastVisit":"2024-05-01T10:00:00Z","TimesHit200":1,"CreatedAt":"2024-01-01T00:00:00Z",` +
		`"UpdatedAt":"2024-05-01T10:00:00Z","Tier":"gold","Tags":["vip"]}`
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("action") {
		case ActionAddOrUpdate:
			writeJSON(w, http.StatusOK, `{"ok":true,"data":`+record+`}`)
		case ActionList:
			writeJSON(w, http.StatusOK, `[`+record+`]`)
		default:
			writeJSON(w, http.StatusBadRequest, `{"ok":false,"error":"unknown action"}`)
		}
	})
	ctx := testContext(t)

	upserted, err := c.AddOrUpdate(ctx, CustomerInput{Name: "Cy", Email: "cy@example.com"}, "pw")
	if err != nil {
		t.Fatalf("AddOrUpdate returned error: %v", err)
	}
	listed, err := c.ListCustomers(ctx, "Cy", "pw")
	if err != nil {
		t.Fatalf("ListCustomers returned error: %v", err)
	}
	var match *Customer
	for i := range listed {
		if listed[i].ID == upserted.ID {
			match = &listed[i]
		}
	}
	if match == nil {
		t.Fatalf("listing has no customer %q", upserted.ID)
	}
	if !reflect.DeepEqual(*match, upserted) {
		t.Fatalf("listed = %#v, upserted = %#v, want identical", *match, upserted)
	}
	if string(upserted.Extra["Tier"]) != `"gold"` {
		t.Fatalf("Extra[Tier] = %s, want unknown field preserved", upserted.Extra["Tier"])
	}
}

func TestClient_ThroughProxyFollowsRedirect(t *testing.T) {
	var contentAuth string
	contentHost := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentAuth = r.Header.Get(AuthHeader)
		if contentAuth != "pw" {
			writeJSON(w, http.StatusUnauthorized, `{"ok":false,"error":"bad password"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"ok":true,"data":[{"ID":"c-1","Name":"Al"}]}`)
	}))
	t.Cleanup(contentHost.Close)

	scriptHost := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, contentHost.URL+"/echo?"+r.URL.RawQuery, http.StatusFound)
	}))
	t.Cleanup(scriptHost.Close)

	front := httptest.NewServer(proxy.New(proxy.Options{BackendURL: scriptHost.URL + "/exec"}).Handler())
	t.Cleanup(front.Close)

	c, err := NewClient(front.URL + "/proxy")
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	ctx := testContext(t)

	customers, err := c.ListCustomers(ctx, "", "pw")
	if err != nil {
		t.Fatalf("ListCustomers returned error: %v", err)
	}
	if len(customers) != 1 || customers[0].ID != "c-1" {
		t.Fatalf("customers = %#v, want c-1", customers)
	}

	_, err = c.ListCustomers(ctx, "", "wrong")
	if err == nil || err.Error() != "bad password" {
		t.Fatalf("error = %v, want bad password", err)
	}
}
