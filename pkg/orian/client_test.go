package orian

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	client, err := NewClient("https://test.local/", "1234", WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestPostWrapsPayloadInDataCollection(t *testing.T) {
	var capturedURL, capturedAuth string
	var body map[string]map[string]map[string]any

	client := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedAuth = req.Header.Get("Authorization")
		raw, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		return jsonResponse(`{"status":"SUCCSESS","MessageID":null,"Note":"Company Created/Updated","errorCode":null,"ErrorMessage":null}`), nil
	})

	result, err := client.Post(context.Background(), EndpointCompany, Company{Consignee: "AAA", Company: "PLATFORM_1", CompanyType: CompanyTypeVendor})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if capturedURL != "https://test.local/Company" {
		t.Fatalf("unexpected url %q", capturedURL)
	}
	if capturedAuth != "Bearer 1234" {
		t.Fatalf("unexpected auth header %q", capturedAuth)
	}
	data := body["DATACOLLECTION"]["DATA"]
	if data["COMPANY"] != "PLATFORM_1" || data["CONSIGNEE"] != "AAA" {
		t.Fatalf("unexpected payload %+v", data)
	}
	if !result.TransportOK || !result.BusinessOK {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.Note != "Company Created/Updated" {
		t.Fatalf("unexpected note %q", result.Note)
	}
}

func TestPostBusinessFailureIsNotAnError(t *testing.T) {
	cases := map[string]string{
		"error code":        `{"status":null,"MessageID":null,"Note":null,"errorCode":"InvalidFormatData","ErrorMessage":""}`,
		"success with code": `{"status":"SUCCSESS","errorCode":"InvalidFormatData"}`,
		"missing status":    `{"errorCode":null}`,
		"other status":      `{"status":"SUCCESS","errorCode":null}`,
	}
	for name, respBody := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(*http.Request) (*http.Response, error) {
				return jsonResponse(respBody), nil
			})
			result, err := client.Post(context.Background(), EndpointSku, Sku{SKU: "1"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !result.TransportOK {
				t.Fatal("expected transport ok")
			}
			if result.BusinessOK {
				t.Fatalf("expected business failure, got %+v", result)
			}
		})
	}
}

func TestPostTransportFailure(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection reset")
	})

	result, err := client.Post(context.Background(), EndpointInbound, Inbound{})
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency code, got %v", err)
	}
	if result.TransportOK {
		t.Fatal("transport should not be ok")
	}
}

func TestPostNon200IsTransportFailure(t *testing.T) {
	client := newTestClient(t, func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusBadGateway,
			Body:       io.NopCloser(strings.NewReader("upstream down")),
			Header:     http.Header{},
		}, nil
	})

	if _, err := client.Post(context.Background(), EndpointOutbound, Outbound{}); !pkgerrors.Is(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestLinesAlwaysMarshalAsArray(t *testing.T) {
	raw, err := json.Marshal(Inbound{Lines: Lines{Line: []Line{{OrderLine: 1, SKU: "1", QtyOriginal: 2}}}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"LINE":[{"ORDERLINE":1,"SKU":"1","QTYORIGINAL":2}]`) {
		t.Fatalf("unexpected lines encoding %s", raw)
	}
}

func TestNewClientValidatesInputs(t *testing.T) {
	if _, err := NewClient("", "token"); err == nil {
		t.Fatal("expected base url error")
	}
	if _, err := NewClient("https://test.local", " "); err == nil {
		t.Fatal("expected token error")
	}
}
