package rpc

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"shelfledger/core"
	"shelfledger/crypto"
	"shelfledger/native/assets"
	"shelfledger/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	node := core.NewNode(storage.NewMemDB(), assets.NewRegistry())
	srv := httptest.NewServer(NewServer(node, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func bech32Actor(t *testing.T, fill byte) string {
	t.Helper()
	raw := bytes.Repeat([]byte{fill}, 20)
	addr, err := crypto.NewAddress(raw)
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	return addr.String()
}

func hexID32(fill byte) string {
	return hex.EncodeToString(bytes.Repeat([]byte{fill}, 32))
}

func call(t *testing.T, srv *httptest.Server, method string, params interface{}) (*http.Response, RPCResponse) {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(srv.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var decoded RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestRegisterAndFetchSlot(t *testing.T) {
	srv := newTestServer(t)
	owner := bech32Actor(t, 0x11)

	resp, rpcResp := call(t, srv, "market_registerSlot", map[string]string{
		"owner":           owner,
		"id":              hexID32(0xA1),
		"placementType":   "related_purchase",
		"productCategory": "beverage",
		"manager":         owner,
	})
	if resp.StatusCode != http.StatusOK || rpcResp.Error != nil {
		t.Fatalf("register failed: status=%d err=%+v", resp.StatusCode, rpcResp.Error)
	}

	resp, rpcResp = call(t, srv, "market_getSlot", map[string]string{"id": hexID32(0xA1)})
	if resp.StatusCode != http.StatusOK || rpcResp.Error != nil {
		t.Fatalf("get failed: status=%d err=%+v", resp.StatusCode, rpcResp.Error)
	}
	result, err := json.Marshal(rpcResp.Result)
	if err != nil {
		t.Fatalf("remarshal: %v", err)
	}
	var slot slotJSON
	if err := json.Unmarshal(result, &slot); err != nil {
		t.Fatalf("unmarshal slot: %v", err)
	}
	if slot.Owner != owner || slot.PlacementType != "related_purchase" || slot.IsActive {
		t.Fatalf("unexpected slot: %+v", slot)
	}
}

func TestGetSlotNotFound(t *testing.T) {
	srv := newTestServer(t)
	resp, rpcResp := call(t, srv, "market_getSlot", map[string]string{"id": hexID32(0xFF)})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if rpcResp.Error == nil || rpcResp.Error.Code != codeMarketNotFound {
		t.Fatalf("unexpected error: %+v", rpcResp.Error)
	}
}

func TestUnauthorizedMapsToForbidden(t *testing.T) {
	srv := newTestServer(t)
	owner := bech32Actor(t, 0x11)
	stranger := bech32Actor(t, 0x22)

	if resp, rpcResp := call(t, srv, "market_registerSlot", map[string]string{
		"owner":           owner,
		"id":              hexID32(0xA1),
		"placementType":   "targeted",
		"productCategory": "toys",
		"manager":         owner,
	}); resp.StatusCode != http.StatusOK || rpcResp.Error != nil {
		t.Fatalf("register failed: %+v", rpcResp.Error)
	}

	resp, rpcResp := call(t, srv, "market_activateSlot", map[string]string{
		"caller": stranger,
		"id":     hexID32(0xA1),
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if rpcResp.Error == nil || rpcResp.Error.Code != codeMarketUnauthorized {
		t.Fatalf("unexpected error: %+v", rpcResp.Error)
	}
}

func TestInvalidParamsRejected(t *testing.T) {
	srv := newTestServer(t)
	resp, rpcResp := call(t, srv, "market_getSlot", map[string]string{"id": "zz"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if rpcResp.Error == nil || rpcResp.Error.Code != codeInvalidParams {
		t.Fatalf("unexpected error: %+v", rpcResp.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	srv := newTestServer(t)
	resp, rpcResp := call(t, srv, "market_unknown", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if rpcResp.Error == nil || rpcResp.Error.Code != codeMethodNotFound {
		t.Fatalf("unexpected error: %+v", rpcResp.Error)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(fmt.Sprintf("%s/health", srv.URL))
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestFundAndQueryBalance(t *testing.T) {
	srv := newTestServer(t)
	addr := bech32Actor(t, 0x33)

	if resp, rpcResp := call(t, srv, "market_fundAccount", map[string]string{
		"address": addr,
		"amount":  "12345",
	}); resp.StatusCode != http.StatusOK || rpcResp.Error != nil {
		t.Fatalf("fund failed: %+v", rpcResp.Error)
	}

	resp, rpcResp := call(t, srv, "market_getBalance", map[string]string{"address": addr})
	if resp.StatusCode != http.StatusOK || rpcResp.Error != nil {
		t.Fatalf("balance failed: %+v", rpcResp.Error)
	}
	result, _ := json.Marshal(rpcResp.Result)
	var out map[string]string
	if err := json.Unmarshal(result, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["balance"] != "12345" {
		t.Fatalf("balance = %q, want 12345", out["balance"])
	}
}
