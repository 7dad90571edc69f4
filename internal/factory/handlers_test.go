package factory_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ksred/rtp-api/internal/factory"
	"github.com/ksred/rtp-api/internal/types"
	"github.com/ksred/rtp-api/pkg/response"
)

func newTradeContext(t *testing.T, method, bankID, tradeID, tokenBankID string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, "/", reader)
	c.Request.Header.Set("Content-Type", "application/json")

	c.Params = gin.Params{{Key: "bank_id", Value: bankID}}
	if tradeID != "" {
		c.Params = append(c.Params, gin.Param{Key: "trade_id", Value: tradeID})
	}
	c.Set("bankID", tokenBankID)
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var env response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func TestPerformTradeHandlerEnforcesBankScope(t *testing.T) {
	f := newFixture(t)
	idA := f.mustCreateBank(t, bankA)
	idB := f.mustCreateBank(t, bankB)
	handlers := factory.NewGinHandlers(f.service)

	// A token scoped to bank B must not submit trades for bank A.
	c, w := newTradeContext(t, http.MethodPost, idA, "", idB, sampleDetails("T1", types.SideBuy, bankB))
	handlers.PerformTradeHandler()(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != response.ErrCodeForbidden {
		t.Errorf("error envelope: %+v", env.Error)
	}

	// The bank's own token goes through.
	c, w = newTradeContext(t, http.MethodPost, idA, "", idA, sampleDetails("T1", types.SideBuy, bankB))
	handlers.PerformTradeHandler()(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (%s)", w.Code, w.Body.String())
	}
}

func TestGetTradeHandlerEnforcesBankScope(t *testing.T) {
	f := newFixture(t)
	idA := f.mustCreateBank(t, bankA)
	idB := f.mustCreateBank(t, bankB)
	f.submitLegs(t, idA, idB, "T1")
	handlers := factory.NewGinHandlers(f.service)

	c, w := newTradeContext(t, http.MethodGet, idA, "T1", idB, nil)
	handlers.GetTradeHandler()(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want 403", w.Code)
	}

	c, w = newTradeContext(t, http.MethodGet, idA, "T1", idA, nil)
	handlers.GetTradeHandler()(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (%s)", w.Code, w.Body.String())
	}
}

func TestGetTradeHandlerUnknownTradeIsNotFound(t *testing.T) {
	f := newFixture(t)
	idA := f.mustCreateBank(t, bankA)
	handlers := factory.NewGinHandlers(f.service)

	c, w := newTradeContext(t, http.MethodGet, idA, "no-such-trade", idA, nil)
	handlers.GetTradeHandler()(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want 404 (%s)", w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	if env.Error == nil || env.Error.Code != response.ErrCodeNotFound {
		t.Errorf("error envelope: %+v", env.Error)
	}
}
