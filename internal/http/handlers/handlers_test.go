package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/auth"
	"github.com/ads-marketplace/campaign-backend/internal/http/dto"
	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/ads-marketplace/campaign-backend/internal/middleware"
	"github.com/ads-marketplace/campaign-backend/internal/models"
	"github.com/ads-marketplace/campaign-backend/internal/rbac"
	"github.com/ads-marketplace/campaign-backend/internal/services"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

var (
	seller = common.HexToAddress("0x1111111111111111111111111111111111111111")
	other  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	router = common.HexToAddress("0x3333333333333333333333333333333333333333")
	owner  = common.HexToAddress("0x4444444444444444444444444444444444444444")
	escrow = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

type memReceipts struct {
	mu   sync.Mutex
	byID map[uuid.UUID]models.TxReceipt
}

func (m *memReceipts) Create(_ context.Context, rc *models.TxReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[rc.ID] = *rc
	return nil
}

func (m *memReceipts) Finalize(_ context.Context, rc *models.TxReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[rc.ID] = *rc
	return nil
}

func (m *memReceipts) GetByID(_ context.Context, id uuid.UUID) (*models.TxReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rc, ok := m.byID[id]
	if !ok {
		return nil, errors.New("receipt not found")
	}
	return &rc, nil
}

func setupApp(t *testing.T) (*fiber.App, *marketplace.MemLedger) {
	t.Helper()

	ledger := marketplace.NewMemLedger()
	mp := marketplace.New(marketplace.Config{Owner: owner, Escrow: escrow}, marketplace.Deps{
		Ledger: ledger,
		Router: marketplace.NewStaticRouter(router),
	}, zap.NewNop())

	tx := services.NewTxService(&memReceipts{byID: make(map[uuid.UUID]models.TxReceipt)}, nil, 16, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go tx.Run(ctx)

	cmd := services.NewCommandService(mp, tx, nil)
	query := services.NewQueryService(mp, ledger, nil, nil, "GRASS", 2)
	campaigns := NewCampaignHandler(cmd, query, tx, 2, zap.NewNop())
	actions := NewActionHandler(cmd, tx)
	txs := NewTxHandler(tx)

	app := fiber.New()
	app.Use(middleware.RequestIDMiddleware())
	api := app.Group("/api/v1", middleware.AuthMiddleware(testSecret, zap.NewNop()))
	api.Post("/groups", campaigns.CreateGroup)
	api.Post("/campaigns", campaigns.CreateCampaign)
	api.Get("/campaigns/:id", campaigns.GetCampaign)
	api.Get("/campaigns/:id/info", campaigns.GetCampaignInfo)
	api.Post("/campaigns/:id/cancel", campaigns.Cancel)
	api.Post("/campaigns/:id/slots", campaigns.UpdateSlots)
	api.Get("/posts/:postId/campaign", campaigns.GetPostCampaign)
	api.Post("/actions/execute", middleware.RequirePermission(mp, rbac.PermExecuteAction), actions.Execute)
	api.Get("/tx/:id", txs.GetTx)
	return app, ledger
}

func token(t *testing.T, addr common.Address) string {
	t.Helper()
	tok, err := auth.GenerateJWT(testSecret, uuid.New(), addr, time.Hour)
	require.NoError(t, err)
	return tok
}

func call(t *testing.T, app *fiber.App, method, path string, as common.Address, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if as != (common.Address{}) {
		req.Header.Set("Authorization", "Bearer "+token(t, as))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func createCampaignBody(postID string) string {
	now := time.Now().Unix()
	b, _ := json.Marshal(map[string]any{
		"post_id":               postID,
		"action_type":           "MIRROR",
		"available_slots":       4,
		"start_time":            now + 60,
		"end_time":              now + 3600,
		"reward_claimable_time": now + 7200,
		"content_uri":           "lens://content",
		"pool":                  "100",
	})
	return string(b)
}

func TestCreateGroupWait(t *testing.T) {
	app, _ := setupApp(t)

	status, body := call(t, app, "POST", "/api/v1/groups?wait=true", seller, `{"group_uri":"lens://group"}`)
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, models.TxStatusConfirmed, data["status"])
	assert.Equal(t, float64(1), data["result"].(map[string]any)["group_id"])
}

func TestWriteWithoutWaitIsAccepted(t *testing.T) {
	app, _ := setupApp(t)

	status, body := call(t, app, "POST", "/api/v1/groups", seller, `{"group_uri":"lens://group"}`)
	require.Equal(t, fiber.StatusAccepted, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, models.TxStatusPending, data["status"])
	assert.Equal(t, seller.Hex(), data["caller"])
}

func TestCreateCampaignFlow(t *testing.T) {
	app, ledger := setupApp(t)
	ledger.Mint(seller, big.NewInt(10000))

	status, body := call(t, app, "POST", "/api/v1/campaigns?wait=true", seller, createCampaignBody("post-1"))
	require.Equal(t, fiber.StatusOK, status, body)

	status, body = call(t, app, "GET", "/api/v1/campaigns/1/info", seller, "")
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "MIRROR", data["action_type"])
	assert.Equal(t, "22.5", data["reward"].(map[string]any)["display"])

	escrowed, err := ledger.BalanceOf(context.Background(), escrow)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), escrowed.Int64())
}

func TestCreateCampaignValidation(t *testing.T) {
	app, _ := setupApp(t)

	status, body := call(t, app, "POST", "/api/v1/campaigns", seller, `{"post_id":"p","action_type":"LIKE"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])
	assert.NotEmpty(t, body["request_id"])
}

func TestInsufficientBalanceMapsTo402(t *testing.T) {
	app, _ := setupApp(t)

	status, body := call(t, app, "POST", "/api/v1/campaigns?wait=true", seller, createCampaignBody("post-1"))
	assert.Equal(t, fiber.StatusPaymentRequired, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, services.CodeInsufficientBalance, data["error_code"])
}

func TestCancelByStrangerForbidden(t *testing.T) {
	app, ledger := setupApp(t)
	ledger.Mint(seller, big.NewInt(10000))

	status, _ := call(t, app, "POST", "/api/v1/campaigns?wait=true", seller, createCampaignBody("post-1"))
	require.Equal(t, fiber.StatusOK, status)

	status, body := call(t, app, "POST", "/api/v1/campaigns/1/cancel?wait=true", other, "")
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, services.CodeInvalidMsgSender, body["data"].(map[string]any)["error_code"])
}

func TestUpdateSlotsRejectsOverflow(t *testing.T) {
	app, ledger := setupApp(t)
	ledger.Mint(seller, big.NewInt(10000))

	status, _ := call(t, app, "POST", "/api/v1/campaigns?wait=true", seller, createCampaignBody("post-1"))
	require.Equal(t, fiber.StatusOK, status)

	status, body := call(t, app, "POST", "/api/v1/campaigns/1/slots?wait=true", seller, `{"additional_slots":18446744073709551615}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])

	// within the validator bound but past the slot ceiling once added
	status, body = call(t, app, "POST", "/api/v1/campaigns/1/slots?wait=true", seller, `{"additional_slots":9223372036854775807}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, services.CodeInvalidParameter, body["data"].(map[string]any)["error_code"])

	status, body = call(t, app, "GET", "/api/v1/campaigns/1", seller, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(4), body["data"].(map[string]any)["available_slots"])
}

func TestGetPostCampaign(t *testing.T) {
	app, ledger := setupApp(t)
	ledger.Mint(seller, big.NewInt(10000))

	status, _ := call(t, app, "POST", "/api/v1/campaigns?wait=true", seller, createCampaignBody("post-7"))
	require.Equal(t, fiber.StatusOK, status)

	status, body := call(t, app, "GET", "/api/v1/posts/post-7/campaign", seller, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["id"])

	status, _ = call(t, app, "GET", "/api/v1/posts/post-8/campaign", seller, "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

type memDeposits struct {
	byAddr map[common.Address][]models.Deposit
	limit  int
}

func (m *memDeposits) ListDeposits(_ context.Context, from common.Address, limit int) ([]models.Deposit, error) {
	m.limit = limit
	return m.byAddr[from], nil
}

func TestUserDeposits(t *testing.T) {
	deposits := &memDeposits{byAddr: map[common.Address][]models.Deposit{
		seller: {{TxHash: "0xabc", FromAddress: seller.Hex(), Amount: "500", Status: models.DepositStatusCredited}},
	}}
	users := &UserHandler{deposits: deposits, log: zap.NewNop()}

	app := fiber.New()
	api := app.Group("/api/v1", middleware.AuthMiddleware(testSecret, zap.NewNop()))
	api.Get("/me/deposits", users.Deposits)

	status, body := call(t, app, "GET", "/api/v1/me/deposits?limit=5", seller, "")
	require.Equal(t, fiber.StatusOK, status)
	list := body["data"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, "500", list[0].(map[string]any)["amount"])
	assert.Equal(t, 5, deposits.limit)

	status, body = call(t, app, "GET", "/api/v1/me/deposits", other, "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["data"])
	assert.Equal(t, 20, deposits.limit)
}

func TestGetCampaignNotFound(t *testing.T) {
	app, _ := setupApp(t)

	status, body := call(t, app, "GET", "/api/v1/campaigns/99", seller, "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, services.CodeNotFound, body["code"])

	status, _ = call(t, app, "GET", "/api/v1/campaigns/abc", seller, "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestMissingToken(t *testing.T) {
	app, _ := setupApp(t)

	status, _ := call(t, app, "GET", "/api/v1/campaigns/1", common.Address{}, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestExecuteRequiresRouter(t *testing.T) {
	app, _ := setupApp(t)

	body := `{"original_msg_sender":"` + other.Hex() + `","post_id":"post-1","action_type":"MIRROR"}`
	status, _ := call(t, app, "POST", "/api/v1/actions/execute", other, body)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, resp := call(t, app, "POST", "/api/v1/actions/execute?wait=true", router, body)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, services.CodeInvalidParameter, resp["data"].(map[string]any)["error_code"])
}

func TestGetTxOnlyForCaller(t *testing.T) {
	app, _ := setupApp(t)

	_, body := call(t, app, "POST", "/api/v1/groups?wait=true", seller, `{"group_uri":"lens://group"}`)
	id := body["data"].(map[string]any)["id"].(string)

	status, _ := call(t, app, "GET", "/api/v1/tx/"+id, seller, "")
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = call(t, app, "GET", "/api/v1/tx/"+id, other, "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestToActionRequestAddsActionType(t *testing.T) {
	req, err := toActionRequest(dto.ActionRequest{
		OriginalMsgSender: other.Hex(),
		PostID:            "post-1",
		ActionType:        "COMMENT",
		Params: []dto.ActionParam{
			{Key: "0x" + strings.Repeat("ab", 32), Value: "0x0102"},
		},
	})
	require.NoError(t, err)
	require.Len(t, req.Params, 2)
	assert.Equal(t, []byte{1, 2}, req.Params[0].Value)

	got, err := marketplace.DecodeActionType(req.Params)
	require.NoError(t, err)
	assert.Equal(t, marketplace.ActionComment, got)
}
