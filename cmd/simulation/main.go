package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ksred/rtp-api/internal/auth"
	"github.com/ksred/rtp-api/internal/database"
	"github.com/ksred/rtp-api/internal/factory"
	"github.com/ksred/rtp-api/internal/ledger"
	"github.com/ksred/rtp-api/internal/matching"
	"github.com/ksred/rtp-api/internal/observability"
	"github.com/ksred/rtp-api/internal/runtime"
	"github.com/ksred/rtp-api/internal/stream"
	"github.com/ksred/rtp-api/internal/types"
	"github.com/ksred/rtp-api/pkg/middleware"
)

const (
	minTrades     = 5
	maxTrades     = 25
	numWorkers    = 3
	serverAddress = "http://localhost:8080"

	bankA = "Deutsche Bank"
	bankB = "Sparkasse"

	jwtSecret      = "simulation-secret"
	factoryAccount = "factory.rtp"

	// Short windows so the timeout scenario completes within the run
	blockInterval  = 100 * time.Millisecond
	matchingWindow = 5 * time.Second
	paymentWindow  = 30 * time.Second
)

var instruments = []string{"EURUSD", "GBPUSD", "USDJPY", "EURGBP", "USDCHF"}

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the settlement API.
// It holds one JWT per simulated bank.
type simulationClient struct {
	baseURL string
	tokens  map[string]string // bankID -> JWT
	client  *http.Client
	stats   map[string]*routeStats
	mu      sync.Mutex
}

// newSimulationClient creates and initializes a new simulation client
// It authenticates both banks with the API and prepares performance tracking
func newSimulationClient() (*simulationClient, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	sc := &simulationClient{
		baseURL: serverAddress,
		client:  client,
		tokens:  make(map[string]string),
		stats: map[string]*routeStats{
			"auth":        {name: "Authentication"},
			"create_bank": {name: "Create Bank"},
			"trade":       {name: "Perform Trade"},
			"get_trade":   {name: "Get Trade"},
			"confirm":     {name: "Confirm Payment"},
		},
	}

	creds := map[string][2]string{
		types.BankID(bankA): {"deutsche-api-key", "deutsche-api-secret"},
		types.BankID(bankB): {"sparkasse-api-key", "sparkasse-api-secret"},
	}
	for bankID, pair := range creds {
		token, err := sc.authenticate(pair[0], pair[1])
		if err != nil {
			return nil, fmt.Errorf("failed to authenticate %s: %w", bankID, err)
		}
		sc.tokens[bankID] = token
	}

	return sc, nil
}

func (sc *simulationClient) record(route string, start time.Time, failed bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.stats[route].addDuration(time.Since(start))
	if failed {
		sc.stats[route].failures++
	}
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate(apiKey, apiSecret string) (string, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("auth", start, failed) }()

	credentials := map[string]string{
		"api_key":    apiKey,
		"api_secret": apiSecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		failed = true
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		failed = true
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		failed = true
		return "", err
	}

	return result.Data.Token, nil
}

// anyToken returns a token for internal endpoints, which accept any
// authenticated caller.
func (sc *simulationClient) anyToken() string {
	for _, t := range sc.tokens {
		return t
	}
	return ""
}

func (sc *simulationClient) do(method, path, token string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// storeContract uploads the ledger contract code deployed to new banks
func (sc *simulationClient) storeContract(code []byte) error {
	req, err := http.NewRequest(
		"POST",
		fmt.Sprintf("%s/api/v1/internal/contract", sc.baseURL),
		bytes.NewReader(code),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.anyToken()))

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("store contract failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// storageCost fetches the deposit required to provision a bank
func (sc *simulationClient) storageCost() (uint64, error) {
	body, status, err := sc.do("GET", "/api/v1/factory/storage_cost", sc.anyToken(), nil)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("storage cost failed with status %d: %s", status, string(body))
	}

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			StorageCost uint64 `json:"storage_cost"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, err
	}
	return result.Data.StorageCost, nil
}

// createBank provisions a bank ledger and returns its bank ID
func (sc *simulationClient) createBank(bank string, deposit uint64) (string, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("create_bank", start, failed) }()

	body, status, err := sc.do("POST", "/api/v1/internal/banks", sc.anyToken(), map[string]any{
		"bank":    bank,
		"deposit": deposit,
	})
	if err != nil {
		failed = true
		return "", err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		failed = true
		return "", fmt.Errorf("create bank failed with status %d: %s", status, string(body))
	}
	log.Debug().Str("response", string(body)).Msg("Create bank response")

	var result struct {
		Success bool `json:"success"`
		Data    struct {
			BankID string `json:"bank_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		failed = true
		return "", fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	return result.Data.BankID, nil
}

// waitForBanks polls the registry until both banks appear
func (sc *simulationClient) waitForBanks(want int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		body, status, err := sc.do("GET", "/api/v1/factory/banks", sc.anyToken(), nil)
		if err == nil && status == http.StatusOK {
			var result struct {
				Success bool `json:"success"`
				Data    struct {
					BankIDs []string `json:"bank_ids"`
				} `json:"data"`
			}
			if json.Unmarshal(body, &result) == nil && len(result.Data.BankIDs) >= want {
				return nil
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("banks not registered within %s", timeout)
}

// performTrade submits one leg of a trade as the given bank
func (sc *simulationClient) performTrade(bankID string, details types.TradeDetails) error {
	start := time.Now()
	failed := false
	defer func() { sc.record("trade", start, failed) }()

	body, status, err := sc.do(
		"POST",
		fmt.Sprintf("/api/v1/banks/%s/trades", bankID),
		sc.tokens[bankID],
		details,
	)
	if err != nil {
		failed = true
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		failed = true
		return fmt.Errorf("perform trade failed with status %d: %s", status, string(body))
	}
	log.Debug().Str("response", string(body)).Msg("Perform trade response")
	return nil
}

// getTrade retrieves a bank's stored record for a trade
func (sc *simulationClient) getTrade(bankID, tradeID string) (*types.Trade, error) {
	start := time.Now()
	failed := false
	defer func() { sc.record("get_trade", start, failed) }()

	body, status, err := sc.do(
		"GET",
		fmt.Sprintf("/api/v1/banks/%s/trades/%s", bankID, tradeID),
		sc.tokens[bankID],
		nil,
	)
	if err != nil {
		failed = true
		return nil, err
	}
	if status != http.StatusOK {
		failed = true
		return nil, fmt.Errorf("get trade failed with status %d: %s", status, string(body))
	}

	var result struct {
		Success bool        `json:"success"`
		Data    types.Trade `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		failed = true
		return nil, fmt.Errorf("failed to decode response: %w, body: %s", err, string(body))
	}
	return &result.Data, nil
}

// confirmPayment reports an observed payment between the two banks
func (sc *simulationClient) confirmPayment(creditorID, debitorID, tradeID string) error {
	start := time.Now()
	failed := false
	defer func() { sc.record("confirm", start, failed) }()

	body, status, err := sc.do("POST", "/api/v1/internal/payments/confirm", sc.anyToken(), map[string]string{
		"creditor_id": creditorID,
		"debitor_id":  debitorID,
		"trade_id":    tradeID,
	})
	if err != nil {
		failed = true
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		failed = true
		return fmt.Errorf("confirm payment failed with status %d: %s", status, string(body))
	}
	return nil
}

// waitForMatchingStatus polls both banks until the trade reaches the
// wanted matching status
func (sc *simulationClient) waitForMatchingStatus(bankID, tradeID, want string, timeout time.Duration) (*types.Trade, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		trade, err := sc.getTrade(bankID, tradeID)
		if err == nil && trade.MatchingStatus.Status == want {
			return trade, nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return nil, fmt.Errorf("trade %s did not reach matching status %s within %s", tradeID, want, timeout)
}

// waitForPaymentStatus polls until the trade reaches the wanted payment status
func (sc *simulationClient) waitForPaymentStatus(bankID, tradeID, want string, timeout time.Duration) (*types.Trade, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		trade, err := sc.getTrade(bankID, tradeID)
		if err == nil && trade.PaymentStatus.Status == want {
			return trade, nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return nil, fmt.Errorf("trade %s did not reach payment status %s within %s", tradeID, want, timeout)
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func (sc *simulationClient) printPerformanceStats() {
	fmt.Println("\n📊 API Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, stats := range sc.stats {
		min, max, mean, median, p95, p99 := stats.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			stats.name,
			stats.totalCalls,
			stats.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// legPair builds the two sides of one trade: identical economics,
// opposite sides, counterparties cross-referencing each other.
func legPair(tradeID string) (types.TradeDetails, types.TradeDetails) {
	instrument := instruments[rand.Intn(len(instruments))]
	price := 1.0 + rand.Float64()*0.5
	notional := float64(1_000_000 * (1 + rand.Intn(10)))
	now := time.Now()
	delivery := now.AddDate(0, 0, 2).Format("2006-01-02")

	base := types.TradeDetails{
		TradeID:          tradeID,
		EventTimestamp:   now.UnixMilli(),
		RecvTime:         now.UnixMilli(),
		InstrumentID:     instrument,
		AssetClass:       "FX",
		Product:          types.ProductSpot,
		Price:            price,
		NotionalAmount:   notional,
		SettlementMethod: "PvP",
		DeliveryDate:     delivery,
		DealtCcy:         instrument[:3],
		Ccy1ValueDate:    delivery,
		Ccy1PaymentAmt:   notional,
		Ccy1PaymentCcy:   instrument[:3],
	}

	legA := base
	legA.Side = types.SideBuy
	legA.Counterparty = bankB

	legB := base
	legB.Side = types.SideSell
	legB.Counterparty = bankA

	return legA, legB
}

// runMatchedTrade drives one trade through the full lifecycle: both
// legs submitted, matching confirmed, payments confirmed on both sides.
func runMatchedTrade(sc *simulationClient, idA, idB string) error {
	tradeID := uuid.New().String()
	legA, legB := legPair(tradeID)

	if err := sc.performTrade(idA, legA); err != nil {
		return err
	}
	if err := sc.performTrade(idB, legB); err != nil {
		return err
	}

	if _, err := sc.waitForMatchingStatus(idA, tradeID, types.StatusConfirmed, matchingWindow+5*time.Second); err != nil {
		return err
	}
	if _, err := sc.waitForMatchingStatus(idB, tradeID, types.StatusConfirmed, 5*time.Second); err != nil {
		return err
	}

	// Both directions: each bank is creditor of one leg
	if err := sc.confirmPayment(idA, idB, tradeID); err != nil {
		return err
	}
	if err := sc.confirmPayment(idB, idA, tradeID); err != nil {
		return err
	}

	if _, err := sc.waitForPaymentStatus(idA, tradeID, types.StatusConfirmed, 15*time.Second); err != nil {
		return err
	}
	if _, err := sc.waitForPaymentStatus(idB, tradeID, types.StatusConfirmed, 5*time.Second); err != nil {
		return err
	}
	return nil
}

// runMismatchedTrade submits legs with differing prices and expects rejection
func runMismatchedTrade(sc *simulationClient, idA, idB string) error {
	tradeID := uuid.New().String()
	legA, legB := legPair(tradeID)
	legB.Price = legA.Price + 0.01

	if err := sc.performTrade(idA, legA); err != nil {
		return err
	}
	if err := sc.performTrade(idB, legB); err != nil {
		return err
	}

	trade, err := sc.waitForMatchingStatus(idA, tradeID, types.StatusRejected, matchingWindow+5*time.Second)
	if err != nil {
		return err
	}
	if trade.MatchingStatus.Message == "" {
		return fmt.Errorf("rejected trade %s carries no mismatch reason", tradeID)
	}
	log.Info().Str("reason", trade.MatchingStatus.Message).Msg("Mismatched trade rejected")
	return nil
}

// runTimedOutTrade submits a single leg and expects a timeout rejection
func runTimedOutTrade(sc *simulationClient, idA string) error {
	tradeID := uuid.New().String()
	legA, _ := legPair(tradeID)

	if err := sc.performTrade(idA, legA); err != nil {
		return err
	}

	trade, err := sc.waitForMatchingStatus(idA, tradeID, types.StatusRejected, matchingWindow*3)
	if err != nil {
		return err
	}
	log.Info().Str("reason", trade.MatchingStatus.Message).Msg("Single-leg trade timed out")
	return nil
}

// main runs the settlement simulation
// It starts a local API server and drives the two-bank trade lifecycle
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	// Initialize simulation client
	simClient, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize simulation client")
	}

	// Provision both banks
	if err := simClient.storeContract([]byte("ledger contract v1")); err != nil {
		log.Fatal().Err(err).Msg("Failed to store contract code")
	}
	cost, err := simClient.storageCost()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to fetch storage cost")
	}
	log.Info().Uint64("storage_cost", cost).Msg("Provisioning banks")

	idA, err := simClient.createBank(bankA, cost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bank A")
	}
	idB, err := simClient.createBank(bankB, cost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bank B")
	}
	if err := simClient.waitForBanks(2, 10*time.Second); err != nil {
		log.Fatal().Err(err).Msg("Banks never registered")
	}
	log.Info().Str("bank_a", idA).Str("bank_b", idB).Msg("Banks provisioned")

	targetTrades := rand.Intn(maxTrades-minTrades) + minTrades
	log.Info().Int("target_trades", targetTrades).Msg("Starting simulation")

	stats := struct {
		Matched   int
		Failed    int
		StartTime time.Time
	}{StartTime: time.Now()}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	work := make(chan int, targetTrades)
	for i := 0; i < targetTrades; i++ {
		work <- i
	}
	close(work)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for range work {
				err := runMatchedTrade(simClient, idA, idB)
				mu.Lock()
				if err != nil {
					stats.Failed++
					log.Error().Err(err).Int("worker", workerID).Msg("Trade lifecycle failed")
				} else {
					stats.Matched++
				}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	// Failure scenarios
	if err := runMismatchedTrade(simClient, idA, idB); err != nil {
		log.Error().Err(err).Msg("Mismatch scenario failed")
	}
	if err := runTimedOutTrade(simClient, idA); err != nil {
		log.Error().Err(err).Msg("Timeout scenario failed")
	}

	elapsed := time.Since(stats.StartTime)
	fmt.Println("\n🏁 Simulation Summary")
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("%-25s %d\n", "Trades matched:", stats.Matched)
	fmt.Printf("%-25s %d\n", "Trades failed:", stats.Failed)
	fmt.Printf("%-25s %s\n", "Elapsed:", elapsed.Round(time.Millisecond))
	fmt.Println(strings.Repeat("-", 50))

	simClient.printPerformanceStats()
}

// startServer wires the full stack in process: ledger runtime, factory,
// matching engine, and the HTTP API. NATS is not used here; the
// matching engine consumes the in-process block feed directly.
func startServer() error {
	gin.SetMode(gin.ReleaseMode)

	db, err := database.NewDatabase("rtp_simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	logger := log.Logger

	rt := runtime.New(runtime.Config{
		BlockInterval: blockInterval,
		Logger:        logger,
	})

	ledgerDB := ledger.NewDatabase(db)
	newLedgerContract := func(account string) runtime.Contract {
		return ledger.New(account, ledgerDB, logger)
	}

	factoryService, err := factory.NewService(rt, db, factoryAccount, newLedgerContract, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize factory: %w", err)
	}
	rt.Genesis(factoryAccount, 1_000_000_000_000, factoryService.Contract())
	factoryHandlers := factory.NewGinHandlers(factoryService)

	ctx := context.Background()
	blocks := rt.Blocks()
	go rt.Start(ctx)

	engine := matching.NewEngine(factoryService, matchingWindow, paymentWindow, logger)
	go engine.Run(ctx, stream.Events(ctx, blocks))

	authService := auth.NewService(jwtSecret)
	authService.RegisterAPICredentials("deutsche-api-key", "deutsche-api-secret", types.BankID(bankA))
	authService.RegisterAPICredentials("sparkasse-api-key", "sparkasse-api-secret", types.BankID(bankB))
	authHandlers := auth.NewGinHandlers(authService)

	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/token", authHandlers.GenerateTokenHandler())

		banks := v1.Group("/banks")
		banks.Use(middleware.JWTAuth(jwtSecret))
		{
			banks.POST("/:bank_id/trades", factoryHandlers.PerformTradeHandler())
			banks.GET("/:bank_id/trades/:trade_id", factoryHandlers.GetTradeHandler())
		}

		factoryGroup := v1.Group("/factory")
		{
			factoryGroup.GET("/banks", factoryHandlers.GetBankIDsHandler())
			factoryGroup.GET("/bank_id", factoryHandlers.GetBankIDHandler())
			factoryGroup.GET("/partnership_id", factoryHandlers.GetPartnershipIDHandler())
			factoryGroup.GET("/storage_cost", factoryHandlers.StorageCostHandler())
			factoryGroup.GET("/tip", factoryHandlers.TipHandler())
		}

		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(jwtSecret))
		{
			internal.POST("/banks", factoryHandlers.CreateBankHandler())
			internal.DELETE("/banks/:bank_id", factoryHandlers.RemoveBankHandler())
			internal.POST("/contract", factoryHandlers.StoreContractHandler())
			internal.DELETE("/storage", factoryHandlers.ClearStorageHandler())
			internal.POST("/payments/confirm", factoryHandlers.ConfirmPaymentHandler())
		}
	}

	return router.Run(":8080")
}
