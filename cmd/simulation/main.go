package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/goldpack/exchange-core/internal/types"
	"github.com/goldpack/exchange-core/pkg/response"
)

const (
	serverAddress  = "http://localhost:8080"
	referencePrice = 26500000
)

// init configures the logger for the simulation.
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks latency statistics for an API endpoint.
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate returns min, max, mean and median durations.
func (rs *routeStats) calculate() (min, max, mean, median time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]
	return
}

// simulationClient drives the exchange API as the chat transport would.
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
	messageID int64
}

func newSimulationClient() *simulationClient {
	return &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats: map[string]*routeStats{
			"auth":    {name: "Authentication"},
			"message": {name: "Handle Message"},
			"admin":   {name: "Internal Admin"},
		},
	}
}

func (sc *simulationClient) post(path, statKey string, payload interface{}) (*response.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, sc.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if sc.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+sc.authToken)
	}

	start := time.Now()
	resp, err := sc.client.Do(req)
	stats := sc.stats[statKey]
	stats.addDuration(time.Since(start))
	if err != nil {
		stats.failures++
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		stats.failures++
		return nil, err
	}

	var envelope response.Response
	if err := json.Unmarshal(data, &envelope); err != nil {
		stats.failures++
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !envelope.Success {
		stats.failures++
	}
	return &envelope, nil
}

// authenticate fetches a token bound to the given trader identity.
func (sc *simulationClient) authenticate(traderID int64) error {
	envelope, err := sc.post("/api/v1/auth/token", "auth", map[string]interface{}{
		"api_key":    os.Getenv("API_KEY"),
		"api_secret": os.Getenv("API_SECRET"),
		"trader_id":  traderID,
	})
	if err != nil {
		return err
	}
	if !envelope.Success {
		return fmt.Errorf("authentication rejected")
	}

	payload, err := json.Marshal(envelope.Data)
	if err != nil {
		return err
	}
	var token struct {
		Token string `json:"jwt_token"`
	}
	if err := json.Unmarshal(payload, &token); err != nil {
		return err
	}
	sc.authToken = token.Token
	return nil
}

// sendMessage relays one chat message and returns the directives.
func (sc *simulationClient) sendMessage(text string, reply map[string]interface{}) ([]types.Directive, int64, error) {
	sc.messageID++
	payload := map[string]interface{}{
		"message_id": sc.messageID,
		"text":       text,
	}
	if reply != nil {
		payload["reply"] = reply
	}

	envelope, err := sc.post("/api/v1/messages", "message", payload)
	if err != nil {
		return nil, 0, err
	}

	data, err := json.Marshal(envelope.Data)
	if err != nil {
		return nil, 0, err
	}
	var directives []types.Directive
	if err := json.Unmarshal(data, &directives); err != nil {
		return nil, 0, err
	}
	return directives, sc.messageID, nil
}

func main() {
	log.Info().Msg("starting trading session simulation")

	sc := newSimulationClient()

	// Operator setup: traders and the reference price.
	if err := sc.authenticate(0); err != nil {
		log.Fatal().Err(err).Msg("operator authentication failed")
	}
	for id, name := range map[int64]string{1: "alpha", 2: "beta"} {
		if _, err := sc.post("/api/v1/internal/traders", "admin", map[string]interface{}{
			"trader_id":      id,
			"username":       name,
			"capacity_total": 100,
		}); err != nil {
			log.Fatal().Err(err).Int64("trader_id", id).Msg("trader provisioning failed")
		}
	}
	if _, err := sc.post("/api/v1/internal/price", "admin", map[string]interface{}{
		"price": referencePrice,
	}); err != nil {
		log.Fatal().Err(err).Msg("price feed update failed")
	}

	// Trader 1 sells, trader 2 replies with matching buys.
	if err := sc.authenticate(1); err != nil {
		log.Fatal().Err(err).Msg("trader authentication failed")
	}
	amount := rand.Int63n(10) + 5
	sellText := fmt.Sprintf("%d ف %d", referencePrice, amount)
	directives, sellMsgID, err := sc.sendMessage(sellText, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("sell order failed")
	}
	logDirectives("sell order", directives)

	if err := sc.authenticate(2); err != nil {
		log.Fatal().Err(err).Msg("trader authentication failed")
	}
	buyText := fmt.Sprintf("%d خ %d", referencePrice, amount)
	directives, _, err = sc.sendMessage(buyText, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("buy order failed")
	}
	logDirectives("buy order", directives)

	// Reply-join against a fresh sell from trader 1.
	if err := sc.authenticate(1); err != nil {
		log.Fatal().Err(err).Msg("trader authentication failed")
	}
	directives, sellMsgID, err = sc.sendMessage(fmt.Sprintf("%d ف 4", referencePrice), nil)
	if err != nil {
		log.Fatal().Err(err).Msg("second sell order failed")
	}
	logDirectives("second sell order", directives)

	if err := sc.authenticate(2); err != nil {
		log.Fatal().Err(err).Msg("trader authentication failed")
	}
	directives, _, err = sc.sendMessage("ب 2", map[string]interface{}{
		"message_id": sellMsgID,
		"trader_id":  int64(1),
		"text":       fmt.Sprintf("%d ف 4", referencePrice),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("join failed")
	}
	logDirectives("join", directives)

	// Cancel whatever trader 2 still has open.
	directives, _, err = sc.sendMessage("ن", nil)
	if err != nil {
		log.Fatal().Err(err).Msg("cancel-all failed")
	}
	logDirectives("cancel-all", directives)

	printStats(sc)
}

func logDirectives(step string, directives []types.Directive) {
	for _, d := range directives {
		log.Info().
			Str("step", step).
			Bool("success", d.Success).
			Str("reason", d.Reason).
			Str("delivery", string(d.Delivery)).
			Msg("directive")
	}
}

func printStats(sc *simulationClient) {
	fmt.Println("\n=== Simulation Statistics ===")
	for _, stats := range sc.stats {
		if stats.totalCalls == 0 {
			continue
		}
		min, max, mean, median := stats.calculate()
		fmt.Printf("%-16s calls=%d failures=%d min=%s max=%s mean=%s median=%s\n",
			stats.name, stats.totalCalls, stats.failures, min, max, mean, median)
	}
}
