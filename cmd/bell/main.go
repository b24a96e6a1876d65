// Command bell is a terminal notification watcher: it signs in, loads the
// recent history and unread count, then follows the live push channel and
// prints each alert as it arrives. Useful for smoke-testing the feed
// end to end.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/sunpeak/console-api/pkg/notifyclient"
)

type config struct {
	APIURL   string        `envconfig:"BELL_API_URL" default:"http://localhost:8080"`
	Email    string        `envconfig:"BELL_EMAIL" required:"true"`
	Password string        `envconfig:"BELL_PASSWORD" required:"true"`
	Summary  time.Duration `envconfig:"BELL_SUMMARY_INTERVAL" default:"30s"`
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	token, userID, err := signIn(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("sign-in failed")
	}
	log.Info().Int64("user_id", userID).Msg("signed in")

	store := notifyclient.NewStore(notifyclient.DefaultRetained)
	transport, err := notifyclient.NewTransport(notifyclient.Config{
		BaseURL: cfg.APIURL,
		Token:   notifyclient.StaticToken(token),
		Logger:  log.Logger,
		OnNotification: func(n notifyclient.Notification) {
			fmt.Printf("\a[%s] %s\n", n.Type, n.Message)
		},
		OnError: func(op string, err error) {
			log.Warn().Err(err).Str("op", op).Msg("feed operation failed")
		},
	}, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build transport")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller := notifyclient.NewController(transport, store, log.Logger)
	controller.Start(ctx, userID)

	bell := notifyclient.NewBell(store)
	ticker := time.NewTicker(cfg.Summary)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			printSummary(bell)
		case <-quit:
			log.Info().Msg("shutting down")
			controller.Stop()
			return
		}
	}
}

func printSummary(bell *notifyclient.Bell) {
	entries := bell.Entries(10)
	fmt.Printf("-- %d unread, %d recent --\n", bell.Badge(), len(entries))
	for _, e := range entries {
		marker := " "
		if !e.Read {
			marker = "*"
		}
		fmt.Printf(" %s %-14s %-16s %s\n", marker, e.When, e.Type, e.Message)
	}
}

// signIn exchanges credentials for a session token, then resolves the
// signed-in user's id.
func signIn(cfg config) (string, int64, error) {
	client := &http.Client{Timeout: 10 * time.Second}

	creds, _ := json.Marshal(map[string]string{"email": cfg.Email, "password": cfg.Password})
	resp, err := client.Post(cfg.APIURL+"/api/v1/auth/login", "application/json", bytes.NewReader(creds))
	if err != nil {
		return "", 0, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return "", 0, fmt.Errorf("failed to decode login response: %w", err)
	}

	req, err := http.NewRequest(http.MethodGet, cfg.APIURL+"/api/v1/auth/me", nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	meResp, err := client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("profile request failed: %w", err)
	}
	defer meResp.Body.Close()
	if meResp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("profile rejected with status %d", meResp.StatusCode)
	}
	var me struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(meResp.Body).Decode(&me); err != nil {
		return "", 0, fmt.Errorf("failed to decode profile: %w", err)
	}
	return tokens.AccessToken, me.ID, nil
}
