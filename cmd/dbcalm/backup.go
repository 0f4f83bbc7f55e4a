package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dbcalm/dbcalm/internal/auth"
	"github.com/dbcalm/dbcalm/internal/db"
)

func newBackupCmd(configPath *string) *cobra.Command {
	var scheduleID string

	cmd := &cobra.Command{
		Use:   "backup {full|incremental}",
		Short: "Non-interactive cron entry point: trigger a backup via the API",
		Long: `backup is what a rendered cron line invokes. It mints a short-lived
client credential, exchanges it for an access token, calls POST /backups,
and deletes the credential again on exit — cron never holds a standing
secret.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var scheduleIDPtr *string
			if scheduleID != "" {
				scheduleIDPtr = &scheduleID
			}
			return runBackupCLI(cmd.Context(), *configPath, args[0], scheduleIDPtr)
		},
	}

	cmd.Flags().StringVar(&scheduleID, "schedule-id", "", "the Schedule row driving this invocation")

	return cmd
}

func runBackupCLI(ctx context.Context, configPath, backupType string, scheduleID *string) error {
	if backupType != string(db.BackupFull) && backupType != string(db.BackupIncremental) {
		return fmt.Errorf("backup: unknown type %q (expected %q or %q)", backupType, db.BackupFull, db.BackupIncremental)
	}

	c, err := buildCore(configPath)
	if err != nil {
		return err
	}
	defer c.close()

	label := fmt.Sprintf("cron-%s-%d", backupType, time.Now().UnixNano())
	secret, err := generateSecret()
	if err != nil {
		return fmt.Errorf("backup: generating temporary client secret: %w", err)
	}
	hash, err := auth.HashPassword(secret)
	if err != nil {
		return fmt.Errorf("backup: hashing temporary client secret: %w", err)
	}

	client := &db.Client{Scopes: []string{"backup"}, Label: label, Secret: hash}
	if err := c.clients.Create(ctx, client); err != nil {
		return fmt.Errorf("backup: creating temporary client: %w", err)
	}
	defer func() {
		if err := c.clients.Delete(context.Background(), client.ID); err != nil {
			c.logger.Warn("backup: failed to delete temporary client", zap.String("client_id", client.ID.String()), zap.Error(err))
		}
	}()

	baseURL := "http://" + httpLoopbackAddr(c.cfg.HTTPAddr)

	token, err := fetchAccessToken(ctx, baseURL, client.ID.String(), secret)
	if err != nil {
		return fmt.Errorf("backup: authenticating temporary client: %w", err)
	}

	body := map[string]any{"type": backupType}
	if scheduleID != nil {
		body["schedule_id"] = *scheduleID
	}
	return postBackup(ctx, baseURL, token, body)
}

func generateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func fetchAccessToken(ctx context.Context, baseURL, clientID, secret string) (string, error) {
	reqBody, err := json.Marshal(map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     clientID,
		"client_secret": secret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/auth/token", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: %s: %s", resp.Status, payload)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

func postBackup(ctx context.Context, baseURL, token string, body map[string]any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v1/backups", bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("backup request failed: %s: %s", resp.Status, payload)
	}
	return nil
}

// httpLoopbackAddr rewrites a listen address like ":8443" into a dialable
// loopback address "127.0.0.1:8443"; addresses that already name a host
// pass through unchanged.
func httpLoopbackAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}
