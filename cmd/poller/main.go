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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"classtrack/internal/config"
	"classtrack/internal/faceclient"
	"classtrack/internal/logging"
	"classtrack/internal/poller"
)

// The poller is the headless stand-in for the live classroom screen: it
// captures frames from a camera drop directory, recognizes faces and marks
// attendance through the API.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logg.Closer()
	log := logg.Base

	subjectID := os.Getenv("POLLER_SUBJECT_ID")
	email := os.Getenv("POLLER_EMAIL")
	password := os.Getenv("POLLER_PASSWORD")
	cameraDir := os.Getenv("CAMERA_DIR")
	if cameraDir == "" {
		cameraDir = "camera"
	}
	if subjectID == "" || email == "" || password == "" {
		log.Fatal("POLLER_SUBJECT_ID, POLLER_EMAIL and POLLER_PASSWORD are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	api := &apiClient{base: cfg.APIBaseURL, http: &http.Client{Timeout: 15 * time.Second}}
	if err := api.login(ctx, email, password); err != nil {
		log.Fatal("login failed", zap.Error(err))
	}
	log.Info("logged in", zap.String("api", cfg.APIBaseURL))

	faces := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	source := &poller.DirectorySource{Dir: cameraDir}

	loop := poller.New(source, faces, api, log,
		poller.WithInterval(cfg.PollInterval),
		poller.WithRecentTTL(cfg.RecentTTL),
	)
	loop.Start(subjectID)

	log.Info("poller started",
		zap.String("subject_id", subjectID),
		zap.Duration("interval", cfg.PollInterval))
	if err := loop.Run(ctx); err != nil && err != context.Canceled {
		log.Warn("poller stopped", zap.Error(err))
	}
	log.Info("poller exited")
}

// apiClient marks attendance through the HTTP API with a bearer token.
type apiClient struct {
	base  string
	token string
	http  *http.Client
}

func (a *apiClient) login(ctx context.Context, email, password string) error {
	payload, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/api/auth/login", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login rejected: %s", resp.Status)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	a.token = body.Token
	return nil
}

// MarkAuto implements poller.Marker against POST /api/attendance/mark.
func (a *apiClient) MarkAuto(ctx context.Context, studentID, subjectID string) (bool, error) {
	payload, _ := json.Marshal(map[string]string{
		"studentId": studentID,
		"subjectId": subjectID,
		"markedBy":  "auto",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/api/attendance/mark", bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return false, fmt.Errorf("mark rejected (%s): %s", resp.Status, body.Error)
	}
	var body struct {
		AlreadyMarked bool `json:"alreadyMarked"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, err
	}
	return body.AlreadyMarked, nil
}
