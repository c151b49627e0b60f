// Command booking_race fires identical booking requests at one or more running
// instances and verifies that exactly one of them is confirmed.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/sma-resource-core/internal/dto"
	"github.com/noah-isme/sma-resource-core/internal/models"
	"github.com/noah-isme/sma-resource-core/internal/service"
)

type attempt struct {
	Base     string
	Status   int
	Duration time.Duration
	Error    error
}

func main() {
	var (
		bases     string
		prefix    string
		secret    string
		issuer    string
		teacherID string
		roomID    string
		start     string
		duration  time.Duration
		workers   int
		timeout   time.Duration
	)

	flag.StringVar(&bases, "bases", "http://localhost:8080", "Comma separated instance base URLs")
	flag.StringVar(&prefix, "prefix", "/api/v1", "API prefix")
	flag.StringVar(&secret, "jwt-secret", "dev_secret", "Secret used to mint the teacher token")
	flag.StringVar(&issuer, "jwt-issuer", "sma-resource-core", "Token issuer")
	flag.StringVar(&teacherID, "teacher-id", "", "Teacher user id")
	flag.StringVar(&roomID, "room-id", "", "Room to contend for")
	flag.StringVar(&start, "start", "", "Slot start (RFC3339), defaults to tomorrow 09:00 UTC")
	flag.DurationVar(&duration, "duration", time.Hour, "Slot length")
	flag.IntVar(&workers, "workers", 20, "Concurrent requests")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if teacherID == "" || roomID == "" {
		log.Fatal("teacher-id and room-id are required")
	}

	slotStart, err := parseStart(start)
	if err != nil {
		log.Fatalf("invalid start: %v", err)
	}

	tokens := service.NewTokenService(service.TokenConfig{Secret: secret, Issuer: issuer}, nil)
	token, _, err := tokens.IssueToken(models.User{ID: teacherID, FullName: "race probe", Role: models.RoleTeacher}, 10*time.Minute)
	if err != nil {
		log.Fatalf("failed to mint token: %v", err)
	}

	payload, err := json.Marshal(dto.BookingRequest{
		RoomID:    roomID,
		Title:     "race probe",
		StartTime: slotStart,
		EndTime:   slotStart.Add(duration),
	})
	if err != nil {
		log.Fatalf("failed to encode payload: %v", err)
	}

	targets := splitBases(bases)
	client := &http.Client{Timeout: timeout}
	results := make([]attempt, workers)

	var wg sync.WaitGroup
	gate := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			base := targets[i%len(targets)]
			<-gate
			results[i] = book(client, base+prefix+"/bookings", token, payload)
			results[i].Base = base
		}(i)
	}
	close(gate)
	wg.Wait()

	confirmed := printReport(results)
	if confirmed != 1 {
		fmt.Printf("FAIL: expected exactly one confirmed booking, got %d\n", confirmed)
		os.Exit(1)
	}
	fmt.Println("OK: exactly one booking confirmed")
}

func book(client *http.Client, url, token string, payload []byte) attempt {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return attempt{Error: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	begin := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return attempt{Error: err, Duration: time.Since(begin)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return attempt{Status: resp.StatusCode, Duration: time.Since(begin)}
}

func parseStart(raw string) (time.Time, error) {
	if raw == "" {
		tomorrow := time.Now().UTC().AddDate(0, 0, 1)
		return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 9, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(time.RFC3339, raw)
}

func splitBases(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimRight(strings.TrimSpace(part), "/"); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		log.Fatal("no base URLs given")
	}
	return out
}

func printReport(results []attempt) int {
	counts := map[int]int{}
	errorsSeen := 0
	var slowest time.Duration
	for _, r := range results {
		if r.Duration > slowest {
			slowest = r.Duration
		}
		if r.Error != nil {
			errorsSeen++
			fmt.Printf("  [ERROR] %s: %v\n", r.Base, r.Error)
			continue
		}
		counts[r.Status]++
	}

	statuses := make([]int, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Ints(statuses)

	fmt.Println("Booking Race Report")
	fmt.Println("===================")
	for _, status := range statuses {
		fmt.Printf("  HTTP %d: %d\n", status, counts[status])
	}
	fmt.Printf("  Transport errors: %d | Slowest: %s\n", errorsSeen, slowest)
	return counts[http.StatusCreated]
}
